// Package engine is the entry point collaborators use: it wires the territory
// registry, perk progression and the influence pipeline over one storage backend.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportsin/territory/internal/cache"
	"github.com/sportsin/territory/internal/catalog"
	"github.com/sportsin/territory/internal/influence"
	"github.com/sportsin/territory/internal/progression"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/internal/territory"
	"github.com/sportsin/territory/pkg/core"
)

// Dependencies holds all dependencies for the Engine.
type Dependencies struct {
	Backend storage.Backend
	Logger  *slog.Logger
	Events  core.EventSink
	Clock   func() time.Time
	NewID   func() string
}

// Engine is the territory control and influence engine.
type Engine struct {
	backend  storage.Backend
	logger   *slog.Logger
	registry *territory.Registry
	perks    *progression.Service
	pipeline *influence.Pipeline
}

// New wires an Engine. The backend must already be initialized; call Load or
// Seed before serving commands.
func New(deps Dependencies) (*Engine, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("engine needs a storage backend")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	registry, err := territory.New(territory.Dependencies{
		Store:  deps.Backend,
		Logger: deps.Logger.With("component", "territory"),
		Events: deps.Events,
		Clock:  deps.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	perks, err := progression.New(progression.Dependencies{
		Teams:   deps.Backend,
		Perks:   deps.Backend,
		Catalog: cache.NewPerkCache(),
		Logger:  deps.Logger.With("component", "progression"),
		Events:  deps.Events,
		Clock:   deps.Clock,
		NewID:   deps.NewID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating progression service: %w", err)
	}

	pipelineLog := deps.Logger.With("component", "influence")
	pipeline := influence.NewPipeline(pipelineLog,
		influence.NewRouteModifier(registry),
		influence.NewPerkModifier(perks, pipelineLog),
	)

	return &Engine{
		backend:  deps.Backend,
		logger:   deps.Logger,
		registry: registry,
		perks:    perks,
		pipeline: pipeline,
	}, nil
}

// Load fills the registry and the perk catalog from the backend.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.registry.Load(ctx); err != nil {
		return err
	}
	if err := e.perks.Reload(ctx); err != nil {
		return err
	}
	return nil
}

// Seed stores the world's teams and points and the perk catalog, then loads
// everything back. Points already stored keep their owners.
func (e *Engine) Seed(ctx context.Context, world catalog.World, defs []core.PerkDefinition) error {
	if err := e.Load(ctx); err != nil {
		return err
	}
	if len(world.Teams) > 0 {
		if err := e.backend.UpsertTeams(ctx, world.Teams); err != nil {
			return fmt.Errorf("storing teams: %w", err)
		}
	}
	if len(world.Points) > 0 {
		if err := e.registry.RegisterPoints(ctx, world.Points); err != nil {
			return err
		}
	}
	if err := e.perks.LoadCatalog(ctx, defs); err != nil {
		return err
	}

	e.logger.Info("World seeded",
		"teams", len(world.Teams),
		"points", len(world.Points),
		"perks", len(defs))
	return nil
}

// Conquer reports that team won the point.
func (e *Engine) Conquer(ctx context.Context, point core.PointID, team core.TeamID) (territory.Outcome, error) {
	return e.registry.Conquer(ctx, point, team)
}

// ScoreBonusFor returns the influence multiplier bonus team earns acting on point.
func (e *Engine) ScoreBonusFor(ctx context.Context, team core.TeamID, point core.PointID) float64 {
	return e.pipeline.Compute(ctx, team, point)
}

// ActivatePerk activates the perk with code for team, optionally aimed at target.
func (e *Engine) ActivatePerk(ctx context.Context, team core.TeamID, code string, target core.PointID) (core.ActivePerk, error) {
	return e.perks.Activate(ctx, team, code, target)
}

// ActivePerks returns the perks in force for team.
func (e *Engine) ActivePerks(ctx context.Context, team core.TeamID) ([]core.ActivePerk, error) {
	return e.perks.ActivePerks(ctx, team)
}

// ActivePerksOnTarget returns the perks in force on target. An empty target has none.
func (e *Engine) ActivePerksOnTarget(ctx context.Context, target core.PointID) ([]core.ActivePerk, error) {
	if target == "" {
		return nil, nil
	}
	return e.perks.ActivePerksOnTarget(ctx, target)
}

// ExpirePerks deletes the perks that expired before now.
func (e *Engine) ExpirePerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error) {
	return e.perks.ExpirePerks(ctx, now)
}

// BootstrapZones regenerates the zone catalog from points.
func (e *Engine) BootstrapZones(ctx context.Context, points []core.Point, radiusKm float64, minPointsPerZone int) ([]core.Zone, error) {
	return e.registry.BootstrapZones(ctx, points, radiusKm, minPointsPerZone)
}

// BootstrapRoutes regenerates the route catalog from points.
func (e *Engine) BootstrapRoutes(ctx context.Context, points []core.Point, maxJumpKm float64, minPointsPerRoute int) ([]core.Route, error) {
	return e.registry.BootstrapRoutes(ctx, points, maxJumpKm, minPointsPerRoute)
}

// TeamStatus summarizes a team's progression.
type TeamStatus struct {
	Team          core.TeamID `json:"team"`
	Name          string      `json:"name"`
	XP            int64       `json:"xp"`
	Level         int         `json:"level"`
	XPToNextLevel int64       `json:"xpToNextLevel"`
	Unlocked      []string    `json:"unlocked"`
	XPMultiplier  float64     `json:"xpMultiplier"`
}

// TeamStatus returns level, unlocked perk codes and the current XP multiplier of team.
func (e *Engine) TeamStatus(ctx context.Context, id core.TeamID) (TeamStatus, error) {
	team, err := e.backend.Team(ctx, id)
	if err != nil {
		return TeamStatus{}, err
	}
	unlocked, err := e.perks.UnlockedPerks(ctx, id)
	if err != nil {
		return TeamStatus{}, err
	}
	mult, err := e.perks.XPMultiplierFor(ctx, id)
	if err != nil {
		return TeamStatus{}, err
	}

	st := TeamStatus{
		Team:          team.ID,
		Name:          team.Name,
		XP:            team.XP,
		Level:         progression.LevelForXP(team.XP),
		XPToNextLevel: progression.XPForNextLevel(team.XP),
		Unlocked:      make([]string, 0, len(unlocked)),
		XPMultiplier:  mult,
	}
	for _, d := range unlocked {
		st.Unlocked = append(st.Unlocked, d.Code)
	}
	return st, nil
}

// Points returns every registered point with its current owner.
func (e *Engine) Points() []core.Point {
	return e.registry.Points()
}

// Registry exposes the territory registry for catalog queries.
func (e *Engine) Registry() *territory.Registry {
	return e.registry
}

// Progression exposes the perk service for level and XP queries.
func (e *Engine) Progression() *progression.Service {
	return e.perks
}

// Modifiers returns the names of the influence modifiers in evaluation order.
func (e *Engine) Modifiers() []string {
	return e.pipeline.Names()
}
