package progression

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sportsin/territory/internal/cache"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dependencies holds all dependencies for the Service.
type Dependencies struct {
	Teams   storage.TeamStore
	Perks   storage.PerkStore
	Catalog *cache.PerkCache
	Logger  *slog.Logger
	Events  core.EventSink
	Clock   func() time.Time
	NewID   func() string
}

// Service activates, lists and expires perks.
type Service struct {
	teams   storage.TeamStore
	perks   storage.PerkStore
	catalog *cache.PerkCache
	logger  *slog.Logger
	events  core.EventSink
	now     func() time.Time
	newID   func() string

	keys *keyLocks
	// sweep is held for reading by activations and for writing by ExpirePerks,
	// so a sweep never sees a half-made activation.
	sweep sync.RWMutex

	activated metric.Int64Counter
	rejected  metric.Int64Counter
	expired   metric.Int64Counter
}

// New creates a Service. The catalog starts empty; call LoadCatalog or Reload.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Service, error) {
	s := &Service{
		teams:   deps.Teams,
		perks:   deps.Perks,
		catalog: deps.Catalog,
		logger:  deps.Logger,
		events:  deps.Events,
		now:     deps.Clock,
		newID:   deps.NewID,
		keys:    newKeyLocks(),
	}
	if s.catalog == nil {
		s.catalog = cache.NewPerkCache()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.events == nil {
		s.events = core.DiscardEvents
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	m := meter()

	var err error
	s.activated, err = m.Int64Counter(
		"progression.perks.activated",
		metric.WithDescription("Successful perk activations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating activated counter: %w", err)
	}

	s.rejected, err = m.Int64Counter(
		"progression.perks.rejected",
		metric.WithDescription("Refused perk activations by rule"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	s.expired, err = m.Int64Counter(
		"progression.perks.expired",
		metric.WithDescription("Perk instances removed by the expiry sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating expired counter: %w", err)
	}

	return s, nil
}

// LoadCatalog stores defs and refreshes the cached catalog from the store, so
// definitions pick up their stored ids.
func (s *Service) LoadCatalog(ctx context.Context, defs []core.PerkDefinition) error {
	if err := s.perks.UpsertPerkDefinitions(ctx, defs); err != nil {
		return fmt.Errorf("storing perk definitions: %w", err)
	}
	return s.Reload(ctx)
}

// Reload refreshes the cached catalog from the store.
func (s *Service) Reload(ctx context.Context) error {
	defs, err := s.perks.PerkDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("loading perk definitions: %w", err)
	}
	s.catalog.Replace(defs)
	s.logger.Info("Perk catalog loaded", "definitions", len(defs))
	return nil
}

// Definitions returns the cached catalog ordered by id.
func (s *Service) Definitions() []core.PerkDefinition {
	return s.catalog.All()
}

// Definition looks a definition up by id.
func (s *Service) Definition(id int64) (core.PerkDefinition, bool) {
	return s.catalog.GetByID(id)
}

// Activate gives team a new instance of the perk with code, optionally aimed at target.
//
// Fails with a NotFoundError for an unknown code or team, and with an
// IneligibleError when the level, instance, cooldown or stacking rule refuses it.
// Retrying a successful call creates a second instance.
func (s *Service) Activate(ctx context.Context, teamID core.TeamID, code string, target core.PointID) (core.ActivePerk, error) {
	def, ok := s.catalog.Get(code)
	if !ok {
		return core.ActivePerk{}, core.NotFound("perk", code)
	}
	team, err := s.teams.Team(ctx, teamID)
	if err != nil {
		return core.ActivePerk{}, err
	}

	unlock := s.keys.lock(perkKey{team: teamID, definitionID: def.ID})
	defer unlock()
	s.sweep.RLock()
	defer s.sweep.RUnlock()

	now := s.now()

	existing, err := s.perks.ActivePerks(ctx, storage.PerkFilter{Team: teamID, DefinitionID: def.ID})
	if err != nil {
		return core.ActivePerk{}, fmt.Errorf("loading active perks: %w", err)
	}
	at, known, err := s.perks.LastPerkExpiry(ctx, teamID, def.ID)
	if err != nil {
		return core.ActivePerk{}, fmt.Errorf("loading perk cooldown: %w", err)
	}

	verdict := CanActivate(team, def, existing, Expiry{At: at, Known: known}, now)
	if verdict.Allowed {
		verdict = CheckStacking(def, existing, target, now)
	}
	if !verdict.Allowed {
		s.rejected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("code", def.Code),
			attribute.String("rule", string(verdict.Rule))))
		s.logger.Debug("Perk activation refused",
			"team", teamID,
			"perk", def.Code,
			"target", target,
			"rule", verdict.Rule,
			"reason", verdict.Reason)
		return core.ActivePerk{}, verdict.Err(def.Code)
	}

	perk := core.ActivePerk{
		ID:           s.newID(),
		Team:         teamID,
		DefinitionID: def.ID,
		Code:         def.Code,
		Target:       target,
		ActivatedAt:  now,
		ExpiresAt:    now.Add(def.Duration),
		UsageCount:   1,
	}
	if err := s.perks.CreateActivePerk(ctx, perk); err != nil {
		return core.ActivePerk{}, fmt.Errorf("storing active perk: %w", err)
	}

	s.activated.Add(ctx, 1, metric.WithAttributes(attribute.String("code", def.Code)))
	s.logger.Info("Perk activated",
		"team", teamID,
		"perk", def.Code,
		"target", target,
		"id", perk.ID,
		"expiresAt", perk.ExpiresAt)
	s.events.Publish(core.Event{
		Kind:  core.EventPerkActivated,
		Time:  now,
		Team:  teamID,
		Point: target,
		Perk:  def.Code,
	})

	return perk, nil
}

// ExpirePerks deletes every perk whose expiry is before now and remembers each
// expiry for the cooldown rule.
func (s *Service) ExpirePerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error) {
	s.sweep.Lock()
	defer s.sweep.Unlock()

	removed, err := s.perks.DeleteExpiredPerks(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("deleting expired perks: %w", err)
	}

	for _, p := range removed {
		if err := s.perks.RecordPerkExpiry(ctx, p.Team, p.DefinitionID, p.ExpiresAt); err != nil {
			s.logger.Error("Failed to record perk expiry",
				"team", p.Team,
				"perk", p.Code,
				"error", err)
		}
		s.events.Publish(core.Event{
			Kind:  core.EventPerkExpired,
			Time:  now,
			Team:  p.Team,
			Point: p.Target,
			Perk:  p.Code,
		})
	}

	if len(removed) > 0 {
		s.expired.Add(ctx, int64(len(removed)))
		s.logger.Info("Expired perks removed", "count", len(removed))
	}
	return removed, nil
}

// ActivePerks returns the perks in force for team right now.
func (s *Service) ActivePerks(ctx context.Context, team core.TeamID) ([]core.ActivePerk, error) {
	if team == core.NoTeam {
		return nil, nil
	}
	return s.activeWhere(ctx, storage.PerkFilter{Team: team})
}

// ActivePerksOnTarget returns the perks in force on target right now.
func (s *Service) ActivePerksOnTarget(ctx context.Context, target core.PointID) ([]core.ActivePerk, error) {
	if target == "" {
		return nil, nil
	}
	return s.activeWhere(ctx, storage.PerkFilter{Target: target})
}

func (s *Service) activeWhere(ctx context.Context, filter storage.PerkFilter) ([]core.ActivePerk, error) {
	stored, err := s.perks.ActivePerks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading active perks: %w", err)
	}
	now := s.now()
	out := stored[:0]
	for _, p := range stored {
		if p.IsActive(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Level returns the team's current level.
func (s *Service) Level(ctx context.Context, teamID core.TeamID) (int, error) {
	team, err := s.teams.Team(ctx, teamID)
	if err != nil {
		return 0, err
	}
	return LevelForXP(team.XP), nil
}

// UnlockedPerks returns the definitions the team's level allows.
func (s *Service) UnlockedPerks(ctx context.Context, teamID core.TeamID) ([]core.PerkDefinition, error) {
	level, err := s.Level(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var out []core.PerkDefinition
	for _, d := range s.catalog.All() {
		if d.RequiredLevel <= level {
			out = append(out, d)
		}
	}
	return out, nil
}

// XPMultiplierFor multiplies the XP factors of every perk in force for team.
// It is 1 when no XP perk is active.
func (s *Service) XPMultiplierFor(ctx context.Context, team core.TeamID) (float64, error) {
	active, err := s.ActivePerks(ctx, team)
	if err != nil {
		return 1, err
	}
	factor := 1.0
	for _, p := range active {
		def, ok := s.catalog.GetByID(p.DefinitionID)
		if !ok {
			continue
		}
		if e, ok := EffectFor(def.EffectType); ok {
			factor *= e.XPFactor(def.Params)
		}
	}
	return factor, nil
}
