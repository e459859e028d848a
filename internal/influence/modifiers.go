package influence

import (
	"context"
	"log/slog"

	"github.com/sportsin/territory/internal/progression"
	"github.com/sportsin/territory/pkg/core"
)

const (
	RouteOrder = 10
	PerkOrder  = 20
)

// RouteBonusSource yields the route bonuses a team holds on routes through a point.
type RouteBonusSource interface {
	RouteBonusesAt(team core.TeamID, point core.PointID) []core.RouteBonus
}

// PerkSource yields the perks in force on a point and their definitions.
type PerkSource interface {
	ActivePerksOnTarget(ctx context.Context, target core.PointID) ([]core.ActivePerk, error)
	Definition(id int64) (core.PerkDefinition, bool)
}

// RouteModifier adds every score multiplier bonus the team earns on routes
// that pass through the point.
type RouteModifier struct {
	routes RouteBonusSource
}

func NewRouteModifier(routes RouteBonusSource) *RouteModifier {
	return &RouteModifier{routes: routes}
}

func (m *RouteModifier) Name() string { return "route" }

func (m *RouteModifier) Order() int { return RouteOrder }

func (m *RouteModifier) Apply(_ context.Context, team core.TeamID, point core.PointID, acc float64) float64 {
	bonus := 0.0
	for _, b := range m.routes.RouteBonusesAt(team, point) {
		if b.Kind == core.BonusScoreMultiplier {
			bonus += b.Value
		}
	}
	return acc + bonus
}

// PerkModifier applies the influence effects of perks targeted at the point.
// Each effect sees the accumulator it was handed as its base.
type PerkModifier struct {
	perks  PerkSource
	logger *slog.Logger
}

func NewPerkModifier(perks PerkSource, logger *slog.Logger) *PerkModifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &PerkModifier{perks: perks, logger: logger}
}

func (m *PerkModifier) Name() string { return "perk" }

func (m *PerkModifier) Order() int { return PerkOrder }

func (m *PerkModifier) Apply(ctx context.Context, team core.TeamID, point core.PointID, acc float64) float64 {
	active, err := m.perks.ActivePerksOnTarget(ctx, point)
	if err != nil {
		m.logger.Error("Failed to load perks on target", "point", point, "error", err)
		return acc
	}

	delta := 0.0
	for _, p := range active {
		def, ok := m.perks.Definition(p.DefinitionID)
		if !ok {
			m.logger.Warn("Active perk has no definition", "perk", p.ID, "definition", p.DefinitionID)
			continue
		}
		eff, ok := progression.EffectFor(def.EffectType)
		if !ok || !eff.Applies(p.Team, team) {
			continue
		}
		delta += eff.Influence(def.Params, acc)
	}
	return acc + delta
}
