// Package handlers turns dispatcher events into engine calls.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/dispatcher"
	"github.com/sportsin/territory/internal/engine"
	"github.com/sportsin/territory/internal/territory"
	"github.com/sportsin/territory/pkg/core"
	"golang.org/x/time/rate"
)

// Command names understood by the engine.
const (
	CmdConquer         = ":CONQUER:"
	CmdScoreBonus      = ":SCORE:BONUS:"
	CmdPerkActivate    = ":PERK:ACTIVATE:"
	CmdPerksTeam       = ":PERKS:TEAM:"
	CmdPerksTarget     = ":PERKS:TARGET:"
	CmdPerksExpire     = ":PERKS:EXPIRE:"
	CmdTeamStatus      = ":TEAM:STATUS:"
	CmdPoints          = ":POINTS:"
	CmdBootstrapZones  = ":BOOTSTRAP:ZONES:"
	CmdBootstrapRoutes = ":BOOTSTRAP:ROUTES:"
)

// Engine is the subset of *engine.Engine the handlers drive.
type Engine interface {
	Conquer(ctx context.Context, point core.PointID, team core.TeamID) (territory.Outcome, error)
	ScoreBonusFor(ctx context.Context, team core.TeamID, point core.PointID) float64
	ActivatePerk(ctx context.Context, team core.TeamID, code string, target core.PointID) (core.ActivePerk, error)
	ActivePerks(ctx context.Context, team core.TeamID) ([]core.ActivePerk, error)
	ActivePerksOnTarget(ctx context.Context, target core.PointID) ([]core.ActivePerk, error)
	ExpirePerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error)
	TeamStatus(ctx context.Context, team core.TeamID) (engine.TeamStatus, error)
	BootstrapZones(ctx context.Context, points []core.Point, radiusKm float64, minPointsPerZone int) ([]core.Zone, error)
	BootstrapRoutes(ctx context.Context, points []core.Point, maxJumpKm float64, minPointsPerRoute int) ([]core.Route, error)
	Points() []core.Point
}

var _ Engine = (*engine.Engine)(nil)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Engine   Engine
	Logger   *slog.Logger
	Defaults config.WorldConfig
	Clock    func() time.Time

	// ActivationRate throttles perk activations per team. Zero disables it.
	ActivationRate  rate.Limit
	ActivationBurst int
}

// Service provides the handler methods registered with the dispatcher
type Service struct {
	deps Dependencies

	limitMu  sync.Mutex
	limiters map[core.TeamID]*rate.Limiter
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.ActivationBurst <= 0 {
		deps.ActivationBurst = 1
	}
	return &Service{deps: deps, limiters: make(map[core.TeamID]*rate.Limiter)}
}

// Register binds every command to d. Commands run synchronously so callers
// get their result back.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdConquer, s.Conquer, dispatcher.Logged())
	d.Register(CmdScoreBonus, s.ScoreBonus, dispatcher.Logged())
	d.Register(CmdPerkActivate, s.ActivatePerk, dispatcher.Logged())
	d.Register(CmdPerksTeam, s.PerksForTeam, dispatcher.Logged())
	d.Register(CmdPerksTarget, s.PerksOnTarget, dispatcher.Logged())
	d.Register(CmdPerksExpire, s.ExpirePerks, dispatcher.Logged())
	d.Register(CmdTeamStatus, s.TeamStatus, dispatcher.Logged())
	d.Register(CmdPoints, s.Points, dispatcher.Logged())
	d.Register(CmdBootstrapZones, s.BootstrapZones, dispatcher.Logged())
	d.Register(CmdBootstrapRoutes, s.BootstrapRoutes, dispatcher.Logged())
}

// Conquer handles ":CONQUER: <point> <team>". A missing team is logged and ignored.
func (s *Service) Conquer(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 2); err != nil {
		return nil, err
	}
	point := core.PointID(e.Args[0])
	team := parseTeam(e.Args[1])
	if team == core.NoTeam {
		s.deps.Logger.WarnContext(ctx, "Ignoring conquest without a team",
			"point", point, "team", e.Args[1])
		return nil, nil
	}
	return s.deps.Engine.Conquer(ctx, point, team)
}

// ScoreBonus handles ":SCORE:BONUS: <team> <point>".
func (s *Service) ScoreBonus(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 2); err != nil {
		return nil, err
	}
	return s.deps.Engine.ScoreBonusFor(ctx, parseTeam(e.Args[0]), core.PointID(e.Args[1])), nil
}

// ActivatePerk handles ":PERK:ACTIVATE: <team> <code> [target]".
func (s *Service) ActivatePerk(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 2); err != nil {
		return nil, err
	}
	team := parseTeam(e.Args[0])
	code := e.Args[1]
	var target core.PointID
	if len(e.Args) > 2 {
		target = core.PointID(e.Args[2])
	}
	if team != core.NoTeam && !s.limiter(team).AllowN(s.deps.Clock(), 1) {
		s.deps.Logger.WarnContext(ctx, "Perk activation throttled", "team", team, "code", code)
		return nil, &core.IneligibleError{Code: code, Reason: "too many activation attempts"}
	}
	return s.deps.Engine.ActivatePerk(ctx, team, code, target)
}

func (s *Service) limiter(team core.TeamID) *rate.Limiter {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()
	l, ok := s.limiters[team]
	if !ok {
		limit := s.deps.ActivationRate
		if limit <= 0 {
			limit = rate.Inf
		}
		l = rate.NewLimiter(limit, s.deps.ActivationBurst)
		s.limiters[team] = l
	}
	return l
}

// PerksForTeam handles ":PERKS:TEAM: <team>".
func (s *Service) PerksForTeam(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 1); err != nil {
		return nil, err
	}
	team := parseTeam(e.Args[0])
	if team == core.NoTeam {
		return []core.ActivePerk{}, nil
	}
	return nonNil(s.deps.Engine.ActivePerks(ctx, team))
}

// PerksOnTarget handles ":PERKS:TARGET: <point>".
func (s *Service) PerksOnTarget(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 1); err != nil {
		return nil, err
	}
	return nonNil(s.deps.Engine.ActivePerksOnTarget(ctx, core.PointID(e.Args[0])))
}

// ExpirePerks handles ":PERKS:EXPIRE: [unixSeconds]". Without a valid argument
// the service clock decides what has expired.
func (s *Service) ExpirePerks(ctx context.Context, e dispatcher.Event) (any, error) {
	now := s.deps.Clock()
	if len(e.Args) > 0 && e.Args[0] != "" {
		sec, err := strconv.ParseInt(e.Args[0], 10, 64)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "Ignoring malformed expiry time", "value", e.Args[0])
		} else {
			now = time.Unix(sec, 0).UTC()
		}
	}
	return nonNil(s.deps.Engine.ExpirePerks(ctx, now))
}

// TeamStatus handles ":TEAM:STATUS: <team>".
func (s *Service) TeamStatus(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := needArgs(e, 1); err != nil {
		return nil, err
	}
	return s.deps.Engine.TeamStatus(ctx, parseTeam(e.Args[0]))
}

// Points handles ":POINTS:".
func (s *Service) Points(_ context.Context, _ dispatcher.Event) (any, error) {
	return s.deps.Engine.Points(), nil
}

// BootstrapZones handles ":BOOTSTRAP:ZONES: [radiusKm] [minPoints]". Missing
// or malformed values fall back to the configured defaults.
func (s *Service) BootstrapZones(ctx context.Context, e dispatcher.Event) (any, error) {
	radius := floatArg(e.Args, 0, s.deps.Defaults.ZoneRadiusKm)
	minPoints := intArg(e.Args, 1, s.deps.Defaults.MinPointsPerZone)
	zones, err := s.deps.Engine.BootstrapZones(ctx, s.deps.Engine.Points(), radius, minPoints)
	if err != nil {
		return nil, err
	}
	s.deps.Logger.InfoContext(ctx, "Zones bootstrapped",
		"zones", len(zones), "radiusKm", radius, "minPoints", minPoints)
	if zones == nil {
		zones = []core.Zone{}
	}
	return zones, nil
}

// BootstrapRoutes handles ":BOOTSTRAP:ROUTES: [maxJumpKm] [minPoints]".
func (s *Service) BootstrapRoutes(ctx context.Context, e dispatcher.Event) (any, error) {
	jump := floatArg(e.Args, 0, s.deps.Defaults.RouteMaxJumpKm)
	minPoints := intArg(e.Args, 1, s.deps.Defaults.MinPointsPerRoute)
	routes, err := s.deps.Engine.BootstrapRoutes(ctx, s.deps.Engine.Points(), jump, minPoints)
	if err != nil {
		return nil, err
	}
	s.deps.Logger.InfoContext(ctx, "Routes bootstrapped",
		"routes", len(routes), "maxJumpKm", jump, "minPoints", minPoints)
	if routes == nil {
		routes = []core.Route{}
	}
	return routes, nil
}

func needArgs(e dispatcher.Event, n int) error {
	if len(e.Args) < n {
		return fmt.Errorf("%s expects %d arguments, got %d", e.Command, n, len(e.Args))
	}
	return nil
}

// parseTeam reads a team id. Game scripts send numbers as floats, so "2.0"
// is accepted. Anything else is NoTeam.
func parseTeam(s string) core.TeamID {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return core.NoTeam
		}
		return core.TeamID(id)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return core.NoTeam
	}
	return core.TeamID(f)
}

func floatArg(args []string, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func intArg(args []string, i int, def int) int {
	if i >= len(args) {
		return def
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil(perks []core.ActivePerk, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if perks == nil {
		perks = []core.ActivePerk{}
	}
	return perks, nil
}
