// Package territory owns point ownership and keeps zone control consistent with it.
package territory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sportsin/territory/internal/route"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/internal/zone"
	"github.com/sportsin/territory/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const pointLockStripes = 64

// Dependencies holds all dependencies for the Registry.
type Dependencies struct {
	Store  storage.TerritoryStore
	Logger *slog.Logger
	Events core.EventSink
	Clock  func() time.Time
}

// ZoneChange records a zone whose controller changed during a conquest.
type ZoneChange struct {
	Zone core.ZoneID
	Old  core.TeamID
	New  core.TeamID
}

// Outcome describes what a conquest did.
type Outcome struct {
	Point       core.PointID
	Team        core.TeamID
	Previous    core.TeamID
	Defended    bool
	ZoneChanges []ZoneChange
	Bonuses     []core.RouteBonus
}

// pointState keeps immutable point metadata next to its live owner.
type pointState struct {
	meta  core.Point
	owner atomic.Int64
}

func (p *pointState) snapshot() core.Point {
	out := p.meta
	out.Activities = slices.Clone(p.meta.Activities)
	out.Owner = core.TeamID(p.owner.Load())
	return out
}

// zoneState serializes recomputes of one zone. meta is never mutated after creation.
type zoneState struct {
	mu    sync.Mutex
	meta  core.Zone
	owner atomic.Int64
}

func (z *zoneState) snapshot() core.Zone {
	out := z.meta
	out.Points = slices.Clone(z.meta.Points)
	out.Owner = core.TeamID(z.owner.Load())
	return out
}

// Registry is the authoritative map of point owners and the conquest entry point.
type Registry struct {
	store  storage.TerritoryStore
	logger *slog.Logger
	events core.EventSink
	now    func() time.Time

	// mu guards the catalog maps. Conquests hold it for reading; bootstraps replace
	// the catalog under the write lock.
	mu          sync.RWMutex
	points      map[core.PointID]*pointState
	pointOrder  []core.PointID
	zones       map[core.ZoneID]*zoneState
	routes      []core.Route
	pointZones  map[core.PointID][]core.ZoneID // ascending, the lock order
	pointRoutes map[core.PointID][]int         // indexes into routes

	pointLocks [pointLockStripes]sync.Mutex

	conquests   metric.Int64Counter
	zoneChanges metric.Int64Counter
}

// New creates an empty Registry. Call Load to fill it from the store.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Registry, error) {
	r := &Registry{
		store:       deps.Store,
		logger:      deps.Logger,
		events:      deps.Events,
		now:         deps.Clock,
		points:      make(map[core.PointID]*pointState),
		zones:       make(map[core.ZoneID]*zoneState),
		pointZones:  make(map[core.PointID][]core.ZoneID),
		pointRoutes: make(map[core.PointID][]int),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.events == nil {
		r.events = core.DiscardEvents
	}
	if r.now == nil {
		r.now = time.Now
	}

	m := meter()

	var err error
	r.conquests, err = m.Int64Counter(
		"territory.conquests",
		metric.WithDescription("Conquest reports by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conquests counter: %w", err)
	}

	r.zoneChanges, err = m.Int64Counter(
		"territory.zone.changes",
		metric.WithDescription("Zone controller changes by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zone changes counter: %w", err)
	}

	return r, nil
}

// Load replaces the in-memory catalog with the store's points, zones and routes.
// Zone owners are recomputed from point owners so the control rule holds from the start.
func (r *Registry) Load(ctx context.Context) error {
	points, err := r.store.Points(ctx)
	if err != nil {
		return fmt.Errorf("loading points: %w", err)
	}
	zones, err := r.store.Zones(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}
	routes, err := r.store.Routes(ctx)
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.points = make(map[core.PointID]*pointState, len(points))
	r.pointOrder = r.pointOrder[:0]
	for _, p := range points {
		r.addPointLocked(p)
	}
	r.setRoutesLocked(routes)
	r.setZonesLocked(zones)
	r.recomputeAllLocked(ctx)

	r.logger.Info("Territory loaded",
		"points", len(r.points),
		"zones", len(r.zones),
		"routes", len(r.routes))
	return nil
}

// RegisterPoints adds points to the registry and the store. Points already known
// keep their current owner; only their metadata is replaced.
func (r *Registry) RegisterPoints(ctx context.Context, points []core.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	toStore := make([]core.Point, 0, len(points))
	for _, p := range points {
		if existing, ok := r.points[p.ID]; ok {
			p.Owner = core.TeamID(existing.owner.Load())
		}
		toStore = append(toStore, p)
	}
	if err := r.store.UpsertPoints(ctx, toStore); err != nil {
		return fmt.Errorf("storing points: %w", err)
	}

	touched := make(map[core.ZoneID]struct{})
	for _, p := range toStore {
		r.addPointLocked(p)
		for _, zid := range r.pointZones[p.ID] {
			touched[zid] = struct{}{}
		}
	}
	for zid := range touched {
		r.recomputeZoneLocked(ctx, r.zones[zid])
	}
	return nil
}

// Conquer records that team won point id.
//
// An unknown point yields a NotFoundError and changes nothing. A point already
// held by team is a successful defense and runs no cascade. Otherwise the new
// owner is persisted, every zone containing the point is recomputed, and the
// routes through the point are scanned for combo bonuses.
func (r *Registry) Conquer(ctx context.Context, id core.PointID, team core.TeamID) (Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Outcome{Point: id, Team: team}

	ps, ok := r.points[id]
	if !ok {
		r.logger.Warn("Conquest on unknown point", "point", id, "team", team)
		r.countConquest(ctx, "unknown_point")
		return out, core.NotFound("point", id)
	}

	// Zones first in ascending id order, then the point stripe.
	zoneIDs := r.pointZones[id]
	locked := make([]*zoneState, 0, len(zoneIDs))
	for _, zid := range zoneIDs {
		zs, ok := r.zones[zid]
		if !ok {
			continue
		}
		zs.mu.Lock()
		locked = append(locked, zs)
	}
	pl := r.pointLock(id)
	pl.Lock()

	previous := core.TeamID(ps.owner.Load())
	out.Previous = previous
	if previous == team {
		pl.Unlock()
		unlockZones(locked)

		out.Defended = true
		r.countConquest(ctx, "defended")
		r.logger.Debug("Point defended", "point", id, "team", team)
		r.events.Publish(core.Event{Kind: core.EventPointDefended, Time: r.now(), Team: team, Point: id})
		return out, nil
	}

	if err := r.store.SetPointOwner(ctx, id, team); err != nil {
		pl.Unlock()
		unlockZones(locked)
		r.countConquest(ctx, "error")
		return out, fmt.Errorf("storing owner of point %s: %w", id, err)
	}
	ps.owner.Store(int64(team))
	pl.Unlock()

	for _, zs := range locked {
		if change, ok := r.recomputeZoneLocked(ctx, zs); ok {
			out.ZoneChanges = append(out.ZoneChanges, change)
		}
	}
	unlockZones(locked)

	r.countConquest(ctx, "captured")
	r.logger.Info("Point captured", "point", id, "team", team, "previous", previous)

	now := r.now()
	r.events.Publish(core.Event{Kind: core.EventPointCaptured, Time: now, Team: team, Previous: previous, Point: id})
	for _, c := range out.ZoneChanges {
		kind := core.EventZoneCaptured
		if c.New == core.NoTeam {
			kind = core.EventZoneLost
		}
		r.events.Publish(core.Event{Kind: kind, Time: now, Team: c.New, Previous: c.Old, Point: id, Zone: c.Zone})
	}

	out.Bonuses = r.bonusesAtLocked(team, id)
	for _, b := range out.Bonuses {
		r.logger.Info("Route combo active",
			"team", team,
			"route", b.RouteID,
			"consecutive", b.Consecutive,
			"bonus", b.Value)
		r.events.Publish(core.Event{
			Kind:  core.EventRouteBonus,
			Time:  now,
			Team:  team,
			Point: id,
			Route: b.RouteID,
			Value: b.Value,
			Count: b.Consecutive,
		})
	}

	return out, nil
}

// BootstrapZones clusters points into zones and replaces the zone catalog with them.
// Each new zone starts with the controller its members' current owners give it.
func (r *Registry) BootstrapZones(ctx context.Context, points []core.Point, radiusKm float64, minPointsPerZone int) ([]core.Zone, error) {
	generated := zone.Generate(points, radiusKm, minPointsPerZone)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range generated {
		change := zone.Recompute(&generated[i], r.ownerLocked)
		r.logMissing(generated[i].ID, change.Missing)
	}

	if err := r.store.ReplaceZones(ctx, generated); err != nil {
		return nil, fmt.Errorf("storing zones: %w", err)
	}
	r.setZonesLocked(generated)

	r.logger.Info("Zones bootstrapped",
		"points", len(points),
		"zones", len(generated),
		"radiusKm", radiusKm,
		"minPointsPerZone", minPointsPerZone)
	r.events.Publish(core.Event{Kind: core.EventZonesGenerated, Time: r.now(), Count: len(generated)})

	return generated, nil
}

// BootstrapRoutes chains points into routes and replaces the route catalog with them.
func (r *Registry) BootstrapRoutes(ctx context.Context, points []core.Point, maxJumpKm float64, minPointsPerRoute int) ([]core.Route, error) {
	generated := route.Generate(points, maxJumpKm, minPointsPerRoute)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.ReplaceRoutes(ctx, generated); err != nil {
		return nil, fmt.Errorf("storing routes: %w", err)
	}
	r.setRoutesLocked(generated)

	r.logger.Info("Routes bootstrapped",
		"points", len(points),
		"routes", len(generated),
		"maxJumpKm", maxJumpKm,
		"minPointsPerRoute", minPointsPerRoute)
	r.events.Publish(core.Event{Kind: core.EventRoutesGenerated, Time: r.now(), Count: len(generated)})

	return generated, nil
}

// Owner returns the current owner of a point.
func (r *Registry) Owner(id core.PointID) (core.TeamID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerLocked(id)
}

// Point returns a copy of a point with its current owner.
func (r *Registry) Point(id core.PointID) (core.Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ps, ok := r.points[id]
	if !ok {
		return core.Point{}, core.NotFound("point", id)
	}
	return ps.snapshot(), nil
}

// Points returns every point in registration order.
func (r *Registry) Points() []core.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Point, 0, len(r.pointOrder))
	for _, id := range r.pointOrder {
		out = append(out, r.points[id].snapshot())
	}
	return out
}

// Zone returns a copy of a zone with its current controller.
func (r *Registry) Zone(id core.ZoneID) (core.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zs, ok := r.zones[id]
	if !ok {
		return core.Zone{}, core.NotFound("zone", id)
	}
	return zs.snapshot(), nil
}

// Zones returns every zone ordered by id.
func (r *Registry) Zones() []core.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Zone, 0, len(r.zones))
	for _, zs := range r.zones {
		out = append(out, zs.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ZonesForPoint returns the zones that have the point as a member.
func (r *Registry) ZonesForPoint(id core.PointID) []core.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Zone
	for _, zid := range r.pointZones[id] {
		if zs, ok := r.zones[zid]; ok {
			out = append(out, zs.snapshot())
		}
	}
	return out
}

// Route returns a route by id.
func (r *Registry) Route(id core.RouteID) (core.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.ID == id {
			return cloneRoute(rt), nil
		}
	}
	return core.Route{}, core.NotFound("route", id)
}

// Routes returns every route in catalog order.
func (r *Registry) Routes() []core.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, cloneRoute(rt))
	}
	return out
}

// RoutesForPoint returns the routes passing through the point.
func (r *Registry) RoutesForPoint(id core.PointID) []core.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Route
	for _, idx := range r.pointRoutes[id] {
		out = append(out, cloneRoute(r.routes[idx]))
	}
	return out
}

// RouteBonuses returns the combo bonuses team currently holds on any route.
func (r *Registry) RouteBonuses(team core.TeamID) []core.RouteBonus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return route.CalculateBonuses(r.routes, r.ownerLocked, team)
}

// RouteBonusesAt returns the combo bonuses team holds on routes through the point.
func (r *Registry) RouteBonusesAt(team core.TeamID, id core.PointID) []core.RouteBonus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bonusesAtLocked(team, id)
}

func (r *Registry) bonusesAtLocked(team core.TeamID, id core.PointID) []core.RouteBonus {
	idxs := r.pointRoutes[id]
	if len(idxs) == 0 {
		return nil
	}
	routes := make([]core.Route, 0, len(idxs))
	for _, idx := range idxs {
		routes = append(routes, r.routes[idx])
	}
	return route.CalculateBonuses(routes, r.ownerLocked, team)
}

func (r *Registry) ownerLocked(id core.PointID) (core.TeamID, bool) {
	ps, ok := r.points[id]
	if !ok {
		return core.NoTeam, false
	}
	return core.TeamID(ps.owner.Load()), true
}

// recomputeZoneLocked runs the control rule on zs, which the caller has locked,
// and persists a changed controller. A failed write restores the old controller
// so the next event retries it.
func (r *Registry) recomputeZoneLocked(ctx context.Context, zs *zoneState) (ZoneChange, bool) {
	working := zs.meta
	working.Owner = core.TeamID(zs.owner.Load())

	change := zone.Recompute(&working, r.ownerLocked)
	r.logMissing(zs.meta.ID, change.Missing)
	if !change.Changed {
		return ZoneChange{}, false
	}

	if err := r.store.SetZoneOwner(ctx, zs.meta.ID, change.New); err != nil {
		r.logger.Error("Failed to store zone controller",
			"zone", zs.meta.ID,
			"old", change.Old,
			"new", change.New,
			"error", err)
		return ZoneChange{}, false
	}
	zs.owner.Store(int64(change.New))

	kind := "captured"
	if change.Lost() {
		kind = "lost"
	}
	r.zoneChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	r.logger.Info("Zone controller changed", "zone", zs.meta.ID, "old", change.Old, "new", change.New)

	return ZoneChange{Zone: zs.meta.ID, Old: change.Old, New: change.New}, true
}

// recomputeAllLocked is used after a load, with the write lock held.
func (r *Registry) recomputeAllLocked(ctx context.Context) {
	for _, zs := range r.zones {
		r.recomputeZoneLocked(ctx, zs)
	}
}

func (r *Registry) logMissing(id core.ZoneID, missing []core.PointID) {
	for _, p := range missing {
		r.logger.Warn("Zone references unknown point", "zone", id, "point", p)
	}
}

func (r *Registry) addPointLocked(p core.Point) {
	if existing, ok := r.points[p.ID]; ok {
		owner := existing.owner.Load()
		ps := &pointState{meta: p}
		ps.owner.Store(owner)
		r.points[p.ID] = ps
		return
	}
	ps := &pointState{meta: p}
	ps.owner.Store(int64(p.Owner))
	r.points[p.ID] = ps
	r.pointOrder = append(r.pointOrder, p.ID)
}

func (r *Registry) setZonesLocked(zones []core.Zone) {
	r.zones = make(map[core.ZoneID]*zoneState, len(zones))
	r.pointZones = make(map[core.PointID][]core.ZoneID)
	for _, z := range zones {
		zs := &zoneState{meta: z}
		zs.meta.Points = slices.Clone(z.Points)
		zs.owner.Store(int64(z.Owner))
		r.zones[z.ID] = zs
		for _, p := range z.Points {
			r.pointZones[p] = append(r.pointZones[p], z.ID)
		}
	}
	for p := range r.pointZones {
		ids := r.pointZones[p]
		slices.Sort(ids)
		r.pointZones[p] = slices.Compact(ids)
	}
}

func (r *Registry) setRoutesLocked(routes []core.Route) {
	r.routes = make([]core.Route, 0, len(routes))
	r.pointRoutes = make(map[core.PointID][]int)
	for i, rt := range routes {
		r.routes = append(r.routes, cloneRoute(rt))
		seen := make(map[core.PointID]bool, len(rt.Points))
		for _, p := range rt.Points {
			if seen[p] {
				continue
			}
			seen[p] = true
			r.pointRoutes[p] = append(r.pointRoutes[p], i)
		}
	}
}

func (r *Registry) pointLock(id core.PointID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &r.pointLocks[h.Sum32()%pointLockStripes]
}

func (r *Registry) countConquest(ctx context.Context, result string) {
	r.conquests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func unlockZones(zones []*zoneState) {
	for i := len(zones) - 1; i >= 0; i-- {
		zones[i].mu.Unlock()
	}
}

func cloneRoute(rt core.Route) core.Route {
	rt.Points = slices.Clone(rt.Points)
	return rt
}
