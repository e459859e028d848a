// Package memory implements storage.Backend with mutex-guarded maps and
// gzip JSON snapshots.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/pkg/core"
)

type cooldownKey struct {
	team         core.TeamID
	definitionID int64
}

// Backend stores territory and progression state in memory
type Backend struct {
	cfg config.MemoryConfig

	points     map[core.PointID]core.Point
	pointOrder []core.PointID // insertion order, generators depend on it
	zones      map[core.ZoneID]core.Zone
	routes     map[core.RouteID]core.Route
	teams      map[core.TeamID]core.Team
	perkDefs   map[string]core.PerkDefinition // keyed by code
	perks      map[string]core.ActivePerk     // keyed by instance id
	cooldowns  map[cooldownKey]time.Time

	nextPerkDefID    int64
	lastSnapshotPath string
	mu               sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		points:    make(map[core.PointID]core.Point),
		zones:     make(map[core.ZoneID]core.Zone),
		routes:    make(map[core.RouteID]core.Route),
		teams:     make(map[core.TeamID]core.Team),
		perkDefs:  make(map[string]core.PerkDefinition),
		perks:     make(map[string]core.ActivePerk),
		cooldowns: make(map[cooldownKey]time.Time),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close writes a final snapshot when a snapshot directory is configured
func (b *Backend) Close() error {
	if b.cfg.SnapshotDir == "" {
		return nil
	}
	_, err := b.Snapshot()
	return err
}

// Points returns all points in insertion order
func (b *Backend) Points(_ context.Context) ([]core.Point, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Point, 0, len(b.pointOrder))
	for _, id := range b.pointOrder {
		out = append(out, clonePoint(b.points[id]))
	}
	return out, nil
}

// UpsertPoints inserts new points and replaces existing ones
func (b *Backend) UpsertPoints(_ context.Context, points []core.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range points {
		if _, ok := b.points[p.ID]; !ok {
			b.pointOrder = append(b.pointOrder, p.ID)
		}
		b.points[p.ID] = clonePoint(p)
	}
	return nil
}

// SetPointOwner changes a point's controlling team
func (b *Backend) SetPointOwner(_ context.Context, id core.PointID, team core.TeamID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.points[id]
	if !ok {
		return core.NotFound("point", id)
	}
	p.Owner = team
	b.points[id] = p
	return nil
}

// Zones returns all zones ordered by id
func (b *Backend) Zones(_ context.Context) ([]core.Zone, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Zone, 0, len(b.zones))
	for _, z := range b.zones {
		out = append(out, cloneZone(z))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReplaceZones swaps the zone catalog
func (b *Backend) ReplaceZones(_ context.Context, zones []core.Zone) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.zones = make(map[core.ZoneID]core.Zone, len(zones))
	for _, z := range zones {
		b.zones[z.ID] = cloneZone(z)
	}
	return nil
}

// SetZoneOwner changes a zone's controlling team
func (b *Backend) SetZoneOwner(_ context.Context, id core.ZoneID, team core.TeamID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	z, ok := b.zones[id]
	if !ok {
		return core.NotFound("zone", id)
	}
	z.Owner = team
	b.zones[id] = z
	return nil
}

// Routes returns all routes ordered by id
func (b *Backend) Routes(_ context.Context) ([]core.Route, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Route, 0, len(b.routes))
	for _, r := range b.routes {
		out = append(out, cloneRoute(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReplaceRoutes swaps the route catalog
func (b *Backend) ReplaceRoutes(_ context.Context, routes []core.Route) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.routes = make(map[core.RouteID]core.Route, len(routes))
	for _, r := range routes {
		b.routes[r.ID] = cloneRoute(r)
	}
	return nil
}

// Team returns a team by id
func (b *Backend) Team(_ context.Context, id core.TeamID) (core.Team, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.teams[id]
	if !ok {
		return core.Team{}, core.NotFound("team", id)
	}
	return t, nil
}

// UpsertTeams inserts or replaces teams
func (b *Backend) UpsertTeams(_ context.Context, teams []core.Team) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range teams {
		b.teams[t.ID] = t
	}
	return nil
}

// PerkDefinitions returns the perk catalog ordered by id
func (b *Backend) PerkDefinitions(_ context.Context) ([]core.PerkDefinition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.PerkDefinition, 0, len(b.perkDefs))
	for _, d := range b.perkDefs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertPerkDefinitions stores definitions by code. Definitions without an id
// keep the id of the stored definition with the same code, or get a new one.
func (b *Backend) UpsertPerkDefinitions(_ context.Context, defs []core.PerkDefinition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, d := range defs {
		code := strings.ToUpper(d.Code)
		if d.ID == 0 {
			if existing, ok := b.perkDefs[code]; ok {
				d.ID = existing.ID
			} else {
				b.nextPerkDefID++
				d.ID = b.nextPerkDefID
			}
		}
		if d.ID > b.nextPerkDefID {
			b.nextPerkDefID = d.ID
		}
		d.Code = code
		b.perkDefs[code] = d
	}
	return nil
}

// ActivePerks returns stored perk instances matching filter, oldest first
func (b *Backend) ActivePerks(_ context.Context, filter storage.PerkFilter) ([]core.ActivePerk, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.ActivePerk
	for _, p := range b.perks {
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	sortPerks(out)
	return out, nil
}

// CreateActivePerk stores a new perk instance
func (b *Backend) CreateActivePerk(_ context.Context, perk core.ActivePerk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.perks[perk.ID] = perk
	return nil
}

// DeleteExpiredPerks removes instances whose expiry is before now
func (b *Backend) DeleteExpiredPerks(_ context.Context, now time.Time) ([]core.ActivePerk, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []core.ActivePerk
	for id, p := range b.perks {
		if p.ExpiresAt.Before(now) {
			removed = append(removed, p)
			delete(b.perks, id)
		}
	}
	sortPerks(removed)
	return removed, nil
}

// LastPerkExpiry returns the recorded cooldown anchor for a team's definition
func (b *Backend) LastPerkExpiry(_ context.Context, team core.TeamID, definitionID int64) (time.Time, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	at, ok := b.cooldowns[cooldownKey{team, definitionID}]
	return at, ok, nil
}

// RecordPerkExpiry keeps the latest expiry seen for a team's definition
func (b *Backend) RecordPerkExpiry(_ context.Context, team core.TeamID, definitionID int64, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := cooldownKey{team, definitionID}
	if prev, ok := b.cooldowns[key]; !ok || at.After(prev) {
		b.cooldowns[key] = at
	}
	return nil
}

func sortPerks(perks []core.ActivePerk) {
	sort.Slice(perks, func(i, j int) bool {
		if !perks[i].ActivatedAt.Equal(perks[j].ActivatedAt) {
			return perks[i].ActivatedAt.Before(perks[j].ActivatedAt)
		}
		return perks[i].ID < perks[j].ID
	})
}

func clonePoint(p core.Point) core.Point {
	p.Activities = slices.Clone(p.Activities)
	return p
}

func cloneZone(z core.Zone) core.Zone {
	z.Points = slices.Clone(z.Points)
	return z
}

func cloneRoute(r core.Route) core.Route {
	r.Points = slices.Clone(r.Points)
	return r
}
