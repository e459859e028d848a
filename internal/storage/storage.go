// Package storage defines the persistence port of the territory engine.
package storage

import (
	"context"
	"time"

	"github.com/sportsin/territory/pkg/core"
)

// TerritoryStore persists points, zones and routes.
type TerritoryStore interface {
	Points(ctx context.Context) ([]core.Point, error)
	// UpsertPoints inserts or replaces points by id, owner included.
	UpsertPoints(ctx context.Context, points []core.Point) error
	// SetPointOwner returns a NotFoundError for unknown points.
	SetPointOwner(ctx context.Context, id core.PointID, team core.TeamID) error

	Zones(ctx context.Context) ([]core.Zone, error)
	// ReplaceZones drops the stored zone catalog and writes zones in its place.
	ReplaceZones(ctx context.Context, zones []core.Zone) error
	SetZoneOwner(ctx context.Context, id core.ZoneID, team core.TeamID) error

	Routes(ctx context.Context) ([]core.Route, error)
	ReplaceRoutes(ctx context.Context, routes []core.Route) error
}

// TeamStore reads team progression data.
type TeamStore interface {
	// Team returns a NotFoundError for unknown teams.
	Team(ctx context.Context, id core.TeamID) (core.Team, error)
	UpsertTeams(ctx context.Context, teams []core.Team) error
}

// PerkFilter narrows an active perk query. Zero fields match anything.
type PerkFilter struct {
	Team         core.TeamID
	DefinitionID int64
	Target       core.PointID
}

// Match reports whether p satisfies the filter.
func (f PerkFilter) Match(p core.ActivePerk) bool {
	if f.Team != core.NoTeam && p.Team != f.Team {
		return false
	}
	if f.DefinitionID != 0 && p.DefinitionID != f.DefinitionID {
		return false
	}
	if f.Target != "" && p.Target != f.Target {
		return false
	}
	return true
}

// PerkStore persists the perk catalog, active perk instances and the cooldown ledger.
type PerkStore interface {
	PerkDefinitions(ctx context.Context) ([]core.PerkDefinition, error)
	UpsertPerkDefinitions(ctx context.Context, defs []core.PerkDefinition) error

	// ActivePerks returns stored instances, expired-but-unswept ones included.
	ActivePerks(ctx context.Context, filter PerkFilter) ([]core.ActivePerk, error)
	CreateActivePerk(ctx context.Context, perk core.ActivePerk) error
	// DeleteExpiredPerks removes every instance with ExpiresAt before now and returns them.
	DeleteExpiredPerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error)

	// LastPerkExpiry returns the latest recorded expiry of a team's definition.
	LastPerkExpiry(ctx context.Context, team core.TeamID, definitionID int64) (time.Time, bool, error)
	// RecordPerkExpiry keeps the later of at and the stored expiry.
	RecordPerkExpiry(ctx context.Context, team core.TeamID, definitionID int64, at time.Time) error
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	TerritoryStore
	TeamStore
	PerkStore
}

// Snapshotter is an optional interface for backends that write point-in-time
// copies of their state to disk.
type Snapshotter interface {
	Snapshot() (string, error)
	LastSnapshotPath() string
}
