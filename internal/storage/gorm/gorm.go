// Package gormstorage implements storage.Backend on top of any GORM database.
// The postgres and sqlite backends wrap it.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sportsin/territory/internal/database"
	"github.com/sportsin/territory/internal/model"
	"github.com/sportsin/territory/internal/model/convert"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend with GORM.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{db: deps.DB, logger: logger}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init runs the schema migration.
func (b *Backend) Init() error {
	if b.db == nil {
		return errors.New("gorm backend has no database")
	}
	b.logger.Info("Migrating schema", "dialect", b.db.Name())
	return database.Migrate(b.db)
}

// Close is a no-op; whoever opened the connection closes it.
func (b *Backend) Close() error {
	return nil
}

// Points returns all points in insertion order
func (b *Backend) Points(ctx context.Context) ([]core.Point, error) {
	var rows []model.Point
	if err := b.db.WithContext(ctx).Order("position").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading points: %w", err)
	}
	out := make([]core.Point, len(rows))
	for i, r := range rows {
		out[i] = convert.PointToCore(r)
	}
	return out, nil
}

// UpsertPoints inserts new points at the end of the order and replaces existing ones in place
func (b *Backend) UpsertPoints(ctx context.Context, points []core.Point) error {
	if len(points) == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&model.Point{}).Select("COALESCE(MAX(position), 0)").Scan(&next).Error; err != nil {
			return fmt.Errorf("reading point order: %w", err)
		}

		for _, p := range points {
			var existing model.Point
			err := tx.Select("id", "position").Where("id = ?", string(p.ID)).Take(&existing).Error
			position := existing.Position
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				next++
				position = next
			case err != nil:
				return fmt.Errorf("looking up point %s: %w", p.ID, err)
			}

			row := convert.CoreToPoint(p, position)
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("saving point %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// SetPointOwner changes a point's controlling team
func (b *Backend) SetPointOwner(ctx context.Context, id core.PointID, team core.TeamID) error {
	res := b.db.WithContext(ctx).Model(&model.Point{}).
		Where("id = ?", string(id)).
		Updates(map[string]any{"owner_id": int64(team), "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("updating point owner: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("point", id)
	}
	return nil
}

// Zones returns all zones ordered by id
func (b *Backend) Zones(ctx context.Context) ([]core.Zone, error) {
	var rows []model.Zone
	if err := b.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading zones: %w", err)
	}
	out := make([]core.Zone, len(rows))
	for i, r := range rows {
		out[i] = convert.ZoneToCore(r)
	}
	return out, nil
}

// ReplaceZones swaps the zone catalog in one transaction
func (b *Backend) ReplaceZones(ctx context.Context, zones []core.Zone) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Zone{}).Error; err != nil {
			return fmt.Errorf("clearing zones: %w", err)
		}
		if len(zones) == 0 {
			return nil
		}

		centers, err := pointsByID(tx)
		if err != nil {
			return err
		}
		rows := make([]model.Zone, len(zones))
		for i, z := range zones {
			rows[i] = convert.CoreToZone(z, centers[z.Center])
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("writing zones: %w", err)
		}
		return nil
	})
}

// SetZoneOwner changes a zone's controlling team
func (b *Backend) SetZoneOwner(ctx context.Context, id core.ZoneID, team core.TeamID) error {
	res := b.db.WithContext(ctx).Model(&model.Zone{}).
		Where("id = ?", int64(id)).
		Updates(map[string]any{"owner_id": int64(team), "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("updating zone owner: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("zone", id)
	}
	return nil
}

// Routes returns all routes ordered by id
func (b *Backend) Routes(ctx context.Context) ([]core.Route, error) {
	var rows []model.Route
	if err := b.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	out := make([]core.Route, len(rows))
	for i, r := range rows {
		out[i] = convert.RouteToCore(r)
	}
	return out, nil
}

// ReplaceRoutes swaps the route catalog in one transaction
func (b *Backend) ReplaceRoutes(ctx context.Context, routes []core.Route) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Route{}).Error; err != nil {
			return fmt.Errorf("clearing routes: %w", err)
		}
		if len(routes) == 0 {
			return nil
		}

		points, err := pointsByID(tx)
		if err != nil {
			return err
		}
		rows := make([]model.Route, len(routes))
		for i, r := range routes {
			rows[i] = convert.CoreToRoute(r, points)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("writing routes: %w", err)
		}
		return nil
	})
}

// Team returns a team by id
func (b *Backend) Team(ctx context.Context, id core.TeamID) (core.Team, error) {
	var row model.Team
	err := b.db.WithContext(ctx).Where("id = ?", int64(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Team{}, core.NotFound("team", id)
	}
	if err != nil {
		return core.Team{}, fmt.Errorf("loading team: %w", err)
	}
	return convert.TeamToCore(row), nil
}

// UpsertTeams inserts or replaces teams
func (b *Backend) UpsertTeams(ctx context.Context, teams []core.Team) error {
	if len(teams) == 0 {
		return nil
	}
	rows := make([]model.Team, len(teams))
	for i, t := range teams {
		rows[i] = convert.CoreToTeam(t)
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "xp", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("writing teams: %w", err)
	}
	return nil
}

// PerkDefinitions returns the perk catalog ordered by id. Rows that no
// longer decode are logged and skipped.
func (b *Backend) PerkDefinitions(ctx context.Context) ([]core.PerkDefinition, error) {
	var rows []model.PerkDefinition
	if err := b.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading perk definitions: %w", err)
	}
	out := make([]core.PerkDefinition, 0, len(rows))
	for _, r := range rows {
		d, err := convert.PerkDefinitionToCore(r)
		if err != nil {
			b.logger.Warn("Skipping unreadable perk definition", "code", r.Code, "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// UpsertPerkDefinitions stores definitions by code. Definitions without an id
// keep the id of the stored definition with the same code, or get a new one.
func (b *Backend) UpsertPerkDefinitions(ctx context.Context, defs []core.PerkDefinition) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range defs {
			d.Code = strings.ToUpper(d.Code)
			row := convert.CoreToPerkDefinition(d)

			if row.ID == 0 {
				var existing model.PerkDefinition
				err := tx.Select("id").Where("code = ?", row.Code).Take(&existing).Error
				switch {
				case err == nil:
					row.ID = existing.ID
				case !errors.Is(err, gorm.ErrRecordNotFound):
					return fmt.Errorf("looking up perk %s: %w", row.Code, err)
				}
			}

			if row.ID == 0 {
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("creating perk %s: %w", row.Code, err)
				}
				continue
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("saving perk %s: %w", row.Code, err)
			}
		}
		return nil
	})
}

// ActivePerks returns stored perk instances matching filter, oldest first
func (b *Backend) ActivePerks(ctx context.Context, filter storage.PerkFilter) ([]core.ActivePerk, error) {
	q := b.db.WithContext(ctx).Model(&model.ActivePerk{})
	if filter.Team != core.NoTeam {
		q = q.Where("team_id = ?", int64(filter.Team))
	}
	if filter.DefinitionID != 0 {
		q = q.Where("perk_definition_id = ?", filter.DefinitionID)
	}
	if filter.Target != "" {
		q = q.Where("target_point_id = ?", string(filter.Target))
	}

	var rows []model.ActivePerk
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading active perks: %w", err)
	}
	out := make([]core.ActivePerk, len(rows))
	for i, r := range rows {
		out[i] = convert.ActivePerkToCore(r)
	}
	sortPerks(out)
	return out, nil
}

// CreateActivePerk stores a new perk instance
func (b *Backend) CreateActivePerk(ctx context.Context, perk core.ActivePerk) error {
	row := convert.CoreToActivePerk(perk)
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("writing active perk: %w", err)
	}
	return nil
}

// DeleteExpiredPerks removes instances whose expiry is before now.
// Expiry is compared in Go; SQLite keeps timestamps as text.
func (b *Backend) DeleteExpiredPerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error) {
	var removed []core.ActivePerk
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.ActivePerk
		if err := tx.Find(&rows).Error; err != nil {
			return fmt.Errorf("loading active perks: %w", err)
		}

		var ids []string
		for _, r := range rows {
			p := convert.ActivePerkToCore(r)
			if p.ExpiresAt.Before(now) {
				removed = append(removed, p)
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.ActivePerk{}).Error; err != nil {
			return fmt.Errorf("deleting expired perks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortPerks(removed)
	return removed, nil
}

// LastPerkExpiry returns the recorded cooldown anchor for a team's definition
func (b *Backend) LastPerkExpiry(ctx context.Context, team core.TeamID, definitionID int64) (time.Time, bool, error) {
	var row model.PerkCooldown
	err := b.db.WithContext(ctx).
		Where("team_id = ? AND perk_definition_id = ?", int64(team), definitionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("loading perk cooldown: %w", err)
	}
	return row.LastExpiredAt.UTC(), true, nil
}

// RecordPerkExpiry keeps the latest expiry seen for a team's definition
func (b *Backend) RecordPerkExpiry(ctx context.Context, team core.TeamID, definitionID int64, at time.Time) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.PerkCooldown
		err := tx.Where("team_id = ? AND perk_definition_id = ?", int64(team), definitionID).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = model.PerkCooldown{TeamID: int64(team), PerkDefinitionID: definitionID, LastExpiredAt: at.UTC()}
			return tx.Create(&row).Error
		case err != nil:
			return fmt.Errorf("loading perk cooldown: %w", err)
		}

		if !at.After(row.LastExpiredAt) {
			return nil
		}
		return tx.Model(&model.PerkCooldown{}).
			Where("team_id = ? AND perk_definition_id = ?", int64(team), definitionID).
			Update("last_expired_at", at.UTC()).Error
	})
}

func pointsByID(tx *gorm.DB) (map[core.PointID]core.Point, error) {
	var rows []model.Point
	if err := tx.Select("id", "latitude", "longitude").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading point locations: %w", err)
	}
	out := make(map[core.PointID]core.Point, len(rows))
	for _, r := range rows {
		out[core.PointID(r.ID)] = core.Point{ID: core.PointID(r.ID), Lat: r.Latitude, Lon: r.Longitude}
	}
	return out, nil
}

func sortPerks(perks []core.ActivePerk) {
	sort.Slice(perks, func(i, j int) bool {
		if !perks[i].ActivatedAt.Equal(perks[j].ActivatedAt) {
			return perks[i].ActivatedAt.Before(perks[j].ActivatedAt)
		}
		return perks[i].ID < perks[j].ID
	})
}
