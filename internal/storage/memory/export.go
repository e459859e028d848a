package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sportsin/territory/pkg/core"
)

// SnapshotExport is the root JSON structure of a snapshot file
type SnapshotExport struct {
	TakenAt         time.Time        `json:"takenAt"`
	Points          []PointJSON      `json:"points"`
	Zones           []ZoneJSON       `json:"zones"`
	Routes          []RouteJSON      `json:"routes"`
	Teams           []core.Team      `json:"teams"`
	PerkDefinitions []PerkDefJSON    `json:"perkDefinitions"`
	ActivePerks     []ActivePerkJSON `json:"activePerks"`
	Cooldowns       []CooldownJSON   `json:"cooldowns"`
}

// PointJSON represents a point and its owner
type PointJSON struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Activities []string `json:"activities,omitempty"`
	Owner      int64    `json:"owner,omitempty"`
}

// ZoneJSON represents a zone with its member ids
type ZoneJSON struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Center string   `json:"center"`
	Points []string `json:"points"`
	Owner  int64    `json:"owner,omitempty"`
}

// RouteJSON represents a route with its ordered stops
type RouteJSON struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Points      []string `json:"points"`
}

// PerkDefJSON represents a perk definition with flattened params
type PerkDefJSON struct {
	ID                 int64          `json:"id"`
	Code               string         `json:"code"`
	Name               string         `json:"name"`
	EffectType         string         `json:"effectType"`
	RequiredLevel      int            `json:"requiredLevel"`
	DurationSeconds    float64        `json:"durationSeconds"`
	CooldownSeconds    float64        `json:"cooldownSeconds"`
	MaxActiveInstances int            `json:"maxActiveInstances"`
	Stackable          bool           `json:"stackable"`
	Params             map[string]any `json:"params"`
}

// ActivePerkJSON represents a live perk instance
type ActivePerkJSON struct {
	ID           string    `json:"id"`
	Team         int64     `json:"team"`
	DefinitionID int64     `json:"definitionId"`
	Code         string    `json:"code"`
	Target       string    `json:"target,omitempty"`
	ActivatedAt  time.Time `json:"activatedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UsageCount   int       `json:"usageCount"`
}

// CooldownJSON represents one cooldown ledger entry
type CooldownJSON struct {
	Team         int64     `json:"team"`
	DefinitionID int64     `json:"definitionId"`
	LastExpiry   time.Time `json:"lastExpiry"`
}

// Snapshot writes the current state to a timestamped JSON file in the
// snapshot directory and returns its path.
func (b *Backend) Snapshot() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	export := b.buildExport(time.Now())

	timestamp := export.TakenAt.Format("20060102_150405")
	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("territory_%s.json.gz", timestamp)
	} else {
		filename = fmt.Sprintf("territory_%s.json", timestamp)
	}

	outputPath := filepath.Join(b.cfg.SnapshotDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.SnapshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return "", err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return "", err
		}
	}

	b.lastSnapshotPath = outputPath
	return outputPath, nil
}

// LastSnapshotPath returns the path of the most recent snapshot, or "" if none was written
func (b *Backend) LastSnapshotPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSnapshotPath
}

func (b *Backend) buildExport(takenAt time.Time) SnapshotExport {
	export := SnapshotExport{
		TakenAt:         takenAt.UTC(),
		Points:          make([]PointJSON, 0, len(b.pointOrder)),
		Zones:           make([]ZoneJSON, 0, len(b.zones)),
		Routes:          make([]RouteJSON, 0, len(b.routes)),
		Teams:           make([]core.Team, 0, len(b.teams)),
		PerkDefinitions: make([]PerkDefJSON, 0, len(b.perkDefs)),
		ActivePerks:     make([]ActivePerkJSON, 0, len(b.perks)),
		Cooldowns:       make([]CooldownJSON, 0, len(b.cooldowns)),
	}

	for _, id := range b.pointOrder {
		p := b.points[id]
		export.Points = append(export.Points, PointJSON{
			ID:         string(p.ID),
			Name:       p.Name,
			Lat:        p.Lat,
			Lon:        p.Lon,
			Activities: p.Activities,
			Owner:      int64(p.Owner),
		})
	}

	for _, z := range b.zones {
		export.Zones = append(export.Zones, ZoneJSON{
			ID:     int64(z.ID),
			Name:   z.Name,
			Center: string(z.Center),
			Points: pointIDStrings(z.Points),
			Owner:  int64(z.Owner),
		})
	}
	sort.Slice(export.Zones, func(i, j int) bool { return export.Zones[i].ID < export.Zones[j].ID })

	for _, r := range b.routes {
		export.Routes = append(export.Routes, RouteJSON{
			ID:          int64(r.ID),
			Name:        r.Name,
			Description: r.Description,
			Points:      pointIDStrings(r.Points),
		})
	}
	sort.Slice(export.Routes, func(i, j int) bool { return export.Routes[i].ID < export.Routes[j].ID })

	for _, t := range b.teams {
		export.Teams = append(export.Teams, t)
	}
	sort.Slice(export.Teams, func(i, j int) bool { return export.Teams[i].ID < export.Teams[j].ID })

	for _, d := range b.perkDefs {
		export.PerkDefinitions = append(export.PerkDefinitions, PerkDefJSON{
			ID:                 d.ID,
			Code:               d.Code,
			Name:               d.Name,
			EffectType:         d.EffectType,
			RequiredLevel:      d.RequiredLevel,
			DurationSeconds:    d.Duration.Seconds(),
			CooldownSeconds:    d.Cooldown.Seconds(),
			MaxActiveInstances: d.MaxActiveInstances,
			Stackable:          d.Stackable,
			Params:             core.EncodeEffectParams(d.Params),
		})
	}
	sort.Slice(export.PerkDefinitions, func(i, j int) bool {
		return export.PerkDefinitions[i].ID < export.PerkDefinitions[j].ID
	})

	perks := make([]core.ActivePerk, 0, len(b.perks))
	for _, p := range b.perks {
		perks = append(perks, p)
	}
	sortPerks(perks)
	for _, p := range perks {
		export.ActivePerks = append(export.ActivePerks, ActivePerkJSON{
			ID:           p.ID,
			Team:         int64(p.Team),
			DefinitionID: p.DefinitionID,
			Code:         p.Code,
			Target:       string(p.Target),
			ActivatedAt:  p.ActivatedAt.UTC(),
			ExpiresAt:    p.ExpiresAt.UTC(),
			UsageCount:   p.UsageCount,
		})
	}

	for key, at := range b.cooldowns {
		export.Cooldowns = append(export.Cooldowns, CooldownJSON{
			Team:         int64(key.team),
			DefinitionID: key.definitionID,
			LastExpiry:   at.UTC(),
		})
	}
	sort.Slice(export.Cooldowns, func(i, j int) bool {
		if export.Cooldowns[i].Team != export.Cooldowns[j].Team {
			return export.Cooldowns[i].Team < export.Cooldowns[j].Team
		}
		return export.Cooldowns[i].DefinitionID < export.Cooldowns[j].DefinitionID
	})

	return export
}

func pointIDStrings(ids []core.PointID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func writeJSON(path string, data SnapshotExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SnapshotExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
