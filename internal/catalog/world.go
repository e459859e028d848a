package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/sportsin/territory/internal/geo"
	"github.com/sportsin/territory/pkg/core"
	"gopkg.in/yaml.v3"
)

// World is the seed data the engine starts from.
type World struct {
	Teams  []core.Team
	Points []core.Point
}

type worldFile struct {
	Teams  []teamSpec  `yaml:"teams"`
	Points []pointSpec `yaml:"points"`
}

type teamSpec struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	XP   int64  `yaml:"xp"`
}

// pointSpec takes either lat/lon or a "lat,lon" coords string.
type pointSpec struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Lat        *float64 `yaml:"lat"`
	Lon        *float64 `yaml:"lon"`
	Coords     string   `yaml:"coords"`
	Activities []string `yaml:"activities"`
	Owner      int64    `yaml:"owner"`
}

func (s pointSpec) point() (core.Point, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		return core.Point{}, fmt.Errorf("point without id: %w", core.ErrMalformedInput)
	}

	var lat, lon float64
	switch {
	case s.Coords != "":
		var err error
		lat, lon, err = geo.ParseLatLon(s.Coords)
		if err != nil {
			return core.Point{}, fmt.Errorf("point %s: %w: %w", id, err, core.ErrMalformedInput)
		}
	case s.Lat != nil && s.Lon != nil:
		lat, lon = *s.Lat, *s.Lon
		if !geo.Valid(lat, lon) {
			return core.Point{}, fmt.Errorf("point %s: %w: %w", id, geo.ErrInvalidCoordinates, core.ErrMalformedInput)
		}
	default:
		return core.Point{}, fmt.Errorf("point %s: missing coordinates: %w", id, core.ErrMalformedInput)
	}

	name := s.Name
	if name == "" {
		name = id
	}
	return core.Point{
		ID:         core.PointID(id),
		Name:       name,
		Lat:        lat,
		Lon:        lon,
		Activities: s.Activities,
		Owner:      core.TeamID(s.Owner),
	}, nil
}

// LoadWorld reads a world seed. An empty path yields an empty world.
func LoadWorld(path string) (World, error) {
	if strings.TrimSpace(path) == "" {
		return World{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return World{}, fmt.Errorf("reading world seed: %w", err)
	}
	return ParseWorld(b)
}

// ParseWorld decodes a YAML (or JSON) world seed. Point and team ids must be unique.
func ParseWorld(b []byte) (World, error) {
	var f worldFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return World{}, fmt.Errorf("world seed: %w", err)
	}

	var w World
	teams := make(map[core.TeamID]bool, len(f.Teams))
	for _, t := range f.Teams {
		id := core.TeamID(t.ID)
		if id <= core.NoTeam {
			return World{}, fmt.Errorf("world seed: team id %d must be positive: %w", t.ID, core.ErrMalformedInput)
		}
		if teams[id] {
			return World{}, fmt.Errorf("world seed: duplicate team %d: %w", t.ID, core.ErrMalformedInput)
		}
		teams[id] = true
		w.Teams = append(w.Teams, core.Team{ID: id, Name: t.Name, XP: t.XP})
	}

	points := make(map[core.PointID]bool, len(f.Points))
	for _, spec := range f.Points {
		p, err := spec.point()
		if err != nil {
			return World{}, fmt.Errorf("world seed: %w", err)
		}
		if points[p.ID] {
			return World{}, fmt.Errorf("world seed: duplicate point %s: %w", p.ID, core.ErrMalformedInput)
		}
		points[p.ID] = true
		w.Points = append(w.Points, p)
	}
	return w, nil
}
