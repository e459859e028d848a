// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/sportsin/territory/internal/geo"
	"github.com/sportsin/territory/internal/model"
	"github.com/sportsin/territory/pkg/core"
	"gorm.io/datatypes"
)

// stringsToJSON converts a []string to datatypes.JSON for DB storage.
func stringsToJSON[T ~string](values []T) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

// pathToLineString projects an ordered list of lat/lon pairs to a 3857 geom.LineString.
// Fewer than two coordinates give an empty line.
func pathToLineString(coords [][2]float64) geom.LineString {
	if len(coords) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		pt, ok := geo.Project(c[0], c[1]).Coordinates()
		if !ok {
			continue
		}
		flat = append(flat, pt.XY.X, pt.XY.Y)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		// fewer than two distinct stops
		return geom.LineString{}
	}
	return ls
}

// CoreToTeam converts a core.Team to a GORM model.Team.
func CoreToTeam(t core.Team) model.Team {
	return model.Team{
		ID:   int64(t.ID),
		Name: t.Name,
		XP:   t.XP,
	}
}

// CoreToPoint converts a core.Point to a GORM model.Point at the given position.
func CoreToPoint(p core.Point, position int) model.Point {
	return model.Point{
		ID:         string(p.ID),
		Position:   position,
		Name:       p.Name,
		Latitude:   p.Lat,
		Longitude:  p.Lon,
		Location:   geo.Project(p.Lat, p.Lon),
		Activities: stringsToJSON(p.Activities),
		OwnerID:    int64(p.Owner),
	}
}

// CoreToZone converts a core.Zone to a GORM model.Zone. center is the zone's
// center point, used for the stored location; a zero point leaves it empty.
func CoreToZone(z core.Zone, center core.Point) model.Zone {
	m := model.Zone{
		ID:            int64(z.ID),
		Name:          z.Name,
		CenterPointID: string(z.Center),
		Members:       stringsToJSON(z.Points),
		OwnerID:       int64(z.Owner),
	}
	if center.ID != "" {
		m.Center = geo.Project(center.Lat, center.Lon)
	}
	return m
}

// CoreToRoute converts a core.Route to a GORM model.Route. points resolves
// stops to coordinates for the stored path; unknown stops are left out of the path.
func CoreToRoute(r core.Route, points map[core.PointID]core.Point) model.Route {
	coords := make([][2]float64, 0, len(r.Points))
	for _, id := range r.Points {
		if p, ok := points[id]; ok {
			coords = append(coords, [2]float64{p.Lat, p.Lon})
		}
	}
	return model.Route{
		ID:          int64(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Stops:       stringsToJSON(r.Points),
		Path:        pathToLineString(coords),
	}
}

// CoreToPerkDefinition converts a core.PerkDefinition to a GORM model.PerkDefinition.
func CoreToPerkDefinition(d core.PerkDefinition) model.PerkDefinition {
	params, err := json.Marshal(core.EncodeEffectParams(d.Params))
	if err != nil {
		params = []byte("{}")
	}
	return model.PerkDefinition{
		ID:                 d.ID,
		Code:               d.Code,
		Name:               d.Name,
		Description:        d.Description,
		EffectType:         d.EffectType,
		RequiredLevel:      d.RequiredLevel,
		DurationMs:         d.Duration.Milliseconds(),
		CooldownMs:         d.Cooldown.Milliseconds(),
		MaxActiveInstances: d.MaxActiveInstances,
		Stackable:          d.Stackable,
		Params:             datatypes.JSON(params),
	}
}

// CoreToActivePerk converts a core.ActivePerk to a GORM model.ActivePerk.
func CoreToActivePerk(p core.ActivePerk) model.ActivePerk {
	return model.ActivePerk{
		ID:               p.ID,
		TeamID:           int64(p.Team),
		PerkDefinitionID: p.DefinitionID,
		Code:             p.Code,
		TargetPointID:    string(p.Target),
		ActivatedAt:      p.ActivatedAt.UTC(),
		ExpiresAt:        p.ExpiresAt.UTC(),
		UsageCount:       p.UsageCount,
	}
}
