package convert

import (
	"encoding/json"
	"time"

	"github.com/sportsin/territory/internal/model"
	"github.com/sportsin/territory/pkg/core"
	"gorm.io/datatypes"
)

// jsonToStrings decodes a JSON string array; invalid or empty JSON gives nil.
func jsonToStrings[T ~string](data datatypes.JSON) []T {
	if len(data) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// TeamToCore converts a GORM Team to a core.Team.
func TeamToCore(t model.Team) core.Team {
	return core.Team{
		ID:   core.TeamID(t.ID),
		Name: t.Name,
		XP:   t.XP,
	}
}

// PointToCore converts a GORM Point to a core.Point.
// Latitude/Longitude are authoritative; Location is derived from them.
func PointToCore(p model.Point) core.Point {
	return core.Point{
		ID:         core.PointID(p.ID),
		Name:       p.Name,
		Lat:        p.Latitude,
		Lon:        p.Longitude,
		Activities: jsonToStrings[string](p.Activities),
		Owner:      core.TeamID(p.OwnerID),
	}
}

// ZoneToCore converts a GORM Zone to a core.Zone.
func ZoneToCore(z model.Zone) core.Zone {
	return core.Zone{
		ID:     core.ZoneID(z.ID),
		Name:   z.Name,
		Center: core.PointID(z.CenterPointID),
		Points: jsonToStrings[core.PointID](z.Members),
		Owner:  core.TeamID(z.OwnerID),
	}
}

// RouteToCore converts a GORM Route to a core.Route.
func RouteToCore(r model.Route) core.Route {
	return core.Route{
		ID:          core.RouteID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Points:      jsonToStrings[core.PointID](r.Stops),
	}
}

// PerkDefinitionToCore converts a GORM PerkDefinition to a core.PerkDefinition.
func PerkDefinitionToCore(d model.PerkDefinition) (core.PerkDefinition, error) {
	raw := map[string]any{}
	if len(d.Params) > 0 {
		if err := json.Unmarshal(d.Params, &raw); err != nil {
			return core.PerkDefinition{}, err
		}
	}
	params, err := core.DecodeEffectParams(d.EffectType, raw)
	if err != nil {
		return core.PerkDefinition{}, err
	}
	return core.PerkDefinition{
		ID:                 d.ID,
		Code:               d.Code,
		Name:               d.Name,
		Description:        d.Description,
		EffectType:         d.EffectType,
		RequiredLevel:      d.RequiredLevel,
		Duration:           time.Duration(d.DurationMs) * time.Millisecond,
		Cooldown:           time.Duration(d.CooldownMs) * time.Millisecond,
		MaxActiveInstances: d.MaxActiveInstances,
		Stackable:          d.Stackable,
		Params:             params,
	}, nil
}

// ActivePerkToCore converts a GORM ActivePerk to a core.ActivePerk. Times come back in UTC.
func ActivePerkToCore(p model.ActivePerk) core.ActivePerk {
	return core.ActivePerk{
		ID:           p.ID,
		Team:         core.TeamID(p.TeamID),
		DefinitionID: p.PerkDefinitionID,
		Code:         p.Code,
		Target:       core.PointID(p.TargetPointID),
		ActivatedAt:  p.ActivatedAt.UTC(),
		ExpiresAt:    p.ExpiresAt.UTC(),
		UsageCount:   p.UsageCount,
	}
}
