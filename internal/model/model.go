package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Team{},
	&Point{},
	&Zone{},
	&Route{},
	&PerkDefinition{},
	&ActivePerk{},
	&PerkCooldown{},
}

////////////////////////
// TERRITORY
////////////////////////

// Team holds the progression data of a team
type Team struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"size:127"`
	XP        int64     `json:"xp" gorm:"default:0"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*Team) TableName() string {
	return "teams"
}

// Point is a conquerable location
type Point struct {
	ID         string         `json:"id" gorm:"primaryKey;size:64"`
	Position   int            `json:"position" gorm:"index:idx_point_position"` // insertion order
	Name       string         `json:"name" gorm:"size:127"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Location   geom.Point     `json:"location"` // EPSG:3857
	Activities datatypes.JSON `json:"activities" gorm:"default:'[]'"`
	OwnerID    int64          `json:"ownerId" gorm:"index:idx_point_owner;default:0"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (*Point) TableName() string {
	return "points"
}

// Zone is a generated cluster of points
type Zone struct {
	ID            int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name          string         `json:"name" gorm:"size:255"`
	CenterPointID string         `json:"centerPointId" gorm:"size:64"`
	Center        geom.Point     `json:"center"`                      // EPSG:3857 location of the center point
	Members       datatypes.JSON `json:"members" gorm:"default:'[]'"` // ordered point ids
	OwnerID       int64          `json:"ownerId" gorm:"index:idx_zone_owner;default:0"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (*Zone) TableName() string {
	return "zones"
}

// Route is a generated ordered chain of points
type Route struct {
	ID          int64           `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string          `json:"name" gorm:"size:255"`
	Description string          `json:"description" gorm:"size:255"`
	Stops       datatypes.JSON  `json:"stops" gorm:"default:'[]'"` // ordered point ids
	Path        geom.LineString `json:"path"`                      // EPSG:3857 polyline through the stops
}

func (*Route) TableName() string {
	return "routes"
}

////////////////////////
// PROGRESSION
////////////////////////

// PerkDefinition is one catalog entry
type PerkDefinition struct {
	ID                 int64          `json:"id" gorm:"primaryKey"`
	Code               string         `json:"code" gorm:"size:64;uniqueIndex:idx_perk_code"`
	Name               string         `json:"name" gorm:"size:127"`
	Description        string         `json:"description" gorm:"size:255"`
	EffectType         string         `json:"effectType" gorm:"size:32"`
	RequiredLevel      int            `json:"requiredLevel"`
	DurationMs         int64          `json:"durationMs"`
	CooldownMs         int64          `json:"cooldownMs"`
	MaxActiveInstances int            `json:"maxActiveInstances" gorm:"default:1"`
	Stackable          bool           `json:"stackable"`
	Params             datatypes.JSON `json:"params" gorm:"default:'{}'"`
}

func (*PerkDefinition) TableName() string {
	return "perk_definitions"
}

// ActivePerk is a perk instance held by a team until the expiry sweep removes it
type ActivePerk struct {
	ID               string    `json:"id" gorm:"primaryKey;size:36"`
	TeamID           int64     `json:"teamId" gorm:"index:idx_active_perk_team_definition"`
	PerkDefinitionID int64     `json:"perkDefinitionId" gorm:"index:idx_active_perk_team_definition"`
	Code             string    `json:"code" gorm:"size:64"`
	TargetPointID    string    `json:"targetPointId" gorm:"size:64;index:idx_active_perk_target"`
	ActivatedAt      time.Time `json:"activatedAt"`
	ExpiresAt        time.Time `json:"expiresAt" gorm:"index:idx_active_perk_expires_at"`
	UsageCount       int       `json:"usageCount" gorm:"default:1"`
}

func (*ActivePerk) TableName() string {
	return "active_perks"
}

// PerkCooldown remembers the latest expiry of a team's perk after the instance is gone
type PerkCooldown struct {
	TeamID           int64     `json:"teamId" gorm:"primaryKey;autoIncrement:false"`
	PerkDefinitionID int64     `json:"perkDefinitionId" gorm:"primaryKey;autoIncrement:false"`
	LastExpiredAt    time.Time `json:"lastExpiredAt"`
}

func (*PerkCooldown) TableName() string {
	return "perk_cooldowns"
}
