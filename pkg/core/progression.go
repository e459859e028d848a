package core

import "time"

// Effect type tags used by the perk catalog.
const (
	EffectInfluenceBoost     = "INFLUENCE_BOOST"
	EffectInfluenceReduction = "INFLUENCE_REDUCTION"
	EffectXPMultiplier       = "XP_MULTIPLIER"
)

// Team is the subset of team data the engine needs. XP never decreases.
type Team struct {
	ID   TeamID
	Name string
	XP   int64
}

// PerkDefinition is immutable catalog data.
type PerkDefinition struct {
	ID                 int64
	Code               string
	Name               string
	Description        string
	EffectType         string
	RequiredLevel      int
	Duration           time.Duration
	Cooldown           time.Duration
	MaxActiveInstances int
	Stackable          bool
	Params             EffectParams
}

// ActivePerk is a timed perk instance held by a team. Absence from the store
// is the only expiry signal.
type ActivePerk struct {
	ID           string
	Team         TeamID
	DefinitionID int64
	Code         string
	Target       PointID // empty when the perk has no target
	ActivatedAt  time.Time
	ExpiresAt    time.Time
	UsageCount   int
}

// IsActive reports whether the perk is in force at now.
func (p ActivePerk) IsActive(now time.Time) bool {
	return !now.Before(p.ActivatedAt) && now.Before(p.ExpiresAt)
}

// IsExpired reports whether the perk's lifetime is over at now.
func (p ActivePerk) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Remaining returns how long the perk has left, or zero once expired.
func (p ActivePerk) Remaining(now time.Time) time.Duration {
	if !now.Before(p.ExpiresAt) {
		return 0
	}
	return p.ExpiresAt.Sub(now)
}
