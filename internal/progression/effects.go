package progression

import "github.com/sportsin/territory/pkg/core"

// Scope says whose influence an effect alters, relative to the perk's owner.
type Scope int

const (
	// ScopeNone effects never touch influence.
	ScopeNone Scope = iota
	// ScopeOwner effects apply when the perk's owner is the acting team.
	ScopeOwner
	// ScopeOpponents effects apply when any other team acts.
	ScopeOpponents
)

// Effect is the behaviour attached to one effect type.
type Effect struct {
	Scope Scope
	// Influence returns the contribution to the accumulated influence given base.
	Influence func(params core.EffectParams, base float64) float64
	// XPFactor scales XP grants. 1 for effects that leave XP alone.
	XPFactor func(params core.EffectParams) float64
}

// Applies reports whether a perk owned by owner alters the influence of acting.
func (e Effect) Applies(owner, acting core.TeamID) bool {
	switch e.Scope {
	case ScopeOwner:
		return owner == acting
	case ScopeOpponents:
		return owner != acting
	default:
		return false
	}
}

func noInfluence(core.EffectParams, float64) float64 { return 0 }

func neutralXP(core.EffectParams) float64 { return 1 }

var effects = map[string]Effect{
	core.EffectInfluenceBoost: {
		Scope:     ScopeOwner,
		Influence: func(params core.EffectParams, base float64) float64 {
			pct := core.DefaultBoostPercent
			if p, ok := params.(core.BoostParams); ok {
				pct = p.BoostPercent
			}
			return base * pct / 100
		},
		XPFactor: neutralXP,
	},
	core.EffectInfluenceReduction: {
		Scope:     ScopeOpponents,
		Influence: func(params core.EffectParams, base float64) float64 {
			pct := core.DefaultReductionPercent
			if p, ok := params.(core.ShieldParams); ok {
				pct = p.ReductionPercent
			}
			return -base * pct / 100
		},
		XPFactor: neutralXP,
	},
	core.EffectXPMultiplier: {
		Scope:     ScopeNone,
		Influence: noInfluence,
		XPFactor:  func(params core.EffectParams) float64 {
			if p, ok := params.(core.XPMultiplierParams); ok {
				return p.Multiplier
			}
			return core.DefaultXPMultiplier
		},
	},
}

// EffectFor looks up the behaviour of an effect type.
func EffectFor(effectType string) (Effect, bool) {
	e, ok := effects[effectType]
	return e, ok
}

// InfluenceModifier is the influence a perk of def contributes on top of base.
// Unknown effect types contribute nothing.
func InfluenceModifier(def core.PerkDefinition, base float64) float64 {
	e, ok := EffectFor(def.EffectType)
	if !ok {
		return 0
	}
	return e.Influence(def.Params, base)
}
