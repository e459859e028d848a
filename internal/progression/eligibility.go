package progression

import (
	"fmt"
	"time"

	"github.com/sportsin/territory/pkg/core"
)

// Rule names the activation check that refused a perk.
type Rule string

const (
	RuleLevel        Rule = "level"
	RuleMaxInstances Rule = "max_instances"
	RuleCooldown     Rule = "cooldown"
	RuleStacking     Rule = "stacking"
)

// Verdict is the outcome of an eligibility check.
type Verdict struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

// Err returns nil for an allowed verdict and an IneligibleError otherwise.
func (v Verdict) Err(code string) error {
	if v.Allowed {
		return nil
	}
	return &core.IneligibleError{Code: code, Reason: v.Reason}
}

var allowed = Verdict{Allowed: true}

// Expiry is the latest known expiry of a team's definition, kept after sweeps
// have removed the instance itself.
type Expiry struct {
	At    time.Time
	Known bool
}

// CanActivate applies the level, instance and cooldown rules in that order.
// existing holds the team's stored instances of def, expired ones not yet swept included.
func CanActivate(team core.Team, def core.PerkDefinition, existing []core.ActivePerk, ledger Expiry, now time.Time) Verdict {
	if level := LevelForXP(team.XP); level < def.RequiredLevel {
		return Verdict{
			Rule:   RuleLevel,
			Reason: fmt.Sprintf("team level %d below required level %d", level, def.RequiredLevel),
		}
	}

	active := 0
	latest := ledger
	for _, p := range existing {
		if p.DefinitionID != def.ID {
			continue
		}
		if !p.IsExpired(now) {
			active++
			continue
		}
		if !latest.Known || p.ExpiresAt.After(latest.At) {
			latest = Expiry{At: p.ExpiresAt, Known: true}
		}
	}
	if active >= def.MaxActiveInstances {
		return Verdict{
			Rule:   RuleMaxInstances,
			Reason: fmt.Sprintf("%d of %d instances already active", active, def.MaxActiveInstances),
		}
	}

	if latest.Known {
		ready := latest.At.Add(def.Cooldown)
		if now.Before(ready) {
			return Verdict{
				Rule:   RuleCooldown,
				Reason: fmt.Sprintf("on cooldown for %s", ready.Sub(now)),
			}
		}
	}

	return allowed
}

// CheckStacking refuses a non-stackable perk when an unexpired instance of the
// same definition already targets target. Untargeted activations are only
// bounded by the instance limit.
func CheckStacking(def core.PerkDefinition, existing []core.ActivePerk, target core.PointID, now time.Time) Verdict {
	if def.Stackable || target == "" {
		return allowed
	}
	for _, p := range existing {
		if p.DefinitionID == def.ID && p.Target == target && !p.IsExpired(now) {
			return Verdict{
				Rule:   RuleStacking,
				Reason: fmt.Sprintf("already active on target %q", target),
			}
		}
	}
	return allowed
}
