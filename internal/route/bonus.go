package route

import "github.com/sportsin/territory/pkg/core"

const (
	// MinConsecutiveForBonus is the run length that unlocks a combo bonus.
	MinConsecutiveForBonus = 3
	// ScoreMultiplierValue is the fixed bonus, regardless of how far the run exceeds the minimum.
	ScoreMultiplierValue = 0.10
)

// OwnerLookup returns the current owner of a point, or false if unknown.
// Unknown points break a run like any point owned by someone else.
type OwnerLookup func(core.PointID) (core.TeamID, bool)

// MaxConsecutive returns the longest run of consecutive route points owned by team.
// Runs do not wrap around the end of the route.
func MaxConsecutive(r core.Route, owner OwnerLookup, team core.TeamID) int {
	if team == core.NoTeam {
		return 0
	}

	longest, current := 0, 0
	for _, id := range r.Points {
		if o, ok := owner(id); ok && o == team {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 0
	}
	return longest
}

// CalculateBonuses emits one SCORE_MULTIPLIER bonus per route where team holds
// at least MinConsecutiveForBonus consecutive points.
func CalculateBonuses(routes []core.Route, owner OwnerLookup, team core.TeamID) []core.RouteBonus {
	var bonuses []core.RouteBonus
	for _, r := range routes {
		run := MaxConsecutive(r, owner, team)
		if run < MinConsecutiveForBonus {
			continue
		}
		bonuses = append(bonuses, core.RouteBonus{
			Team:        team,
			RouteID:     r.ID,
			RouteName:   r.Name,
			Consecutive: run,
			Kind:        core.BonusScoreMultiplier,
			Value:       ScoreMultiplierValue,
		})
	}
	return bonuses
}
