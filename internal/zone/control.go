package zone

import "github.com/sportsin/territory/pkg/core"

// ControlThreshold is the number of member points a team needs to hold a zone.
const ControlThreshold = 3

// OwnerLookup returns the current owner of a point, or false if the point is unknown.
type OwnerLookup func(core.PointID) (core.TeamID, bool)

// Change describes the outcome of a recompute.
type Change struct {
	Changed bool
	Old     core.TeamID
	New     core.TeamID
	// Missing lists member points the lookup did not know. They count for nobody.
	Missing []core.PointID
}

// Captured reports a change to a new controlling team.
func (c Change) Captured() bool {
	return c.Changed && c.New != core.NoTeam
}

// Lost reports a change back to neutral.
func (c Change) Lost() bool {
	return c.Changed && c.New == core.NoTeam
}

// Recompute derives the zone's controlling team from its members' current owners
// and updates z.Owner in place.
//
// Candidates are scanned in order of their first appearance among the zone's
// members and the first one holding at least ControlThreshold points wins, even
// if another team holds more. A zone whose controller no longer qualifies
// reverts to NoTeam.
func Recompute(z *core.Zone, owner OwnerLookup) Change {
	counts := make(map[core.TeamID]int)
	var order []core.TeamID
	var missing []core.PointID

	for _, id := range z.Points {
		team, ok := owner(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if team == core.NoTeam {
			continue
		}
		if _, seen := counts[team]; !seen {
			order = append(order, team)
		}
		counts[team]++
	}

	master := core.NoTeam
	for _, team := range order {
		if counts[team] >= ControlThreshold {
			master = team
			break
		}
	}

	old := z.Owner
	switch {
	case master != core.NoTeam && master != old:
		z.Owner = master
		return Change{Changed: true, Old: old, New: master, Missing: missing}
	case master == core.NoTeam && old != core.NoTeam:
		z.Owner = core.NoTeam
		return Change{Changed: true, Old: old, New: core.NoTeam, Missing: missing}
	default:
		return Change{Old: old, New: old, Missing: missing}
	}
}
