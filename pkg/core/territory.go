// Package core holds the domain types shared by the territory engine and its collaborators.
package core

// TeamID identifies a team. NoTeam is the null owner.
type TeamID int64

// NoTeam marks a point or zone that nobody controls.
const NoTeam TeamID = 0

// PointID identifies a conquerable point.
type PointID string

// ZoneID identifies a zone.
type ZoneID int64

// RouteID identifies a route.
type RouteID int64

// BonusScoreMultiplier is the only route bonus kind currently emitted.
const BonusScoreMultiplier = "SCORE_MULTIPLIER"

// Point is a geographic location that at most one team controls.
type Point struct {
	ID         PointID
	Name       string
	Lat        float64 // degrees
	Lon        float64 // degrees
	Activities []string
	Owner      TeamID
}

// Owned reports whether a team controls the point.
func (p Point) Owned() bool {
	return p.Owner != NoTeam
}

// Zone is a named cluster of points. Owner is derived from its members.
type Zone struct {
	ID     ZoneID
	Name   string
	Center PointID
	Points []PointID
	Owner  TeamID
}

// Contains reports whether the zone has the point as a member.
func (z Zone) Contains(id PointID) bool {
	for _, p := range z.Points {
		if p == id {
			return true
		}
	}
	return false
}

// Route is an ordered chain of points. Order matters: consecutive ownership
// is measured along it.
type Route struct {
	ID          RouteID
	Name        string
	Description string
	Points      []PointID
}

// Contains reports whether the point lies on the route.
func (r Route) Contains(id PointID) bool {
	for _, p := range r.Points {
		if p == id {
			return true
		}
	}
	return false
}

// RouteBonus is computed on demand and never persisted.
type RouteBonus struct {
	Team        TeamID
	RouteID     RouteID
	RouteName   string
	Consecutive int
	Kind        string
	Value       float64
}
