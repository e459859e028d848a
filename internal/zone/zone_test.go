package zone

import (
	"fmt"
	"testing"

	"github.com/sportsin/territory/internal/geo"
	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(id string, lat, lon float64) core.Point {
	return core.Point{ID: core.PointID(id), Name: "P" + id, Lat: lat, Lon: lon}
}

func ownersOf(m map[core.PointID]core.TeamID) OwnerLookup {
	return func(id core.PointID) (core.TeamID, bool) {
		team, ok := m[id]
		return team, ok
	}
}

func TestGenerate_SingleCluster(t *testing.T) {
	points := []core.Point{
		pt("1", 48.850, 2.350),
		pt("2", 48.852, 2.350),
		pt("3", 48.850, 2.353),
		pt("4", 48.900, 2.350), // ~5.5 km away
	}

	zones := Generate(points, 1.0, 3)

	require.Len(t, zones, 1)
	assert.Equal(t, core.ZoneID(1), zones[0].ID)
	assert.Equal(t, core.PointID("1"), zones[0].Center)
	assert.Equal(t, []core.PointID{"1", "2", "3"}, zones[0].Points)
	assert.Equal(t, "Zone 1 (center: P1)", zones[0].Name)
	assert.Equal(t, core.NoTeam, zones[0].Owner)
}

func TestGenerate_TooFewPointsYieldsNothing(t *testing.T) {
	points := []core.Point{pt("1", 48.85, 2.35), pt("2", 48.851, 2.35)}
	assert.Empty(t, Generate(points, 1.0, 3))
	assert.Empty(t, Generate(nil, 1.0, 3))
}

func TestGenerate_UndersizedGroupLeftForLaterCenter(t *testing.T) {
	// "1" sees only "2"; "2" sees both "1" and "3".
	points := []core.Point{
		pt("1", 48.8500, 2.35),
		pt("2", 48.8080, 2.35),
		pt("3", 48.7660, 2.35),
	}
	zones := Generate(points, 5.0, 3)

	require.Len(t, zones, 1)
	assert.Equal(t, core.PointID("2"), zones[0].Center)
	assert.ElementsMatch(t, []core.PointID{"1", "2", "3"}, zones[0].Points)
}

func TestGenerate_NotTransitive(t *testing.T) {
	// 1 and 3 are ~9.3 km apart but both within 5 km of center 2.
	points := []core.Point{
		pt("2", 48.8080, 2.35),
		pt("1", 48.8500, 2.35),
		pt("3", 48.7660, 2.35),
	}
	zones := Generate(points, 5.0, 3)

	require.Len(t, zones, 1)
	assert.Greater(t, geo.Distance(points[1], points[2]), 5.0)
	assert.ElementsMatch(t, []core.PointID{"1", "2", "3"}, zones[0].Points)
}

func TestGenerate_Contract(t *testing.T) {
	var points []core.Point
	for i := 0; i < 40; i++ {
		points = append(points, pt(fmt.Sprint(i), 48.80+float64(i%7)*0.006, 2.30+float64(i/7)*0.009))
	}
	byID := make(map[core.PointID]core.Point, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}

	const radius, minPoints = 0.8, 3
	zones := Generate(points, radius, minPoints)
	require.NotEmpty(t, zones)

	seen := map[core.PointID]bool{}
	for _, z := range zones {
		assert.GreaterOrEqual(t, len(z.Points), minPoints)
		center := byID[z.Center]
		for _, id := range z.Points {
			assert.LessOrEqual(t, geo.Distance(center, byID[id]), radius)
			assert.False(t, seen[id], "point %s assigned to two zones", id)
			seen[id] = true
		}
	}
}

func TestRecompute_ScenarioC(t *testing.T) {
	const teamA, teamB core.TeamID = 1, 2
	z := &core.Zone{ID: 1, Points: []core.PointID{"a", "b", "c", "d"}}
	owners := map[core.PointID]core.TeamID{"a": teamA, "b": teamA, "c": teamA, "d": core.NoTeam}

	change := Recompute(z, ownersOf(owners))
	assert.True(t, change.Captured())
	assert.Equal(t, teamA, z.Owner)

	owners["b"] = teamB
	change = Recompute(z, ownersOf(owners))
	assert.True(t, change.Lost())
	assert.Equal(t, teamA, change.Old)
	assert.Equal(t, core.NoTeam, z.Owner)
}

func TestRecompute_NoChange(t *testing.T) {
	z := &core.Zone{Points: []core.PointID{"a", "b", "c"}}
	owners := map[core.PointID]core.TeamID{"a": 1, "b": 1}

	change := Recompute(z, ownersOf(owners))
	assert.False(t, change.Changed)
	assert.Equal(t, core.NoTeam, z.Owner)

	owners["c"] = 1
	require.True(t, Recompute(z, ownersOf(owners)).Changed)
	assert.False(t, Recompute(z, ownersOf(owners)).Changed)
	assert.Equal(t, core.TeamID(1), z.Owner)
}

func TestRecompute_FirstToThresholdWins(t *testing.T) {
	// team 7 appears first and holds 3; team 9 holds 4 but appears later.
	z := &core.Zone{Points: []core.PointID{"a", "b", "c", "d", "e", "f", "g"}}
	owners := map[core.PointID]core.TeamID{
		"a": 7, "b": 9, "c": 7, "d": 9, "e": 7, "f": 9, "g": 9,
	}

	Recompute(z, ownersOf(owners))
	assert.Equal(t, core.TeamID(7), z.Owner)
}

func TestRecompute_MissingPointsSkipped(t *testing.T) {
	z := &core.Zone{Points: []core.PointID{"a", "ghost", "b", "c"}}
	owners := map[core.PointID]core.TeamID{"a": 3, "b": 3, "c": 3}

	change := Recompute(z, ownersOf(owners))
	assert.True(t, change.Captured())
	assert.Equal(t, []core.PointID{"ghost"}, change.Missing)
}

func TestRecompute_Invariant(t *testing.T) {
	points := []core.PointID{"a", "b", "c", "d", "e"}
	assignments := [][]core.TeamID{
		{1, 1, 1, 2, 2},
		{1, 2, 1, 2, 2},
		{0, 0, 0, 0, 0},
		{3, 3, 0, 3, 1},
		{1, 2, 3, 1, 2},
	}

	z := &core.Zone{Points: points}
	for _, assignment := range assignments {
		owners := map[core.PointID]core.TeamID{}
		for i, id := range points {
			owners[id] = assignment[i]
		}
		Recompute(z, ownersOf(owners))

		if z.Owner == core.NoTeam {
			continue
		}
		held := 0
		for _, team := range owners {
			if team == z.Owner {
				held++
			}
		}
		assert.GreaterOrEqual(t, held, ControlThreshold, "assignment %v", assignment)
	}
}
