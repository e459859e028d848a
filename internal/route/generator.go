// Package route chains points into ordered routes and computes combo bonuses along them.
package route

import (
	"fmt"
	"math"

	"github.com/sportsin/territory/internal/geo"
	"github.com/sportsin/territory/pkg/core"
)

// GeneratedDescription is the description given to routes built by Generate.
const GeneratedDescription = "Generated automatically"

// Generate links points into routes with greedy nearest-neighbour chaining.
//
// Points are visited in input order; the first unvisited point starts a chain,
// which repeatedly takes the nearest unvisited point within maxJumpKm of its tail.
// Chains shorter than minPointsPerRoute are dropped but their points stay visited
// and are never reconsidered. The result depends on input order and is not
// globally optimal.
func Generate(points []core.Point, maxJumpKm float64, minPointsPerRoute int) []core.Route {
	var routes []core.Route
	visited := make(map[core.PointID]bool, len(points))
	var nextID core.RouteID = 1

	for _, start := range points {
		if visited[start.ID] {
			continue
		}

		chain := []core.PointID{start.ID}
		visited[start.ID] = true
		tail := start

		for {
			next, ok := nearestUnvisited(tail, points, visited, maxJumpKm)
			if !ok {
				break
			}
			chain = append(chain, next.ID)
			visited[next.ID] = true
			tail = next
		}

		if len(chain) < minPointsPerRoute {
			continue
		}

		routes = append(routes, core.Route{
			ID:          nextID,
			Name:        fmt.Sprintf("Route %d (%s -> %s)", nextID, start.Name, tail.Name),
			Description: GeneratedDescription,
			Points:      chain,
		})
		nextID++
	}

	return routes
}

// nearestUnvisited finds the closest unvisited point within maxKm of current.
// Ties keep the earlier point in input order.
func nearestUnvisited(current core.Point, points []core.Point, visited map[core.PointID]bool, maxKm float64) (core.Point, bool) {
	var nearest core.Point
	found := false
	best := math.MaxFloat64

	for _, candidate := range points {
		if candidate.ID == current.ID || visited[candidate.ID] {
			continue
		}
		d := geo.Distance(current, candidate)
		if d <= maxKm && d < best {
			best = d
			nearest = candidate
			found = true
		}
	}

	return nearest, found
}
