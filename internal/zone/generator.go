// Package zone clusters points into zones and derives zone ownership from member points.
package zone

import (
	"fmt"

	"github.com/sportsin/territory/internal/geo"
	"github.com/sportsin/territory/pkg/core"
)

// Generate groups points into zones with a single pass of radius clustering.
//
// Points are visited in input order. Each unassigned point becomes a candidate
// center and collects every other unassigned point within radiusKm of it. The
// group becomes a zone when it has at least minPointsPerZone members; otherwise
// its points stay unassigned and may be picked up by a later center.
// Clustering is not transitive and depends on input order.
func Generate(points []core.Point, radiusKm float64, minPointsPerZone int) []core.Zone {
	var zones []core.Zone
	assigned := make(map[core.PointID]bool, len(points))
	var nextID core.ZoneID = 1

	for i, center := range points {
		if assigned[center.ID] {
			continue
		}

		group := []core.PointID{center.ID}
		for j, candidate := range points {
			if j == i || candidate.ID == center.ID || assigned[candidate.ID] {
				continue
			}
			if geo.Distance(center, candidate) <= radiusKm {
				group = append(group, candidate.ID)
			}
		}

		if len(group) < minPointsPerZone {
			continue
		}

		zones = append(zones, core.Zone{
			ID:     nextID,
			Name:   fmt.Sprintf("Zone %d (center: %s)", nextID, center.Name),
			Center: center.ID,
			Points: group,
		})
		nextID++
		for _, id := range group {
			assigned[id] = true
		}
	}

	return zones
}
