// Package geo provides great-circle distances and projections for point coordinates.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/sportsin/territory/pkg/core"
	"github.com/wroge/wgs84"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// DistanceKm returns the haversine distance in kilometres between two lat/lon pairs in degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance is DistanceKm between two points.
func Distance(a, b core.Point) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ParseLatLon parses a "lat,lon" string in degrees.
func ParseLatLon(coords string) (lat, lon float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCoordinates
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if !Valid(lat, lon) {
		return 0, 0, ErrInvalidCoordinates
	}
	return lat, lon, nil
}

// Valid reports whether lat/lon are inside the WGS84 range.
func Valid(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Project converts WGS84 (EPSG:4326) degrees to a Web Mercator (EPSG:3857) point.
// Stored geometry is always 3857 so SQLite and Postgres hold the same bytes.
// Coordinates that do not project to a finite point give an empty point.
func Project(lat, lon float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lon, lat, 0)
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.CoordinatesType(geom.DimXY),
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	return p
}

// Unproject converts a 3857 point back to lat/lon degrees.
func Unproject(p geom.Point) (lat, lon float64, ok bool) {
	c, ok := p.Coordinates()
	if !ok {
		return 0, 0, false
	}
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ = f(c.X, c.Y, 0)
	return lat, lon, true
}
