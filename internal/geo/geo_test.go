package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/sportsin/territory/pkg/core"
)

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	d := DistanceKm(48.8566, 2.3522, 48.8566, 2.3522)
	if d > 0.001 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistanceKm_KnownCities(t *testing.T) {
	tests := []struct {
		name         string
		lat1, lon1   float64
		lat2, lon2   float64
		minKm, maxKm float64
	}{
		{"paris-lyon", 48.8566, 2.3522, 45.7640, 4.8357, 380, 400},
		{"paris-london", 48.8566, 2.3522, 51.5074, -0.1278, 330, 355},
		{"pole to pole", 90, 0, -90, 0, 19900, 20100},
		{"equator half turn", 0, 0, 0, 180, 19900, 20100},
		{"about 111 metres", 48.8566, 2.3522, 48.8576, 2.3522, 0.05, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if d < tt.minKm || d > tt.maxKm {
				t.Errorf("expected %.2f..%.2f km, got %f", tt.minKm, tt.maxKm, d)
			}
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	ab := DistanceKm(48.8566, 2.3522, 45.7640, 4.8357)
	ba := DistanceKm(45.7640, 4.8357, 48.8566, 2.3522)
	if math.Abs(ab-ba) > 0.001 {
		t.Errorf("expected symmetric distance, got %f and %f", ab, ba)
	}
}

func TestDistance_UsesPointCoordinates(t *testing.T) {
	a := core.Point{Lat: 48.850, Lon: 2.350}
	b := core.Point{Lat: 48.860, Lon: 2.350}
	d := Distance(a, b)
	if d < 1.0 || d > 1.2 {
		t.Errorf("expected ~1.11 km, got %f", d)
	}
}

func TestParseLatLon_Valid(t *testing.T) {
	lat, lon, err := ParseLatLon("48.85, 2.35")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lat != 48.85 || lon != 2.35 {
		t.Errorf("expected 48.85,2.35 got %f,%f", lat, lon)
	}
}

func TestParseLatLon_Invalid(t *testing.T) {
	for _, in := range []string{"", "48.85", "a,2", "2,b", "1,2,3", "91,0", "0,181"} {
		t.Run(in, func(t *testing.T) {
			_, _, err := ParseLatLon(in)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates for %q, got %v", in, err)
			}
		})
	}
}

func TestProject_Origin(t *testing.T) {
	coords, ok := Project(0, 0).Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected origin, got %f,%f", coords.X, coords.Y)
	}
}

func TestProject_Hemispheres(t *testing.T) {
	coords, ok := Project(-30, -45).Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X >= 0 {
		t.Errorf("expected negative X for western hemisphere, got %f", coords.X)
	}
	if coords.Y >= 0 {
		t.Errorf("expected negative Y for southern hemisphere, got %f", coords.Y)
	}
}

func TestProject_NaNIsEmpty(t *testing.T) {
	p := Project(math.NaN(), 2.35)
	if !p.IsEmpty() {
		t.Errorf("expected empty point, got %v", p)
	}
	if _, _, ok := Unproject(p); ok {
		t.Error("expected Unproject to reject an empty point")
	}
}

func TestUnproject_RoundTrip(t *testing.T) {
	lat, lon, ok := Unproject(Project(48.8566, 2.3522))
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(lat-48.8566) > 1e-6 || math.Abs(lon-2.3522) > 1e-6 {
		t.Errorf("expected 48.8566,2.3522 got %f,%f", lat, lon)
	}
}
