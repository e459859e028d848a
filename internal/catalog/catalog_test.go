package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadPerks_EmptyPathIsDefault(t *testing.T) {
	defs, err := LoadPerks("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPerks(), defs)
}

func TestDefaultPerks_CoverEveryEffect(t *testing.T) {
	types := map[string]bool{}
	for _, d := range DefaultPerks() {
		types[d.EffectType] = true
		assert.Positive(t, d.Duration, d.Code)
		assert.GreaterOrEqual(t, d.MaxActiveInstances, 1, d.Code)
		require.NotNil(t, d.Params, d.Code)
		assert.Equal(t, d.EffectType, d.Params.EffectType(), d.Code)
	}
	assert.True(t, types[core.EffectInfluenceBoost])
	assert.True(t, types[core.EffectInfluenceReduction])
	assert.True(t, types[core.EffectXPMultiplier])
}

func TestLoadPerks(t *testing.T) {
	path := writeFile(t, "perks.yaml", `
perks:
  - code: boost
    name: Boost
    effectType: INFLUENCE_BOOST
    requiredLevel: 2
    duration: 3600
    cooldown: 90m
    maxActiveInstances: 1
    params:
      boostPercent: 40
  - code: SHIELD
    effectType: INFLUENCE_REDUCTION
    duration: 2h
  - code: XP
    effectType: XP_MULTIPLIER
    duration: 10m
    stackable: true
    maxActiveInstances: 3
    params:
      multiplier: 2.5
`)

	defs, err := LoadPerks(path)
	require.NoError(t, err)
	require.Len(t, defs, 3)

	boost := defs[0]
	assert.Equal(t, "BOOST", boost.Code)
	assert.Equal(t, 2, boost.RequiredLevel)
	assert.Equal(t, time.Hour, boost.Duration)
	assert.Equal(t, 90*time.Minute, boost.Cooldown)
	assert.Equal(t, core.BoostParams{BoostPercent: 40}, boost.Params)

	shield := defs[1]
	assert.Equal(t, "SHIELD", shield.Name)
	assert.Equal(t, 1, shield.RequiredLevel)
	assert.Equal(t, 1, shield.MaxActiveInstances)
	assert.Equal(t, time.Duration(0), shield.Cooldown)
	assert.Equal(t, core.ShieldParams{ReductionPercent: core.DefaultReductionPercent}, shield.Params)

	xp := defs[2]
	assert.True(t, xp.Stackable)
	assert.Equal(t, 3, xp.MaxActiveInstances)
	assert.Equal(t, core.XPMultiplierParams{Multiplier: 2.5}, xp.Params)
}

func TestParsePerks_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing code", "perks:\n  - effectType: INFLUENCE_BOOST\n    duration: 1h\n"},
		{"unknown effect", "perks:\n  - code: A\n    effectType: TELEPORT\n    duration: 1h\n"},
		{"no duration", "perks:\n  - code: A\n    effectType: INFLUENCE_BOOST\n"},
		{"negative cooldown", "perks:\n  - code: A\n    effectType: INFLUENCE_BOOST\n    duration: 1h\n    cooldown: -5\n"},
		{"duplicate code", "perks:\n  - code: a\n    effectType: INFLUENCE_BOOST\n    duration: 1h\n  - code: A\n    effectType: XP_MULTIPLIER\n    duration: 1h\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePerks([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedInput), "got %v", err)
		})
	}
}

func TestParsePerks_BadDuration(t *testing.T) {
	_, err := ParsePerks([]byte("perks:\n  - code: A\n    effectType: INFLUENCE_BOOST\n    duration: soon\n"))
	assert.Error(t, err)
}

func TestLoadPerks_MissingFile(t *testing.T) {
	_, err := LoadPerks(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWorld(t *testing.T) {
	path := writeFile(t, "world.yaml", `
teams:
  - id: 1
    name: Red
    xp: 300
  - id: 2
    name: Blue
points:
  - id: P1
    name: Stadium
    lat: 48.85
    lon: 2.35
    activities: [football, running]
  - id: P2
    coords: "48.86, 2.36"
    owner: 2
`)

	w, err := LoadWorld(path)
	require.NoError(t, err)

	assert.Equal(t, []core.Team{{ID: 1, Name: "Red", XP: 300}, {ID: 2, Name: "Blue"}}, w.Teams)
	require.Len(t, w.Points, 2)
	assert.Equal(t, core.Point{
		ID: "P1", Name: "Stadium", Lat: 48.85, Lon: 2.35,
		Activities: []string{"football", "running"},
	}, w.Points[0])
	assert.Equal(t, core.PointID("P2"), w.Points[1].ID)
	assert.Equal(t, "P2", w.Points[1].Name)
	assert.InDelta(t, 48.86, w.Points[1].Lat, 1e-9)
	assert.InDelta(t, 2.36, w.Points[1].Lon, 1e-9)
	assert.Equal(t, core.TeamID(2), w.Points[1].Owner)
}

func TestParseWorld_AcceptsJSON(t *testing.T) {
	w, err := ParseWorld([]byte(`{"points": [{"id": "A", "lat": 1, "lon": 2}]}`))
	require.NoError(t, err)
	require.Len(t, w.Points, 1)
	assert.Equal(t, 1.0, w.Points[0].Lat)
}

func TestParseWorld_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"team id zero", "teams:\n  - id: 0\n"},
		{"duplicate team", "teams:\n  - id: 1\n  - id: 1\n"},
		{"point without id", "points:\n  - lat: 1\n    lon: 1\n"},
		{"no coordinates", "points:\n  - id: A\n    lat: 1\n"},
		{"out of range", "points:\n  - id: A\n    lat: 91\n    lon: 0\n"},
		{"bad coords", "points:\n  - id: A\n    coords: north\n"},
		{"duplicate point", "points:\n  - id: A\n    coords: \"1,1\"\n  - id: A\n    coords: \"2,2\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorld([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedInput), "got %v", err)
		})
	}
}

func TestLoadWorld_EmptyPath(t *testing.T) {
	w, err := LoadWorld("")
	require.NoError(t, err)
	assert.Empty(t, w.Points)
	assert.Empty(t, w.Teams)
}
