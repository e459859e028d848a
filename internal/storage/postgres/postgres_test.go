package postgres

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew_DoesNotConnect(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.False(t, b.Local())
	assert.NoError(t, b.Close())
}

func TestInit_FallsBackToSqlite(t *testing.T) {
	b := New(Dependencies{
		Config:       config.DBConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"},
		FallbackPath: filepath.Join(t.TempDir(), "fallback.db"),
		DBLogger:     zerolog.Nop(),
	})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.True(t, b.Local())

	ctx := context.Background()
	require.NoError(t, b.UpsertTeams(ctx, []core.Team{{ID: 1, Name: "Red"}}))
	team, err := b.Team(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Red", team.Name)
}
