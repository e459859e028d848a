package sqlitestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/database"
	"github.com/sportsin/territory/internal/storage"
	gormstorage "github.com/sportsin/territory/internal/storage/gorm"
	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestCloseWritesFinalDump(t *testing.T) {
	out := filepath.Join(t.TempDir(), "territory.db")
	b, err := New(config.SQLiteConfig{DumpPath: out}, "file:finaldump?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	ctx := context.Background()
	require.NoError(t, b.UpsertPoints(ctx, []core.Point{{ID: "a", Name: "A", Lat: 1, Lon: 2, Owner: 3}}))
	require.NoError(t, b.Close())
	// closing twice is fine
	require.NoError(t, b.Close())

	db, err := database.OpenSqlite(out)
	require.NoError(t, err)
	disk := gormstorage.New(gormstorage.Dependencies{DB: db})
	points, err := disk.Points(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, core.TeamID(3), points[0].Owner)
}

func TestDumpLoop(t *testing.T) {
	out := filepath.Join(t.TempDir(), "loop.db")
	b, err := New(config.SQLiteConfig{DumpPath: out, DumpInterval: 10 * time.Millisecond}, "file:dumploop?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(out)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNoDumpPath(t *testing.T) {
	b, err := New(config.SQLiteConfig{DumpInterval: time.Millisecond}, "file:nodump?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.Nil(t, b.done)
	assert.NoError(t, b.Close())
}
