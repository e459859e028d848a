package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host: "db", Port: "5432", Username: "u", Password: "p", Database: "territory",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=territory sslmode=disable", dsn)
}

func TestOpenSqliteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territory.db")
	db, err := OpenSqlite(path)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	// migrating twice is harmless
	require.NoError(t, Migrate(db))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSqlite("file:dumptest?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Team{ID: 1, Name: "Red"}).Error)

	dir := t.TempDir()
	out := filepath.Join(dir, "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, out))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	disk, err := OpenSqlite(out)
	require.NoError(t, err)
	var team model.Team
	require.NoError(t, disk.First(&team, 1).Error)
	assert.Equal(t, "Red", team.Name)

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{out}, paths)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSqlite("file:nopath?mode=memory&cache=shared")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_FallsBackToSqlite(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(config.DBConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"})
	require.NoError(t, err)

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NotNil(t, m.SqlDB)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Point{}))

	out := filepath.Join(t.TempDir(), "fallback.db")
	require.NoError(t, m.DumpMemoryToDisk(out))
	_, err = os.Stat(out)
	assert.NoError(t, err)
}
