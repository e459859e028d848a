// Package postgres implements the storage.Backend interface on PostgreSQL.
// When the server cannot be reached it falls back to a local SQLite database,
// so an engine started without its database still runs.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/database"
	gormstorage "github.com/sportsin/territory/internal/storage/gorm"
)

// Dependencies holds all dependencies for the postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	// FallbackPath is the SQLite file used when postgres is unreachable; empty means in memory.
	FallbackPath string
	Logger       *slog.Logger
	DBLogger     zerolog.Logger
}

// Backend implements storage.Backend on a postgres connection.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	manager *database.Manager
}

// New creates a new postgres storage backend. No connection is made until Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects, falling back to SQLite, and migrates the schema.
func (b *Backend) Init() error {
	m := database.NewManager(b.deps.DBLogger)
	m.SqliteFilePath = b.deps.FallbackPath
	if err := m.Connect(b.deps.Config); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	b.manager = m

	if m.ShouldSaveLocal {
		b.deps.Logger.Warn("Postgres unreachable, using local SQLite", "path", b.deps.FallbackPath)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: b.deps.Logger})
	if err := m.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Local reports whether the backend fell back to SQLite.
func (b *Backend) Local() bool {
	return b.manager != nil && b.manager.ShouldSaveLocal
}

// Close closes the connection.
func (b *Backend) Close() error {
	if b.manager == nil || b.manager.SqlDB == nil {
		return nil
	}
	return b.manager.SqlDB.Close()
}
