package main

import (
	"fmt"
	"path/filepath"

	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/logging"
	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/internal/storage/memory"
	pgstorage "github.com/sportsin/territory/internal/storage/postgres"
	sqlitestorage "github.com/sportsin/territory/internal/storage/sqlite"
)

// snapshotter is implemented by backends that can write their state to disk on demand.
type snapshotter interface {
	Snapshot() (string, error)
}

func initStorage() error {
	Logger.Debug("Initializing storage")

	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	storageBackend = backend
	Session.SetStorage(storageCfg.Type)
	return nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Config:       config.GetDBConfig(),
			FallbackPath: sessionDBPath(),
			Logger:       Logger.With("component", "storage"),
			DBLogger:     logging.NewZerolog(logWriter(), config.GetString("logLevel")),
		}), nil

	case "sqlite":
		sqliteCfg := storageCfg.SQLite
		if sqliteCfg.DumpPath == "" {
			sqliteCfg.DumpPath = sessionDBPath()
		}
		backend, err := sqlitestorage.New(sqliteCfg, "", Logger.With("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "dumpPath", sqliteCfg.DumpPath)
		return backend, nil

	case "memory", "":
		Logger.Info("Memory storage backend selected")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// sessionDBPath names the local database file of this run.
func sessionDBPath() string {
	return filepath.Join(DataDir, fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}
