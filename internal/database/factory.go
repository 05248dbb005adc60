package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sn-go/internal/config"
	"sn-go/internal/sn"
)

// NewStoreFromConfig creates a Store implementation based on the database config type.
func NewStoreFromConfig(ctx context.Context, cfg config.DatabaseConfig) (sn.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqliteStore(filepath.Join(cfg.DataDir, "sn.db"))
	case "memory":
		return sqliteStore(":memory:")
	case "mongo":
		if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
			return nil, fmt.Errorf("mongo database requires mongo_uri and mongo_database to be set")
		}
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// sqliteStore avoids returning a typed nil inside the interface.
func sqliteStore(path string) (sn.Store, error) {
	s, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
