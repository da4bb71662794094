package database

import (
	"fmt"
	"os"
	"path/filepath"

	"taxarchive/internal/config"
)

// NewDatabaseFromConfig opens the database selected by the database config type.
// Each archive gets its own file, named after the archive ID.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, archiveID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, archiveID+".db"))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
