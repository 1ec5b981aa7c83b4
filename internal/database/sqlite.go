package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamshory/wsbridge/internal/common/config"

	"github.com/glebarez/sqlite"
)

// NewSQLite opens (and creates when missing) a SQLite database file
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	inMemory := cfg.DBName == ":memory:" || strings.Contains(cfg.DBName, "mode=memory")
	if !inMemory {
		dir := filepath.Dir(cfg.DBName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := open(sqlite.Open(cfg.DBName))
	if err != nil {
		return nil, err
	}
	if inMemory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
