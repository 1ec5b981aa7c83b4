package database

import (
	"fmt"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
)

// NewDatabase creates a new database based on configuration
func NewDatabase(cfg *config.DatabaseConfig) (Database, error) {
	switch cfg.Type {
	case cnst.DatabasePostgres:
		return NewPostgres(cfg)
	case cnst.DatabaseSQLite, "":
		return NewSQLite(cfg)
	case cnst.DatabaseMySQL:
		return NewMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
