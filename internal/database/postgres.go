package database

import (
	"github.com/kamshory/wsbridge/internal/common/config"

	"gorm.io/driver/postgres"
)

// NewPostgres connects to a PostgreSQL server
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	return open(postgres.Open(cfg.GetDSN()))
}
