package database

import (
	"github.com/kamshory/wsbridge/internal/common/config"

	"gorm.io/driver/mysql"
)

// NewMySQL connects to a MySQL server
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	return open(mysql.Open(cfg.GetDSN()))
}
