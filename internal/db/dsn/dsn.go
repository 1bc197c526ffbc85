// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/lariatlabs/dirsync/internal/config"
)

// CreateMySQL builds a MySQL Data Source Name from the configuration.
func CreateMySQL(dbCfg config.DB) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
		dbCfg.Extras,
	)
}

// CreatePostgres builds a Postgres Data Source Name (keyword/value form, as
// accepted by both gorm.io/driver/postgres and pgx) from the configuration.
// Extras is appended verbatim, e.g. "sslmode=disable".
func CreatePostgres(dbCfg config.DB) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Name,
		dbCfg.Extras,
	)
}
