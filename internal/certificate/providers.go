package certificate

import (
	"fmt"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	"github.com/nfxvault/tlscertd/internal/config"
)

// ProviderSet is the Wire provider set for the certificate store.
var ProviderSet = wire.NewSet(
	NewDB,
	NewMySQLRepository,
)

// NewDB opens and pings the MySQL connection pool for the certificate
// store, sized from DatabaseConfig.
func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to certificate store database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
