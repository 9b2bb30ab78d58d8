package sqlx

import (
	"errors"
	"fmt"
	"time"

	libsqlx "github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a database/sql driver supported by the store.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	libsqlx.BindDriver(string(DriverSQLite), libsqlx.QUESTION)
}

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" env:"SCOREKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" env:"SCOREKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"SCOREKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"SCOREKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"SCOREKIT_SQL_CONN_MAX_LIFETIME"`
	RunMigrations   bool          `json:"run_migrations" env:"SCOREKIT_SQL_RUN_MIGRATIONS"`
}

// DefaultConfig returns defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		RunMigrations:   true,
	}
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("driver must be one of: %s, %s, %s", DriverPostgres, DriverMySQL, DriverSQLite)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

func (d Driver) gooseDialect() string {
	if d == DriverSQLite {
		return "sqlite3"
	}
	return string(d)
}
