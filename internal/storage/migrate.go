package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

func runMigrations(conn *sql.DB, dialect Dialect, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	var (
		driver database.Driver
		own    *sql.DB
	)
	switch dialect {
	case SQLite:
		// Migrate on the shared handle: a second connection to :memory: would
		// see an empty database. The migrate instance is not closed because
		// that would close conn too.
		driver, err = sqlite.WithInstance(conn, &sqlite.Config{})
	case Postgres:
		// The pgx driver pins a connection for its lifetime, so give it its own pool.
		own, err = sql.Open(dialect.driverName(), dsn)
		if err != nil {
			return fmt.Errorf("open migration database: %w", err)
		}
		driver, err = migratepgx.WithInstance(own, &migratepgx.Config{})
	}
	if err != nil {
		if own != nil {
			own.Close()
		}
		return fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		if own != nil {
			own.Close()
		}
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if own != nil {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
