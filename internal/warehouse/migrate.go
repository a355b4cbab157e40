package warehouse

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded SQL migrations: the audit and DQ log tables
// and the constrained silver tables. Safe to run repeatedly.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgxURL(databaseURL))
	if err != nil {
		return fmt.Errorf("%w: open migration target: %v", ErrDestinationUnavailable, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: apply migrations: %v", ErrDestinationUnavailable, err)
	}
	return nil
}

// pgxURL rewrites a postgres URL to select golang-migrate's pgx/v5 driver.
func pgxURL(u string) string {
	if strings.HasPrefix(u, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(u, "postgresql://")
	}
	if strings.HasPrefix(u, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(u, "postgres://")
	}
	return u
}
