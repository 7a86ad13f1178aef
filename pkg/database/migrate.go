package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations applies all pending goose migrations.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// MigrationStatus prints the applied/pending state of every migration.
func MigrationStatus(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	return goose.Status(db, "migrations")
}

// CheckTables fails when any of the named tables is missing. The embedded
// migrations only create the default collection names, so a renamed
// collection must be created out of band before the server starts.
func CheckTables(ctx context.Context, db *sql.DB, names ...string) error {
	var missing []string
	for _, name := range names {
		var reg sql.NullString
		if err := db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, pq.QuoteIdentifier(name)).Scan(&reg); err != nil {
			return fmt.Errorf("failed to look up table %s: %w", name, err)
		}
		if !reg.Valid {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("configured tables do not exist: %s", strings.Join(missing, ", "))
	}
	return nil
}
