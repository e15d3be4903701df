package postgres

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	ierr "github.com/flexprice/recurring/internal/errors"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

const migrationTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       VARCHAR(255) PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate applies every embedded migration that has not been recorded yet, each in its own transaction.
// It returns the names of the migrations applied by this call.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := db.ExecContext(ctx, migrationTable); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create schema_migrations table").
			Mark(ierr.ErrDatabase)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
	}
	sort.Strings(names)

	var applied []string
	for _, path := range names {
		name := strings.TrimSuffix(strings.TrimPrefix(path, "migrations/"), ".up.sql")

		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, name); err != nil {
			return applied, ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		if exists {
			continue
		}

		body, err := migrationFS.ReadFile(path)
		if err != nil {
			return applied, ierr.WithError(err).Mark(ierr.ErrSystem)
		}

		err = db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return applied, ierr.WithError(err).
				WithHintf("Migration %s failed", name).
				Mark(ierr.ErrDatabase)
		}

		db.logger.Infow("applied migration", "name", name)
		applied = append(applied, name)
	}

	return applied, nil
}

// WriteMigrations writes every embedded migration to w in apply order
func WriteMigrations(w io.Writer) error {
	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, path := range names {
		body, err := migrationFS.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "-- %s\n%s\n", strings.TrimPrefix(path, "migrations/"), body); err != nil {
			return err
		}
	}
	return nil
}
