package postgres

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID serialises migrations when several portal servers start
// against the same database.
const migrationLockID int64 = 0x706f7274616c // "portal"

type migration struct {
	version int
	name    string
	sql     string
}

// loadMigrations reads "<version>_<name>.sql" files from dir, ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: name must be <version>_<name>.sql", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: invalid version %q", entry.Name(), prefix)
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, migration{version: version, name: entry.Name(), sql: string(content)})
	}

	slices.SortFunc(migrations, func(a, b migration) int {
		return cmp.Compare(a.version, b.version)
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].version == migrations[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)",
				migrations[i].version, migrations[i-1].name, migrations[i].name)
		}
	}

	return migrations, nil
}

// runMigrations applies the embedded session schema. Applied versions are
// recorded in schema_migrations so re-running is a no-op.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", mapPostgresError(err))
	}

	applied := 0
	for _, m := range migrations {
		ok, err := applyMigration(ctx, pool, m)
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if ok {
			applied++
		}
	}

	log.Info().
		Int("available", len(migrations)).
		Int("applied", applied).
		Msg("Session store migrations complete")

	return nil
}

// applyMigration runs m in its own transaction under the advisory lock,
// reporting false when another process already applied it.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return false, fmt.Errorf("failed to acquire migration lock: %w", mapPostgresError(err))
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", mapPostgresError(err))
	}
	if exists {
		log.Debug().Int("version", m.version).Msg("Migration already applied")
		return false, nil
	}

	log.Info().Int("version", m.version).Str("name", m.name).Msg("Applying migration")

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return false, fmt.Errorf("failed to execute migration SQL: %w", mapPostgresError(err))
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, m.version,
	); err != nil {
		return false, fmt.Errorf("failed to record migration: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit migration: %w", err)
	}
	return true, nil
}
