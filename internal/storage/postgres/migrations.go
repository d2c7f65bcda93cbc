package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-zion/internal/storage"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Pools and receipts",
		Up: `
		CREATE TABLE IF NOT EXISTS pools (
			id TEXT PRIMARY KEY,
			address TEXT UNIQUE NOT NULL,
			admin TEXT NOT NULL,
			status TEXT NOT NULL,
			last_update_slot BIGINT NOT NULL,
			record BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pools_admin ON pools(admin);

		CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			pool TEXT NOT NULL,
			kind TEXT NOT NULL,
			signer TEXT NOT NULL,
			slot BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_receipts_pool ON receipts(pool, slot DESC);
		CREATE INDEX IF NOT EXISTS idx_receipts_signer ON receipts(signer, slot DESC);
		`,
		Down: `
		DROP TABLE IF EXISTS receipts;
		DROP TABLE IF EXISTS pools;
		`,
	},
}

type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Up applies every pending migration in one transaction.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := 0
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := tx.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	if applied > 0 {
		slog.Info("postgres migrations applied", "count", applied)
	}
	return nil
}

// Down rolls back up to steps applied migrations, newest first.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rolledBack := 0
	for i := len(migrations) - 1; i >= 0 && rolledBack < steps; i-- {
		migration := migrations[i]
		if migration.Version > currentVersion {
			continue
		}

		if _, err := tx.Exec(ctx, migration.Down); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx,
			"DELETE FROM schema_migrations WHERE version = $1",
			migration.Version,
		); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
		}

		rolledBack++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	slog.Info("postgres migrations rolled back", "count", rolledBack)
	return nil
}

// Status reports every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]storage.MigrationStatus, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	out := make([]storage.MigrationStatus, 0, len(migrations))
	for _, migration := range migrations {
		out = append(out, storage.MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     migration.Version <= currentVersion,
		})
	}
	return out, nil
}
