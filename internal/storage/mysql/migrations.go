package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

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
			id VARCHAR(64) PRIMARY KEY,
			address VARCHAR(64) UNIQUE NOT NULL,
			admin VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			last_update_slot BIGINT UNSIGNED NOT NULL,
			record VARBINARY(512) NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_pools_admin (admin)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

		CREATE TABLE IF NOT EXISTS receipts (
			id VARCHAR(36) PRIMARY KEY,
			pool VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			signer VARCHAR(64) NOT NULL,
			slot BIGINT UNSIGNED NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_receipts_pool (pool, slot DESC),
			INDEX idx_receipts_signer (signer, slot DESC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
		`,
		Down: `
		DROP TABLE IF EXISTS receipts;
		DROP TABLE IF EXISTS pools;
		`,
	},
}

type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Up applies every migration not yet recorded, each in its own transaction.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	for _, migration := range migrations {
		applied, err := m.isMigrationApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}

		if applied {
			continue
		}

		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		slog.Info("mysql migration applied", "version", migration.Version, "description", migration.Description)
	}

	return nil
}

// Down reverts up to steps applied migrations, newest first.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	reverted := 0
	for i := len(migrations) - 1; i >= 0 && reverted < steps; i-- {
		migration := migrations[i]

		applied, err := m.isMigrationApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}

		if !applied {
			continue
		}

		if err := m.revertMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}

		slog.Info("mysql migration reverted", "version", migration.Version, "description", migration.Description)
		reverted++
	}

	if reverted == 0 {
		return fmt.Errorf("no migrations to rollback")
	}
	return nil
}

// Status reports every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]storage.MigrationStatus, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	out := make([]storage.MigrationStatus, 0, len(migrations))
	for _, migration := range migrations {
		applied, err := m.isMigrationApplied(ctx, migration.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     applied,
		})
	}
	return out, nil
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) isMigrationApplied(ctx context.Context, version int) (bool, error) {
	query := `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`
	var count int
	err := m.db.QueryRowContext(ctx, query, version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *Migrator) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return err
	}

	insertQuery := `INSERT INTO schema_migrations (version, description) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, insertQuery, migration.Version, migration.Description); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *Migrator) revertMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
		return err
	}

	deleteQuery := `DELETE FROM schema_migrations WHERE version = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}
