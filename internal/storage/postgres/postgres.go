package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-zion/internal/config"
	"github.com/lugondev/go-zion/internal/storage"
)

type PostgresRepository struct {
	pool        *pgxpool.Pool
	poolRepo    storage.PoolRepository
	receiptRepo storage.ReceiptRepository
}

func NewPostgresRepository(ctx context.Context, cfg *config.PostgresConfig) (*PostgresRepository, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := NewMigrator(pool)
	if err := migrator.Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresRepository{
		pool:        pool,
		poolRepo:    &postgresPoolRepository{pool: pool},
		receiptRepo: &postgresReceiptRepository{pool: pool},
	}, nil
}

func (r *PostgresRepository) Pools() storage.PoolRepository {
	return r.poolRepo
}

func (r *PostgresRepository) Receipts() storage.ReceiptRepository {
	return r.receiptRepo
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Migrator() storage.Migrator {
	return NewMigrator(r.pool)
}
