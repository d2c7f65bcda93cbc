package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lugondev/go-zion/internal/config"
	"github.com/lugondev/go-zion/internal/storage"
)

func init() {
	storage.Register(storage.DatabaseTypeMySQL, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		return NewMySQLRepository(ctx, &cfg.MySQL)
	})
}

type MySQLRepository struct {
	db          *sql.DB
	poolRepo    storage.PoolRepository
	receiptRepo storage.ReceiptRepository
}

// DSN builds the driver connection string for cfg.
func DSN(cfg *config.MySQLConfig) string {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
	if cfg.SSLMode != "" && cfg.SSLMode != "false" && cfg.SSLMode != "disable" {
		dsn += fmt.Sprintf("&tls=%s", cfg.SSLMode)
	}
	return dsn
}

func NewMySQLRepository(ctx context.Context, cfg *config.MySQLConfig) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &MySQLRepository{
		db:          db,
		poolRepo:    &mysqlPoolRepository{db: db},
		receiptRepo: &mysqlReceiptRepository{db: db},
	}, nil
}

func (r *MySQLRepository) Pools() storage.PoolRepository {
	return r.poolRepo
}

func (r *MySQLRepository) Receipts() storage.ReceiptRepository {
	return r.receiptRepo
}

func (r *MySQLRepository) Migrator() storage.Migrator {
	return NewMigrator(r.db)
}

func (r *MySQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
