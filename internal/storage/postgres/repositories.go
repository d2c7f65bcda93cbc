package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-zion/internal/config"
	"github.com/lugondev/go-zion/internal/storage"
)

const poolColumns = `id, address, admin, status, last_update_slot, record, updated_at, created_at`

type postgresPoolRepository struct {
	pool *pgxpool.Pool
}

func scanPool(row pgx.Row) (*storage.PoolModel, error) {
	var p storage.PoolModel
	if err := row.Scan(
		&p.ID, &p.Address, &p.Admin, &p.Status, &p.LastUpdateSlot, &p.Record, &p.UpdatedAt, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresPoolRepository) Save(ctx context.Context, p *storage.PoolModel) error {
	query := `
		INSERT INTO pools (` + poolColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			admin = $3, status = $4, last_update_slot = $5, record = $6, updated_at = $7
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Address, p.Admin, p.Status, p.LastUpdateSlot, p.Record, p.UpdatedAt, p.CreatedAt,
	)
	return err
}

func (r *postgresPoolRepository) FindByAddress(ctx context.Context, address string) (*storage.PoolModel, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE address = $1`
	return queryOne(ctx, r.pool, query, scanPool, address)
}

func (r *postgresPoolRepository) FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*storage.PoolModel, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE admin = $1 ORDER BY address LIMIT $2 OFFSET $3`
	return queryMany(ctx, r.pool, query, scanPool, admin, limit, offset)
}

const receiptColumns = `id, pool, kind, signer, slot, payload, created_at`

type postgresReceiptRepository struct {
	pool *pgxpool.Pool
}

func scanReceipt(row pgx.Row) (*storage.ReceiptModel, error) {
	var m storage.ReceiptModel
	if err := row.Scan(&m.ID, &m.Pool, &m.Kind, &m.Signer, &m.Slot, &m.Payload, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const insertReceipt = `
	INSERT INTO receipts (` + receiptColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

func (r *postgresReceiptRepository) Save(ctx context.Context, m *storage.ReceiptModel) error {
	_, err := r.pool.Exec(ctx, insertReceipt, m.ID, m.Pool, m.Kind, m.Signer, m.Slot, m.Payload, m.CreatedAt)
	return err
}

func (r *postgresReceiptRepository) SaveBatch(ctx context.Context, receipts []*storage.ReceiptModel) error {
	helper := storage.NewPostgresBatchHelper(r.pool)
	return helper.BatchInsert(ctx, insertReceipt, len(receipts), func(batch *pgx.Batch, i int) {
		m := receipts[i]
		batch.Queue(insertReceipt, m.ID, m.Pool, m.Kind, m.Signer, m.Slot, m.Payload, m.CreatedAt)
	})
}

func (r *postgresReceiptRepository) FindByID(ctx context.Context, id string) (*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return queryOne(ctx, r.pool, query, scanReceipt, id)
}

func (r *postgresReceiptRepository) FindByPool(ctx context.Context, pool string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE pool = $1
		ORDER BY slot DESC, created_at DESC LIMIT $2 OFFSET $3`
	return queryMany(ctx, r.pool, query, scanReceipt, pool, limit, offset)
}

func (r *postgresReceiptRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE signer = $1
		ORDER BY slot DESC, created_at DESC LIMIT $2 OFFSET $3`
	return queryMany(ctx, r.pool, query, scanReceipt, signer, limit, offset)
}

func init() {
	storage.Register(storage.DatabaseTypePostgres, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		repo, err := NewPostgresRepository(ctx, &cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres repository: %w", err)
		}
		return repo, nil
	})
}
