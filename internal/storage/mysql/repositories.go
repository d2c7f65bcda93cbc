package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lugondev/go-zion/internal/storage"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type mysqlPoolRepository struct {
	db *sql.DB
}

const poolColumns = `id, address, admin, status, last_update_slot, record, updated_at, created_at`

func scanPool(row rowScanner) (*storage.PoolModel, error) {
	var p storage.PoolModel
	if err := row.Scan(
		&p.ID, &p.Address, &p.Admin, &p.Status, &p.LastUpdateSlot, &p.Record, &p.UpdatedAt, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *mysqlPoolRepository) Save(ctx context.Context, p *storage.PoolModel) error {
	query := `
		INSERT INTO pools (` + poolColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			admin = VALUES(admin),
			status = VALUES(status),
			last_update_slot = VALUES(last_update_slot),
			record = VALUES(record),
			updated_at = VALUES(updated_at)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Address, p.Admin, p.Status, p.LastUpdateSlot, p.Record, p.UpdatedAt, p.CreatedAt,
	)
	return err
}

func (r *mysqlPoolRepository) FindByAddress(ctx context.Context, address string) (*storage.PoolModel, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE address = ?`
	return scanPool(r.db.QueryRowContext(ctx, query, address))
}

func (r *mysqlPoolRepository) FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*storage.PoolModel, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE admin = ? ORDER BY address LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, admin, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*storage.PoolModel
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

type mysqlReceiptRepository struct {
	db *sql.DB
}

const (
	receiptColumns = `id, pool, kind, signer, slot, payload, created_at`
	insertReceipt  = `INSERT IGNORE INTO receipts (` + receiptColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

func scanReceipt(row rowScanner) (*storage.ReceiptModel, error) {
	var m storage.ReceiptModel
	if err := row.Scan(&m.ID, &m.Pool, &m.Kind, &m.Signer, &m.Slot, &m.Payload, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *mysqlReceiptRepository) Save(ctx context.Context, m *storage.ReceiptModel) error {
	_, err := r.db.ExecContext(ctx, insertReceipt, m.ID, m.Pool, m.Kind, m.Signer, m.Slot, m.Payload, m.CreatedAt)
	return err
}

func (r *mysqlReceiptRepository) SaveBatch(ctx context.Context, receipts []*storage.ReceiptModel) error {
	helper := storage.NewMySQLBatchHelper(r.db)
	return helper.BatchInsert(ctx, insertReceipt, len(receipts), func(stmt *sql.Stmt, i int) error {
		m := receipts[i]
		_, err := stmt.ExecContext(ctx, m.ID, m.Pool, m.Kind, m.Signer, m.Slot, m.Payload, m.CreatedAt)
		return err
	})
}

func (r *mysqlReceiptRepository) FindByID(ctx context.Context, id string) (*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = ?`
	return scanReceipt(r.db.QueryRowContext(ctx, query, id))
}

func (r *mysqlReceiptRepository) FindByPool(ctx context.Context, pool string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE pool = ?
		ORDER BY slot DESC, created_at DESC LIMIT ? OFFSET ?`
	return r.query(ctx, query, pool, limit, offset)
}

func (r *mysqlReceiptRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE signer = ?
		ORDER BY slot DESC, created_at DESC LIMIT ? OFFSET ?`
	return r.query(ctx, query, signer, limit, offset)
}

func (r *mysqlReceiptRepository) query(ctx context.Context, query string, args ...any) ([]*storage.ReceiptModel, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*storage.ReceiptModel
	for rows.Next() {
		m, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, m)
	}
	return receipts, rows.Err()
}
