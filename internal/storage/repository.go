package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// PoolRepository stores the latest record of each pool.
type PoolRepository interface {
	Save(ctx context.Context, pool *PoolModel) error
	FindByAddress(ctx context.Context, address string) (*PoolModel, error)
	FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*PoolModel, error)
}

// ReceiptRepository stores the receipts of committed instructions.
type ReceiptRepository interface {
	Save(ctx context.Context, receipt *ReceiptModel) error
	SaveBatch(ctx context.Context, receipts []*ReceiptModel) error
	FindByID(ctx context.Context, id string) (*ReceiptModel, error)
	FindByPool(ctx context.Context, pool string, limit int, offset int) ([]*ReceiptModel, error)
	FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*ReceiptModel, error)
}

type Repository interface {
	Pools() PoolRepository
	Receipts() ReceiptRepository
	Close() error
	Ping(ctx context.Context) error
}

// MigrationStatus describes one schema migration.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

// Migrator manages the schema of a SQL backend.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context, steps int) error
	Status(ctx context.Context) ([]MigrationStatus, error)
}

// Migratable is implemented by repositories that own a schema.
type Migratable interface {
	Migrator() Migrator
}
