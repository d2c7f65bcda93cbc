package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps pools and receipts in process memory. It backs
// simulations and tests and is the fallback when no database is configured.
type MemoryRepository struct {
	pools    *memoryPoolRepository
	receipts *memoryReceiptRepository
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pools:    &memoryPoolRepository{pools: make(map[string]*PoolModel)},
		receipts: &memoryReceiptRepository{byID: make(map[string]*ReceiptModel)},
	}
}

func (r *MemoryRepository) Pools() PoolRepository       { return r.pools }
func (r *MemoryRepository) Receipts() ReceiptRepository { return r.receipts }
func (r *MemoryRepository) Close() error                { return nil }
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memoryPoolRepository struct {
	mu    sync.RWMutex
	pools map[string]*PoolModel
}

func (r *memoryPoolRepository) Save(ctx context.Context, pool *PoolModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := pool.Clone()
	if existing, ok := r.pools[pool.Address]; ok {
		saved.CreatedAt = existing.CreatedAt
	}
	r.pools[pool.Address] = saved
	return nil
}

func (r *memoryPoolRepository) FindByAddress(ctx context.Context, address string) (*PoolModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[address]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memoryPoolRepository) FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*PoolModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*PoolModel
	for _, p := range r.pools {
		if p.Admin == admin {
			matches = append(matches, p.Clone())
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Address < matches[j].Address })
	return page(matches, limit, offset), nil
}

type memoryReceiptRepository struct {
	mu    sync.RWMutex
	order []*ReceiptModel
	byID  map[string]*ReceiptModel
}

func (r *memoryReceiptRepository) Save(ctx context.Context, receipt *ReceiptModel) error {
	return r.SaveBatch(ctx, []*ReceiptModel{receipt})
}

func (r *memoryReceiptRepository) SaveBatch(ctx context.Context, receipts []*ReceiptModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, receipt := range receipts {
		if _, ok := r.byID[receipt.ID]; ok {
			continue
		}
		saved := receipt.Clone()
		r.byID[saved.ID] = saved
		r.order = append(r.order, saved)
	}
	return nil
}

func (r *memoryReceiptRepository) FindByID(ctx context.Context, id string) (*ReceiptModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	receipt, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return receipt.Clone(), nil
}

func (r *memoryReceiptRepository) FindByPool(ctx context.Context, pool string, limit int, offset int) ([]*ReceiptModel, error) {
	return r.find(func(m *ReceiptModel) bool { return m.Pool == pool }, limit, offset), nil
}

func (r *memoryReceiptRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*ReceiptModel, error) {
	return r.find(func(m *ReceiptModel) bool { return m.Signer == signer }, limit, offset), nil
}

// find returns matches newest first.
func (r *memoryReceiptRepository) find(match func(*ReceiptModel) bool, limit, offset int) []*ReceiptModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*ReceiptModel
	for i := len(r.order) - 1; i >= 0; i-- {
		if match(r.order[i]) {
			matches = append(matches, r.order[i].Clone())
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Slot > matches[j].Slot })
	return page(matches, limit, offset)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
