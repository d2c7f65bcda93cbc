package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPoolRepository serves pool lookups from an LRU cache in front of
// another PoolRepository. Saves write through.
type CachedPoolRepository struct {
	next  PoolRepository
	cache *lru.Cache[string, *PoolModel]
}

// NewCachedPoolRepository wraps next with a cache of up to size pools.
func NewCachedPoolRepository(next PoolRepository, size int) (*CachedPoolRepository, error) {
	cache, err := lru.New[string, *PoolModel](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool cache: %w", err)
	}
	return &CachedPoolRepository{next: next, cache: cache}, nil
}

func (r *CachedPoolRepository) Save(ctx context.Context, pool *PoolModel) error {
	if err := r.next.Save(ctx, pool); err != nil {
		r.cache.Remove(pool.Address)
		return err
	}
	r.cache.Add(pool.Address, pool.Clone())
	return nil
}

func (r *CachedPoolRepository) FindByAddress(ctx context.Context, address string) (*PoolModel, error) {
	if p, ok := r.cache.Get(address); ok {
		return p.Clone(), nil
	}
	p, err := r.next.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	r.cache.Add(address, p.Clone())
	return p, nil
}

// FindByAdmin is not cached.
func (r *CachedPoolRepository) FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*PoolModel, error) {
	return r.next.FindByAdmin(ctx, admin, limit, offset)
}

// Len returns the number of cached pools.
func (r *CachedPoolRepository) Len() int {
	return r.cache.Len()
}

// Purge empties the cache.
func (r *CachedPoolRepository) Purge() {
	r.cache.Purge()
}

type cachedRepository struct {
	Repository
	pools *CachedPoolRepository
}

func (r *cachedRepository) Pools() PoolRepository {
	return r.pools
}

// WithPoolCache returns repo with its pool lookups cached. A size below one
// returns repo unchanged.
func WithPoolCache(repo Repository, size int) (Repository, error) {
	if size < 1 {
		return repo, nil
	}
	pools, err := NewCachedPoolRepository(repo.Pools(), size)
	if err != nil {
		return nil, err
	}
	return &cachedRepository{Repository: repo, pools: pools}, nil
}
