package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lugondev/go-zion/pkg/types"
)

// ErrAccountNotFound is returned by a Source that has no account for a key.
var ErrAccountNotFound = errors.New("account not found")

// Source supplies feed accounts staged for an instruction.
type Source interface {
	Account(ctx context.Context, key types.Pubkey) (*types.Account, error)
}

// MemorySource is an in-memory Source, safe for concurrent use.
type MemorySource struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*types.Account
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		accounts: make(map[types.Pubkey]*types.Account),
	}
}

// Set stores account under key.
func (s *MemorySource) Set(key types.Pubkey, account *types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[key] = account
}

// SetFeed stores an encoded feed under key.
func (s *MemorySource) SetFeed(key types.Pubkey, f Feed) {
	s.Set(key, &types.Account{Data: EncodeFeed(f)})
}

// Account implements Source.
func (s *MemorySource) Account(ctx context.Context, key types.Pubkey) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	cp := *account
	cp.Data = append([]byte(nil), account.Data...)
	return &cp, nil
}
