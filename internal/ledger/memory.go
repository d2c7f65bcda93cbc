package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/lugondev/go-zion/internal/common"
	"github.com/lugondev/go-zion/pkg/types"
)

// TokenAccount is a balance of one mint held by an owner.
type TokenAccount struct {
	Address types.Pubkey `json:"address"`
	Mint    types.Pubkey `json:"mint"`
	Owner   types.Pubkey `json:"owner"`
	Amount  uint64       `json:"amount"`
}

// Memory is an in-memory Ledger, safe for concurrent use.
type Memory struct {
	common.LoggerMixin

	mu       sync.Mutex
	accounts map[types.Pubkey]*TokenAccount
	supply   map[types.Pubkey]uint64
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		LoggerMixin: common.NewLoggerMixin("ledger"),
		accounts:    make(map[types.Pubkey]*TokenAccount),
		supply:      make(map[types.Pubkey]uint64),
	}
}

// WithLogger sets the logger and returns the ledger.
func (m *Memory) WithLogger(logger *slog.Logger) *Memory {
	m.SetLogger(logger)
	return m
}

// CreateAccount opens a token account with an initial balance, which is
// added to the mint's supply.
func (m *Memory) CreateAccount(address, mint, owner types.Pubkey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[address]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, address)
	}
	if m.supply[mint] > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	m.accounts[address] = &TokenAccount{Address: address, Mint: mint, Owner: owner, Amount: amount}
	m.supply[mint] += amount
	return nil
}

// Account returns a copy of the account at address.
func (m *Memory) Account(address types.Pubkey) (TokenAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[address]
	if !ok {
		return TokenAccount{}, false
	}
	return *acc, true
}

// Balance returns the balance at address, or zero if it does not exist.
func (m *Memory) Balance(address types.Pubkey) uint64 {
	acc, _ := m.Account(address)
	return acc.Amount
}

// Supply returns the total supply of mint.
func (m *Memory) Supply(mint types.Pubkey) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply[mint]
}

// Apply implements Ledger. Movements are validated against a staged copy of
// the touched balances; nothing is committed unless every movement succeeds.
func (m *Memory) Apply(ctx context.Context, movements []Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	balances := make(map[types.Pubkey]uint64)
	supply := make(map[types.Pubkey]uint64)

	balance := func(address, mint types.Pubkey) (uint64, error) {
		acc, ok := m.accounts[address]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		if !acc.Mint.Equals(mint) {
			return 0, fmt.Errorf("%w: %s holds %s, not %s", ErrMintMismatch, address, acc.Mint, mint)
		}
		if v, ok := balances[address]; ok {
			return v, nil
		}
		return acc.Amount, nil
	}
	mintSupply := func(mint types.Pubkey) uint64 {
		if v, ok := supply[mint]; ok {
			return v
		}
		return m.supply[mint]
	}

	for i, mv := range movements {
		if mv.Amount == 0 {
			return fmt.Errorf("movement %d: %w", i, ErrZeroAmount)
		}

		switch mv.Kind {
		case MovementTransfer:
			from, err := balance(mv.From, mv.Mint)
			if err != nil {
				return fmt.Errorf("movement %d: %w", i, err)
			}
			if from < mv.Amount {
				return fmt.Errorf("movement %d: %w: %s has %d, needs %d", i, ErrInsufficientFunds, mv.From, from, mv.Amount)
			}
			balances[mv.From] = from - mv.Amount

			to, err := balance(mv.To, mv.Mint)
			if err != nil {
				return fmt.Errorf("movement %d: %w", i, err)
			}
			if to > math.MaxUint64-mv.Amount {
				return fmt.Errorf("movement %d: %w", i, ErrSupplyOverflow)
			}
			balances[mv.To] = to + mv.Amount

		case MovementMintTo:
			to, err := balance(mv.To, mv.Mint)
			if err != nil {
				return fmt.Errorf("movement %d: %w", i, err)
			}
			s := mintSupply(mv.Mint)
			if to > math.MaxUint64-mv.Amount || s > math.MaxUint64-mv.Amount {
				return fmt.Errorf("movement %d: %w", i, ErrSupplyOverflow)
			}
			balances[mv.To] = to + mv.Amount
			supply[mv.Mint] = s + mv.Amount

		case MovementBurn:
			from, err := balance(mv.From, mv.Mint)
			if err != nil {
				return fmt.Errorf("movement %d: %w", i, err)
			}
			if from < mv.Amount {
				return fmt.Errorf("movement %d: %w: %s has %d, needs %d", i, ErrInsufficientFunds, mv.From, from, mv.Amount)
			}
			balances[mv.From] = from - mv.Amount
			supply[mv.Mint] = mintSupply(mv.Mint) - mv.Amount

		default:
			return fmt.Errorf("movement %d: unknown kind %d", i, mv.Kind)
		}
	}

	for address, amount := range balances {
		m.accounts[address].Amount = amount
	}
	for mint, amount := range supply {
		m.supply[mint] = amount
	}

	m.GetLogger().Debug("ledger movements applied", "count", len(movements))
	return nil
}

// Revert implements Ledger.
func (m *Memory) Revert(ctx context.Context, movements []Movement) error {
	return m.Apply(ctx, Invert(movements))
}
