// Package solana connects the pool engine to a Solana cluster. Client reads
// oracle feed accounts and the current slot over RPC.
package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/pkg/types"
)

// DefaultTimeout bounds a single RPC call.
const DefaultTimeout = 30 * time.Second

// rpcAPI is the subset of the RPC client the engine needs.
type rpcAPI interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// Config holds the configuration for the RPC client.
type Config struct {
	// Endpoint is the URL of the Solana RPC endpoint.
	Endpoint string

	// Commitment is the commitment level for account and slot reads.
	Commitment rpc.CommitmentType

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client reads feed accounts and slots from a Solana RPC endpoint. It
// implements oracle.Source and program.Clock.
type Client struct {
	api        rpcAPI
	commitment rpc.CommitmentType
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg Config) *Client {
	return newClient(rpc.New(cfg.Endpoint), cfg)
}

func newClient(api rpcAPI, cfg Config) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		api:        api,
		commitment: cfg.Commitment,
		timeout:    cfg.Timeout,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Account fetches an account. A missing account wraps oracle.ErrAccountNotFound.
func (c *Client) Account(ctx context.Context, key types.Pubkey) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.api.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (result == nil || result.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", oracle.ErrAccountNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account info for %s: %w", key, err)
	}

	account := convertAccount(result.Value)
	c.logger.Debug("fetched account",
		"key", key.String(),
		"slot", result.Context.Slot,
		"size", len(account.Data),
	)
	return &account, nil
}

// Slot returns the current slot at the configured commitment.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slot, err := c.api.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// convertAccount converts a solana-go Account to a types.Account.
func convertAccount(acc *rpc.Account) types.Account {
	var rentEpoch uint64
	if acc.RentEpoch != nil {
		rentEpoch = acc.RentEpoch.Uint64()
	}

	var data []byte
	if acc.Data != nil {
		data = acc.Data.GetBinary()
	}

	return types.Account{
		Lamports:   acc.Lamports,
		Data:       data,
		Owner:      acc.Owner,
		Executable: acc.Executable,
		RentEpoch:  rentEpoch,
	}
}
