package program

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

// Receipt records one committed instruction.
type Receipt struct {
	ID           string            `json:"id"`
	Pool         types.Pubkey      `json:"pool"`
	Kind         instruction.Kind  `json:"kind"`
	Signer       types.Pubkey      `json:"signer"`
	Slot         uint64            `json:"slot"`
	AmountsIn    pricing.Amounts   `json:"amounts_in"`
	AmountsOut   pricing.Amounts   `json:"amounts_out"`
	SharesMinted uint64            `json:"shares_minted,omitempty"`
	SharesBurned uint64            `json:"shares_burned,omitempty"`
	PriceA       fixedpoint.Number `json:"price_a"`
	PriceB       fixedpoint.Number `json:"price_b"`
	// Rate is the exchange rate a swap executed at, in units of the output
	// token per unit of input.
	Rate      *fixedpoint.Number `json:"rate,omitempty"`
	Capped    bool               `json:"capped,omitempty"`
	Movements []ledger.Movement  `json:"movements"`
	CreatedAt time.Time          `json:"created_at"`
}

// JSON encodes the receipt for storage.
func (r *Receipt) JSON() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt %s: %w", r.ID, err)
	}
	return data, nil
}

// ParseReceipt decodes a receipt produced by JSON.
func ParseReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}

// Clock reports the current slot.
type Clock interface {
	Slot(ctx context.Context) (uint64, error)
}

// StaticClock is a Clock under manual control.
type StaticClock struct {
	mu   sync.Mutex
	slot uint64
}

// NewStaticClock creates a clock stopped at slot.
func NewStaticClock(slot uint64) *StaticClock {
	return &StaticClock{slot: slot}
}

func (c *StaticClock) Slot(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot, nil
}

// Set moves the clock to slot.
func (c *StaticClock) Set(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// Advance moves the clock forward by n slots and returns the new slot.
func (c *StaticClock) Advance(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot += n
	return c.slot
}
