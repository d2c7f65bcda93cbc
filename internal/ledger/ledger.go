// Package ledger models the token movements a pool instruction requests.
//
// The pool never moves tokens itself. It hands the ledger one batch of
// movements per instruction and the ledger applies the whole batch or none
// of it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/lugondev/go-zion/pkg/types"
)

var (
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("token account already exists")
	ErrMintMismatch      = errors.New("token account mint mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSupplyOverflow    = errors.New("balance or supply overflow")
	ErrZeroAmount        = errors.New("movement amount is zero")
)

// MovementKind is the type of a token movement.
type MovementKind uint8

const (
	MovementTransfer MovementKind = iota
	MovementMintTo
	MovementBurn
)

func (k MovementKind) String() string {
	switch k {
	case MovementTransfer:
		return "transfer"
	case MovementMintTo:
		return "mint_to"
	case MovementBurn:
		return "burn"
	default:
		return fmt.Sprintf("movement(%d)", uint8(k))
	}
}

// Movement is a single token operation.
//
// Transfer moves Amount of Mint from From to To. MintTo creates Amount in To.
// Burn destroys Amount held in From.
type Movement struct {
	Kind   MovementKind `json:"kind"`
	Mint   types.Pubkey `json:"mint"`
	From   types.Pubkey `json:"from,omitempty"`
	To     types.Pubkey `json:"to,omitempty"`
	Amount uint64       `json:"amount"`
}

// Transfer builds a transfer movement.
func Transfer(mint, from, to types.Pubkey, amount uint64) Movement {
	return Movement{Kind: MovementTransfer, Mint: mint, From: from, To: to, Amount: amount}
}

// MintTo builds a mint movement.
func MintTo(mint, to types.Pubkey, amount uint64) Movement {
	return Movement{Kind: MovementMintTo, Mint: mint, To: to, Amount: amount}
}

// Burn builds a burn movement.
func Burn(mint, from types.Pubkey, amount uint64) Movement {
	return Movement{Kind: MovementBurn, Mint: mint, From: from, Amount: amount}
}

// Inverse returns the movement that undoes m.
func (m Movement) Inverse() Movement {
	switch m.Kind {
	case MovementMintTo:
		return Burn(m.Mint, m.To, m.Amount)
	case MovementBurn:
		return MintTo(m.Mint, m.From, m.Amount)
	default:
		return Transfer(m.Mint, m.To, m.From, m.Amount)
	}
}

// Invert returns the batch that undoes movements.
func Invert(movements []Movement) []Movement {
	out := make([]Movement, len(movements))
	for i, m := range movements {
		out[len(movements)-1-i] = m.Inverse()
	}
	return out
}

// Ledger applies token movements atomically.
type Ledger interface {
	// Apply executes every movement or none of them.
	Apply(ctx context.Context, movements []Movement) error

	// Revert undoes a batch previously accepted by Apply.
	Revert(ctx context.Context, movements []Movement) error
}
