// Package types provides the base identity and account types shared by the
// pool engine. It wraps solana-go types for consistency with on-chain data.
package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Pubkey is a Solana public key (32 bytes).
type Pubkey = solana.PublicKey

// Signature is a Solana transaction signature (64 bytes).
type Signature = solana.Signature

// Account represents a Solana account with its data and metadata.
type Account struct {
	// Lamports is the number of lamports owned by this account.
	Lamports uint64 `json:"lamports"`

	// Data is the data held in this account.
	Data []byte `json:"data"`

	// Owner is the program that owns this account.
	Owner Pubkey `json:"owner"`

	// Executable indicates if the account contains a program.
	Executable bool `json:"executable"`

	// RentEpoch is the epoch at which this account will next owe rent.
	RentEpoch uint64 `json:"rent_epoch"`
}

// Side selects one of the two tokens of a pool.
type Side uint8

const (
	SideA Side = iota
	SideB
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Valid reports whether s names a pool token.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// ParseSide reads "a"/"A" or "b"/"B".
func ParseSide(s string) (Side, error) {
	switch s {
	case "a", "A":
		return SideA, nil
	case "b", "B":
		return SideB, nil
	default:
		return 0, fmt.Errorf("unknown token side %q", s)
	}
}
