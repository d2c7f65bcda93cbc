// Package instruction defines the operations a pool accepts and their wire
// encoding.
//
// Every instruction is a tag byte followed by a Borsh payload:
//
//	0 Initialize    initial reserves, admin and pool configuration
//	1 AdminDeposit  amounts of both tokens, deposited at market value
//	2 Deposit       one token, deposited at protocol value with a share floor
//	3 Withdraw      shares to burn with per-token floors
//	4 Swap          input token and amount with an output floor
package instruction

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/pkg/types"
)

// Kind identifies an instruction.
type Kind uint8

const (
	KindInitialize Kind = iota
	KindAdminDeposit
	KindDeposit
	KindWithdraw
	KindSwap
)

func (k Kind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindAdminDeposit:
		return "admin_deposit"
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindSwap:
		return "swap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText reads a name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindInitialize; c <= KindSwap; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown instruction kind %q", text)
}

// Instruction is implemented by every pool instruction.
type Instruction interface {
	Kind() Kind
	// Validate checks the payload without looking at pool state.
	Validate() error
	MarshalWithEncoder(enc *bin.Encoder) error
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

// Accounts are the external accounts an instruction runs against.
type Accounts struct {
	Signer     types.Pubkey
	UserTokenA types.Pubkey
	UserTokenB types.Pubkey
	UserShares types.Pubkey
	OracleA    types.Pubkey
	OracleB    types.Pubkey
}

// UserToken returns the user's token account for side.
func (a Accounts) UserToken(side types.Side) types.Pubkey {
	if side == types.SideB {
		return a.UserTokenB
	}
	return a.UserTokenA
}

// Initialize activates an uninitialized pool and seeds it.
type Initialize struct {
	InitialReserveA uint64
	InitialReserveB uint64
	Admin           types.Pubkey
	MintA           types.Pubkey
	MintB           types.Pubkey
	ShareMint       types.Pubkey
	VaultA          types.Pubkey
	VaultB          types.Pubkey
	OracleA         types.Pubkey
	OracleB         types.Pubkey
}

func (ix *Initialize) Kind() Kind { return KindInitialize }

func (ix *Initialize) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc,
		ix.InitialReserveA, ix.InitialReserveB, ix.Admin,
		ix.MintA, ix.MintB, ix.ShareMint,
		ix.VaultA, ix.VaultB, ix.OracleA, ix.OracleB,
	)
}

func (ix *Initialize) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec,
		&ix.InitialReserveA, &ix.InitialReserveB, &ix.Admin,
		&ix.MintA, &ix.MintB, &ix.ShareMint,
		&ix.VaultA, &ix.VaultB, &ix.OracleA, &ix.OracleB,
	)
}

func (ix *Initialize) Validate() error {
	if ix.InitialReserveA == 0 {
		return zerrors.ZeroAmount("initial reserve a")
	}
	if ix.InitialReserveB == 0 {
		return zerrors.ZeroAmount("initial reserve b")
	}
	keys := map[string]types.Pubkey{
		"admin":      ix.Admin,
		"mint a":     ix.MintA,
		"mint b":     ix.MintB,
		"share mint": ix.ShareMint,
		"vault a":    ix.VaultA,
		"vault b":    ix.VaultB,
		"oracle a":   ix.OracleA,
		"oracle b":   ix.OracleB,
	}
	for name, key := range keys {
		if key.IsZero() {
			return zerrors.InvalidInstruction(name + " must be set")
		}
	}
	if ix.MintA.Equals(ix.MintB) {
		return zerrors.InvalidInstruction("pool tokens must use different mints")
	}
	if ix.VaultA.Equals(ix.VaultB) {
		return zerrors.InvalidInstruction("pool tokens must use different vaults")
	}
	return nil
}

// AdminDeposit adds liquidity at market value. Either amount may be zero,
// but not both.
type AdminDeposit struct {
	AmountA uint64
	AmountB uint64
}

// NewAdminDeposit builds a single-token admin deposit.
func NewAdminDeposit(token types.Side, amount uint64) *AdminDeposit {
	if token == types.SideB {
		return &AdminDeposit{AmountB: amount}
	}
	return &AdminDeposit{AmountA: amount}
}

func (ix *AdminDeposit) Kind() Kind { return KindAdminDeposit }

func (ix *AdminDeposit) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, ix.AmountA, ix.AmountB)
}

func (ix *AdminDeposit) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec, &ix.AmountA, &ix.AmountB)
}

func (ix *AdminDeposit) Validate() error {
	if ix.AmountA == 0 && ix.AmountB == 0 {
		return zerrors.ZeroAmount("admin deposit amount")
	}
	return nil
}

// Deposit adds one token at protocol value.
type Deposit struct {
	Token        types.Side
	Amount       uint64
	MinSharesOut uint64
}

func (ix *Deposit) Kind() Kind { return KindDeposit }

func (ix *Deposit) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, uint8(ix.Token), ix.Amount, ix.MinSharesOut)
}

func (ix *Deposit) UnmarshalWithDecoder(dec *bin.Decoder) error {
	var token uint8
	if err := decodeFields(dec, &token, &ix.Amount, &ix.MinSharesOut); err != nil {
		return err
	}
	ix.Token = types.Side(token)
	return nil
}

func (ix *Deposit) Validate() error {
	if !ix.Token.Valid() {
		return zerrors.InvalidInstruction(fmt.Sprintf("unknown token side %d", ix.Token))
	}
	if ix.Amount == 0 {
		return zerrors.ZeroAmount("deposit amount")
	}
	return nil
}

// Withdraw burns shares for a proportional claim on both reserves.
type Withdraw struct {
	SharesIn      uint64
	MinAmountAOut uint64
	MinAmountBOut uint64
}

func (ix *Withdraw) Kind() Kind { return KindWithdraw }

func (ix *Withdraw) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, ix.SharesIn, ix.MinAmountAOut, ix.MinAmountBOut)
}

func (ix *Withdraw) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec, &ix.SharesIn, &ix.MinAmountAOut, &ix.MinAmountBOut)
}

func (ix *Withdraw) Validate() error {
	if ix.SharesIn == 0 {
		return zerrors.ZeroAmount("shares in")
	}
	return nil
}

// Swap exchanges one token for the other at protocol price.
type Swap struct {
	TokenIn      types.Side
	AmountIn     uint64
	MinAmountOut uint64
}

func (ix *Swap) Kind() Kind { return KindSwap }

func (ix *Swap) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, uint8(ix.TokenIn), ix.AmountIn, ix.MinAmountOut)
}

func (ix *Swap) UnmarshalWithDecoder(dec *bin.Decoder) error {
	var token uint8
	if err := decodeFields(dec, &token, &ix.AmountIn, &ix.MinAmountOut); err != nil {
		return err
	}
	ix.TokenIn = types.Side(token)
	return nil
}

func (ix *Swap) Validate() error {
	if !ix.TokenIn.Valid() {
		return zerrors.InvalidInstruction(fmt.Sprintf("unknown token side %d", ix.TokenIn))
	}
	if ix.AmountIn == 0 {
		return zerrors.ZeroAmount("swap amount")
	}
	return nil
}
