// Package pool defines the persistent state of a two-token pool and its
// fixed-size record encoding.
package pool

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/pkg/types"
	"github.com/lugondev/go-zion/pkg/view"
)

// RecordSize is the encoded length of every pool record.
const RecordSize = view.PoolRecordSize

// Status is the lifecycle state of a pool.
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusActive
	StatusEmergency
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s <= StatusEmergency
}

// Token describes one side of the pool.
type Token struct {
	Mint   types.Pubkey
	Vault  types.Pubkey
	Oracle types.Pubkey
}

// Pool is the state of a single token pair.
//
// Invariants, checked by CheckInvariants:
//   - reserves are both positive whenever the pool is active with outstanding shares
//   - share supply is zero exactly when both reserves are zero
type Pool struct {
	Status         Status
	Admin          types.Pubkey
	ShareMint      types.Pubkey
	TokenA         Token
	TokenB         Token
	ReserveA       uint64
	ReserveB       uint64
	ShareSupply    uint64
	LastUpdateSlot uint64
}

// Clone returns an independent copy of p.
func (p *Pool) Clone() *Pool {
	cp := *p
	return &cp
}

// Token returns the token configuration for side.
func (p *Pool) Token(side types.Side) Token {
	if side == types.SideB {
		return p.TokenB
	}
	return p.TokenA
}

// Reserve returns the reserve held for side.
func (p *Pool) Reserve(side types.Side) uint64 {
	if side == types.SideB {
		return p.ReserveB
	}
	return p.ReserveA
}

// SetReserve replaces the reserve held for side.
func (p *Pool) SetReserve(side types.Side, amount uint64) {
	if side == types.SideB {
		p.ReserveB = amount
		return
	}
	p.ReserveA = amount
}

// OracleBinding returns the feed account the pool trusts for side.
func (p *Pool) OracleBinding(side types.Side) types.Pubkey {
	return p.Token(side).Oracle
}

// CheckInvariants validates the reserve and supply invariants.
func (p *Pool) CheckInvariants() error {
	if !p.Status.Valid() {
		return zerrors.InvariantViolation(fmt.Sprintf("unknown pool status %d", p.Status))
	}

	empty := p.ReserveA == 0 && p.ReserveB == 0
	if p.ShareSupply == 0 && !empty {
		return zerrors.InvariantViolation(fmt.Sprintf(
			"share supply is zero but reserves are %d/%d", p.ReserveA, p.ReserveB))
	}
	if p.ShareSupply > 0 && empty {
		return zerrors.InvariantViolation(fmt.Sprintf(
			"share supply is %d but both reserves are empty", p.ShareSupply))
	}

	if p.Status == StatusActive && p.ShareSupply > 0 && (p.ReserveA == 0 || p.ReserveB == 0) {
		return zerrors.InvariantViolation(fmt.Sprintf(
			"active pool with supply %d has a drained reserve (%d/%d)", p.ShareSupply, p.ReserveA, p.ReserveB))
	}
	return nil
}

// Marshal encodes p into its fixed-size record.
func (p *Pool) Marshal() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	if err := p.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() != RecordSize {
		return nil, fmt.Errorf("pool record encoded to %d bytes, want %d", buf.Len(), RecordSize)
	}
	return buf.Bytes(), nil
}

// MarshalWithEncoder writes the record fields in layout order.
func (p *Pool) MarshalWithEncoder(enc *bin.Encoder) error {
	fields := []any{
		uint8(p.Status),
		p.Admin,
		p.ShareMint,
		p.TokenA.Mint, p.TokenA.Vault, p.TokenA.Oracle,
		p.TokenB.Mint, p.TokenB.Vault, p.TokenB.Oracle,
		p.ReserveA,
		p.ReserveB,
		p.ShareSupply,
		p.LastUpdateSlot,
	}
	for _, f := range fields {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

// Unmarshal decodes a pool record. The record must be exactly RecordSize
// bytes and carry a known status.
func Unmarshal(data []byte) (*Pool, error) {
	if len(data) != RecordSize {
		return nil, fmt.Errorf("pool record is %d bytes, want %d", len(data), RecordSize)
	}
	p := new(Pool)
	if err := p.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("pool record has unknown status %d", p.Status)
	}
	return p, nil
}

// UnmarshalWithDecoder reads the record fields in layout order.
func (p *Pool) UnmarshalWithDecoder(dec *bin.Decoder) error {
	var status uint8
	fields := []any{
		&status,
		&p.Admin,
		&p.ShareMint,
		&p.TokenA.Mint, &p.TokenA.Vault, &p.TokenA.Oracle,
		&p.TokenB.Mint, &p.TokenB.Vault, &p.TokenB.Oracle,
		&p.ReserveA,
		&p.ReserveB,
		&p.ShareSupply,
		&p.LastUpdateSlot,
	}
	for _, f := range fields {
		if err := dec.Decode(f); err != nil {
			return err
		}
	}
	p.Status = Status(status)
	return nil
}
