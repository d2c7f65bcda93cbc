// Package view provides zero-copy readers over fixed-layout account data.
package view

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInvalidBuffer      = errors.New("invalid buffer size")
	ErrInvalidAccountData = errors.New("invalid account data")
)

// Price feed account layout.
const (
	FeedMagic   uint32 = 0xa1b2c3d4
	FeedVersion uint32 = 2
	FeedSize           = 48

	feedMagicOffset       = 0
	feedVersionOffset     = 4
	feedStatusOffset      = 8
	feedExpoOffset        = 12
	feedPriceOffset       = 16
	feedConfOffset        = 24
	feedPublishSlotOffset = 32
)

// FeedView reads a price feed account without copying it.
type FeedView struct {
	buffer []byte
}

// NewFeedView checks the size and magic of buffer and wraps it.
func NewFeedView(buffer []byte) (*FeedView, error) {
	if len(buffer) < FeedSize {
		return nil, ErrInvalidBuffer
	}
	v := &FeedView{buffer: buffer}
	if v.Magic() != FeedMagic {
		return nil, ErrInvalidAccountData
	}
	return v, nil
}

func (v *FeedView) Magic() uint32 {
	return binary.LittleEndian.Uint32(v.buffer[feedMagicOffset:])
}

func (v *FeedView) Version() uint32 {
	return binary.LittleEndian.Uint32(v.buffer[feedVersionOffset:])
}

func (v *FeedView) Status() uint32 {
	return binary.LittleEndian.Uint32(v.buffer[feedStatusOffset:])
}

func (v *FeedView) Expo() int32 {
	return int32(binary.LittleEndian.Uint32(v.buffer[feedExpoOffset:]))
}

func (v *FeedView) Price() int64 {
	return int64(binary.LittleEndian.Uint64(v.buffer[feedPriceOffset:]))
}

func (v *FeedView) Conf() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[feedConfOffset:])
}

func (v *FeedView) PublishSlot() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[feedPublishSlotOffset:])
}

// Pool record layout.
const (
	PoolRecordSize = 289

	poolStatusOffset      = 0
	poolAdminOffset       = 1
	poolShareMintOffset   = 33
	poolTokenAOffset      = 65
	poolTokenBOffset      = 161
	poolReserveAOffset    = 257
	poolReserveBOffset    = 265
	poolShareSupplyOffset = 273
	poolLastSlotOffset    = 281

	tokenMintOffset   = 0
	tokenVaultOffset  = 32
	tokenOracleOffset = 64
)

// PoolView reads the scalar fields of a pool record without decoding it.
type PoolView struct {
	buffer []byte
}

// NewPoolView wraps a pool record. The buffer must be exactly one record long.
func NewPoolView(buffer []byte) (*PoolView, error) {
	if len(buffer) != PoolRecordSize {
		return nil, ErrInvalidBuffer
	}
	return &PoolView{buffer: buffer}, nil
}

func (v *PoolView) Status() uint8 {
	return v.buffer[poolStatusOffset]
}

func (v *PoolView) Admin() solana.PublicKey {
	return v.pubkeyAt(poolAdminOffset)
}

func (v *PoolView) ShareMint() solana.PublicKey {
	return v.pubkeyAt(poolShareMintOffset)
}

func (v *PoolView) MintA() solana.PublicKey {
	return v.pubkeyAt(poolTokenAOffset + tokenMintOffset)
}

func (v *PoolView) MintB() solana.PublicKey {
	return v.pubkeyAt(poolTokenBOffset + tokenMintOffset)
}

func (v *PoolView) VaultA() solana.PublicKey {
	return v.pubkeyAt(poolTokenAOffset + tokenVaultOffset)
}

func (v *PoolView) VaultB() solana.PublicKey {
	return v.pubkeyAt(poolTokenBOffset + tokenVaultOffset)
}

func (v *PoolView) OracleA() solana.PublicKey {
	return v.pubkeyAt(poolTokenAOffset + tokenOracleOffset)
}

func (v *PoolView) OracleB() solana.PublicKey {
	return v.pubkeyAt(poolTokenBOffset + tokenOracleOffset)
}

func (v *PoolView) ReserveA() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[poolReserveAOffset:])
}

func (v *PoolView) ReserveB() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[poolReserveBOffset:])
}

func (v *PoolView) ShareSupply() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[poolShareSupplyOffset:])
}

func (v *PoolView) LastUpdateSlot() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[poolLastSlotOffset:])
}

func (v *PoolView) pubkeyAt(offset int) solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&v.buffer[offset]))
}
