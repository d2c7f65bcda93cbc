package view

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func createTestFeedBuffer() []byte {
	// Layout: magic(4) + version(4) + status(4) + expo(4) + price(8) + conf(8) + publish_slot(8) + reserved(8)
	buf := make([]byte, FeedSize)

	binary.LittleEndian.PutUint32(buf[0:4], FeedMagic)
	binary.LittleEndian.PutUint32(buf[4:8], FeedVersion)
	binary.LittleEndian.PutUint32(buf[8:12], 1)

	expo := int32(-8)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(expo))

	price := int64(-250000000)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(price))

	binary.LittleEndian.PutUint64(buf[24:32], 100000)
	binary.LittleEndian.PutUint64(buf[32:40], 4242)

	return buf
}

func TestFeedView(t *testing.T) {
	view, err := NewFeedView(createTestFeedBuffer())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Version() != FeedVersion {
		t.Errorf("Expected version %d, got %d", FeedVersion, view.Version())
	}
	if view.Status() != 1 {
		t.Errorf("Expected status 1, got %d", view.Status())
	}
	if view.Expo() != -8 {
		t.Errorf("Expected expo -8, got %d", view.Expo())
	}
	if view.Price() != -250000000 {
		t.Errorf("Expected price -250000000, got %d", view.Price())
	}
	if view.Conf() != 100000 {
		t.Errorf("Expected conf 100000, got %d", view.Conf())
	}
	if view.PublishSlot() != 4242 {
		t.Errorf("Expected publish slot 4242, got %d", view.PublishSlot())
	}
}

func TestFeedViewRejectsBadInput(t *testing.T) {
	if _, err := NewFeedView(make([]byte, FeedSize-1)); err != ErrInvalidBuffer {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}

	buf := createTestFeedBuffer()
	binary.LittleEndian.PutUint32(buf[0:4], 0xdeadbeef)
	if _, err := NewFeedView(buf); err != ErrInvalidAccountData {
		t.Errorf("Expected ErrInvalidAccountData, got %v", err)
	}
}

func TestPoolView(t *testing.T) {
	buf := make([]byte, PoolRecordSize)
	buf[0] = 1

	admin := solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	copy(buf[1:33], admin[:])

	oracleB := solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	copy(buf[225:257], oracleB[:])

	binary.LittleEndian.PutUint64(buf[257:265], 1000)
	binary.LittleEndian.PutUint64(buf[265:273], 2000)
	binary.LittleEndian.PutUint64(buf[273:281], 3000)
	binary.LittleEndian.PutUint64(buf[281:289], 77)

	view, err := NewPoolView(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Status() != 1 {
		t.Errorf("Expected status 1, got %d", view.Status())
	}
	if !view.Admin().Equals(admin) {
		t.Errorf("Expected admin %s, got %s", admin, view.Admin())
	}
	if !view.OracleB().Equals(oracleB) {
		t.Errorf("Expected oracle b %s, got %s", oracleB, view.OracleB())
	}
	if !view.MintA().IsZero() {
		t.Error("Expected zero mint a")
	}
	if view.ReserveA() != 1000 || view.ReserveB() != 2000 {
		t.Errorf("Unexpected reserves %d/%d", view.ReserveA(), view.ReserveB())
	}
	if view.ShareSupply() != 3000 {
		t.Errorf("Expected supply 3000, got %d", view.ShareSupply())
	}
	if view.LastUpdateSlot() != 77 {
		t.Errorf("Expected slot 77, got %d", view.LastUpdateSlot())
	}

	if _, err := NewPoolView(buf[:100]); err != ErrInvalidBuffer {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}
}
