package storage

import (
	"fmt"
	"time"

	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/pkg/types"
)

// PoolModel is a stored pool. Record is the authoritative fixed-size
// encoding; the other columns exist for lookups.
type PoolModel struct {
	ID             string    `json:"id" bson:"_id,omitempty" db:"id"`
	Address        string    `json:"address" bson:"address" db:"address"`
	Admin          string    `json:"admin" bson:"admin" db:"admin"`
	Status         string    `json:"status" bson:"status" db:"status"`
	LastUpdateSlot uint64    `json:"last_update_slot" bson:"last_update_slot" db:"last_update_slot"`
	Record         []byte    `json:"record" bson:"record" db:"record"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// ReceiptModel is a stored instruction receipt. Payload holds the full
// receipt as JSON.
type ReceiptModel struct {
	ID        string    `json:"id" bson:"_id,omitempty" db:"id"`
	Pool      string    `json:"pool" bson:"pool" db:"pool"`
	Kind      string    `json:"kind" bson:"kind" db:"kind"`
	Signer    string    `json:"signer" bson:"signer" db:"signer"`
	Slot      uint64    `json:"slot" bson:"slot" db:"slot"`
	Payload   []byte    `json:"payload" bson:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// PoolToModel encodes p for storage under address.
func PoolToModel(address types.Pubkey, p *pool.Pool) (*PoolModel, error) {
	record, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode pool %s: %w", address, err)
	}
	now := time.Now()
	return &PoolModel{
		ID:             address.String(),
		Address:        address.String(),
		Admin:          p.Admin.String(),
		Status:         p.Status.String(),
		LastUpdateSlot: p.LastUpdateSlot,
		Record:         record,
		UpdatedAt:      now,
		CreatedAt:      now,
	}, nil
}

// Pool decodes the stored record.
func (m *PoolModel) Pool() (*pool.Pool, error) {
	p, err := pool.Unmarshal(m.Record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pool %s: %w", m.Address, err)
	}
	return p, nil
}

// Clone returns a deep copy of m.
func (m *PoolModel) Clone() *PoolModel {
	cp := *m
	cp.Record = append([]byte(nil), m.Record...)
	return &cp
}

// Clone returns a deep copy of m.
func (m *ReceiptModel) Clone() *ReceiptModel {
	cp := *m
	cp.Payload = append([]byte(nil), m.Payload...)
	return &cp
}
