package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// Keypair is a signer identity stored in the Solana CLI keypair format.
type Keypair struct {
	privateKey solana.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() *Keypair {
	return &Keypair{privateKey: solana.NewWallet().PrivateKey}
}

// KeypairFromFile loads a keypair from a JSON array of 64 bytes.
func KeypairFromFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair size: expected %d, got %d", ed25519.PrivateKeySize, len(raw))
	}

	return &Keypair{privateKey: solana.PrivateKey(raw)}, nil
}

// PublicKey returns the keypair's public key.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.privateKey.PublicKey()
}

// SaveToFile writes the keypair readable only by the owner.
func (k *Keypair) SaveToFile(path string) error {
	raw := make([]int, len(k.privateKey))
	for i, b := range k.privateKey {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}
	return nil
}

func (k *Keypair) String() string {
	return k.PublicKey().String()
}
