package ledger

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-zion/pkg/types"
)

type fixture struct {
	ledger    *Memory
	mint      types.Pubkey
	shareMint types.Pubkey
	user      types.Pubkey
	vault     types.Pubkey
	shares    types.Pubkey
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		ledger:    NewMemory(),
		mint:      solana.NewWallet().PublicKey(),
		shareMint: solana.NewWallet().PublicKey(),
		user:      solana.NewWallet().PublicKey(),
		vault:     solana.NewWallet().PublicKey(),
		shares:    solana.NewWallet().PublicKey(),
	}
	owner := solana.NewWallet().PublicKey()
	require.NoError(t, f.ledger.CreateAccount(f.user, f.mint, owner, 1_000))
	require.NoError(t, f.ledger.CreateAccount(f.vault, f.mint, owner, 500))
	require.NoError(t, f.ledger.CreateAccount(f.shares, f.shareMint, owner, 0))
	return f
}

func TestApplyMovesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ledger.Apply(ctx, []Movement{
		Transfer(f.mint, f.user, f.vault, 300),
		MintTo(f.shareMint, f.shares, 42),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(700), f.ledger.Balance(f.user))
	assert.Equal(t, uint64(800), f.ledger.Balance(f.vault))
	assert.Equal(t, uint64(42), f.ledger.Balance(f.shares))
	assert.Equal(t, uint64(1_500), f.ledger.Supply(f.mint))
	assert.Equal(t, uint64(42), f.ledger.Supply(f.shareMint))
}

func TestApplyIsAtomic(t *testing.T) {
	f := newFixture(t)

	err := f.ledger.Apply(context.Background(), []Movement{
		Transfer(f.mint, f.user, f.vault, 300),
		MintTo(f.shareMint, f.shares, 42),
		Transfer(f.mint, f.vault, f.user, 10_000),
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, uint64(1_000), f.ledger.Balance(f.user))
	assert.Equal(t, uint64(500), f.ledger.Balance(f.vault))
	assert.Zero(t, f.ledger.Balance(f.shares))
	assert.Zero(t, f.ledger.Supply(f.shareMint))
}

func TestApplyRejects(t *testing.T) {
	f := newFixture(t)
	unknown := solana.NewWallet().PublicKey()

	tests := []struct {
		name string
		mv   Movement
		want error
	}{
		{"unknown account", Transfer(f.mint, unknown, f.vault, 1), ErrAccountNotFound},
		{"wrong mint", Transfer(f.shareMint, f.user, f.vault, 1), ErrMintMismatch},
		{"burn too much", Burn(f.shareMint, f.shares, 1), ErrInsufficientFunds},
		{"zero amount", Transfer(f.mint, f.user, f.vault, 0), ErrZeroAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, f.ledger.Apply(context.Background(), []Movement{tt.mv}), tt.want)
		})
	}
}

func TestRevertRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch := []Movement{
		Transfer(f.mint, f.user, f.vault, 250),
		MintTo(f.shareMint, f.shares, 250),
	}
	require.NoError(t, f.ledger.Apply(ctx, batch))
	require.NoError(t, f.ledger.Revert(ctx, batch))

	assert.Equal(t, uint64(1_000), f.ledger.Balance(f.user))
	assert.Equal(t, uint64(500), f.ledger.Balance(f.vault))
	assert.Zero(t, f.ledger.Balance(f.shares))
	assert.Zero(t, f.ledger.Supply(f.shareMint))
}

func TestInvert(t *testing.T) {
	a, b, mint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	got := Invert([]Movement{MintTo(mint, a, 1), Transfer(mint, a, b, 2), Burn(mint, b, 3)})
	require.Equal(t, []Movement{MintTo(mint, b, 3), Transfer(mint, b, a, 2), Burn(mint, a, 1)}, got)
}

func TestCreateAccountTwice(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.ledger.CreateAccount(f.user, f.mint, f.user, 1), ErrAccountExists)
}

func TestApplyHonorsCanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.ledger.Apply(ctx, []Movement{Transfer(f.mint, f.user, f.vault, 1)}), context.Canceled)
	assert.Equal(t, uint64(1_000), f.ledger.Balance(f.user))
}
