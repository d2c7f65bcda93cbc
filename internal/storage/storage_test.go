package storage

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-zion/internal/config"
	"github.com/lugondev/go-zion/internal/pool"
)

func samplePool(admin solana.PublicKey) *pool.Pool {
	return &pool.Pool{
		Status:         pool.StatusActive,
		Admin:          admin,
		ShareMint:      solana.NewWallet().PublicKey(),
		ReserveA:       1_000,
		ReserveB:       2_000,
		ShareSupply:    3_000,
		LastUpdateSlot: 12,
	}
}

func TestPoolModelRoundTrip(t *testing.T) {
	address := solana.NewWallet().PublicKey()
	p := samplePool(solana.NewWallet().PublicKey())

	m, err := PoolToModel(address, p)
	require.NoError(t, err)
	assert.Equal(t, address.String(), m.ID)
	assert.Equal(t, "active", m.Status)
	assert.Len(t, m.Record, pool.RecordSize)

	got, err := m.Pool()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMemoryPools(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	admin := solana.NewWallet().PublicKey()

	_, err := repo.Pools().FindByAddress(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 3; i++ {
		m, err := PoolToModel(solana.NewWallet().PublicKey(), samplePool(admin))
		require.NoError(t, err)
		require.NoError(t, repo.Pools().Save(ctx, m))
	}
	other, err := PoolToModel(solana.NewWallet().PublicKey(), samplePool(solana.NewWallet().PublicKey()))
	require.NoError(t, err)
	require.NoError(t, repo.Pools().Save(ctx, other))

	all, err := repo.Pools().FindByAdmin(ctx, admin.String(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paged, err := repo.Pools().FindByAdmin(ctx, admin.String(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
	assert.Equal(t, all[2].Address, paged[0].Address)
}

func TestMemoryPoolsReturnCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m, err := PoolToModel(solana.NewWallet().PublicKey(), samplePool(solana.NewWallet().PublicKey()))
	require.NoError(t, err)
	require.NoError(t, repo.Pools().Save(ctx, m))

	m.Record[0] = 0xff
	got, err := repo.Pools().FindByAddress(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, byte(pool.StatusActive), got.Record[0])
}

func TestMemoryReceipts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository().Receipts()

	require.NoError(t, repo.SaveBatch(ctx, []*ReceiptModel{
		{ID: "a", Pool: "p1", Signer: "alice", Slot: 1},
		{ID: "b", Pool: "p1", Signer: "bob", Slot: 2},
		{ID: "c", Pool: "p2", Signer: "alice", Slot: 3},
	}))
	require.NoError(t, repo.Save(ctx, &ReceiptModel{ID: "a", Pool: "ignored"}))

	got, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Pool)

	_, err = repo.FindByID(ctx, "zzz")
	require.ErrorIs(t, err, ErrNotFound)

	byPool, err := repo.FindByPool(ctx, "p1", 10, 0)
	require.NoError(t, err)
	require.Len(t, byPool, 2)
	assert.Equal(t, "b", byPool[0].ID)

	bySigner, err := repo.FindBySigner(ctx, "alice", 1, 0)
	require.NoError(t, err)
	require.Len(t, bySigner, 1)
	assert.Equal(t, "c", bySigner[0].ID)
}

type countingPools struct {
	PoolRepository
	finds int
}

func (c *countingPools) FindByAddress(ctx context.Context, address string) (*PoolModel, error) {
	c.finds++
	return c.PoolRepository.FindByAddress(ctx, address)
}

func TestCachedPoolRepository(t *testing.T) {
	ctx := context.Background()
	backing := &countingPools{PoolRepository: NewMemoryRepository().Pools()}
	cached, err := NewCachedPoolRepository(backing, 2)
	require.NoError(t, err)

	m, err := PoolToModel(solana.NewWallet().PublicKey(), samplePool(solana.NewWallet().PublicKey()))
	require.NoError(t, err)
	require.NoError(t, backing.Save(ctx, m))

	for i := 0; i < 3; i++ {
		got, err := cached.FindByAddress(ctx, m.Address)
		require.NoError(t, err)
		assert.Equal(t, m.Record, got.Record)
	}
	assert.Equal(t, 1, backing.finds)

	cached.Purge()
	_, err = cached.FindByAddress(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.finds)

	_, err = cached.FindByAddress(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, cached.Len())
}

func TestConnectionManagerFallsBackToMemory(t *testing.T) {
	cm := NewConnectionManager(&config.DatabaseConfig{})
	assert.Equal(t, DatabaseTypeMemory, cm.Type())

	_, err := cm.GetRepository()
	require.Error(t, err)

	repo, err := cm.Connect(context.Background())
	require.NoError(t, err)
	again, err := cm.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, repo, again)

	cached, err := WithPoolCache(repo, 8)
	require.NoError(t, err)
	_, ok := cached.Pools().(*CachedPoolRepository)
	assert.True(t, ok)
	require.NoError(t, cm.Close())
}

func TestOpenUnregisteredBackend(t *testing.T) {
	_, err := Open(context.Background(), DatabaseType("sqlite"), &config.DatabaseConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite backend not registered")

	cm := NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "sqlite"})
	_, err = cm.Connect(context.Background())
	require.Error(t, err)
}

func TestRegisterBackend(t *testing.T) {
	want := NewMemoryRepository()
	Register("test", func(context.Context, *config.DatabaseConfig) (Repository, error) {
		return want, nil
	})

	cm := NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "test"})
	got, err := cm.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}
