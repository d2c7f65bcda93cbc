package program

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-zion/internal/guard"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

const (
	startSlot       = 1_000
	startingBalance = 1_000_000
	maxAgeSlots     = 50
)

var testConfig = Config{
	Oracle:  oracle.Config{MaxAgeSlots: maxAgeSlots, MaxConfidenceBps: 200},
	Pricing: pricing.DefaultConfig(),
	Guard:   guard.Config{ValueTolerance: fixedpoint.MustParse("0.000001")},
}

func newKey() types.Pubkey {
	return solana.NewWallet().PublicKey()
}

// fixture is one pool with its mints, vaults and feeds, plus an admin and a
// user that each hold startingBalance of both tokens.
type fixture struct {
	t      *testing.T
	source *oracle.MemorySource
	ledger *ledger.Memory
	proc   *Processor
	slot   uint64

	address   types.Pubkey
	admin     types.Pubkey
	user      types.Pubkey
	mintA     types.Pubkey
	mintB     types.Pubkey
	shareMint types.Pubkey
	vaultA    types.Pubkey
	vaultB    types.Pubkey
	oracleA   types.Pubkey
	oracleB   types.Pubkey

	adminAccts instruction.Accounts
	userAccts  instruction.Accounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	source := oracle.NewMemorySource()
	l := ledger.NewMemory()
	return newFixtureWith(t, NewProcessor(testConfig, source, l), source, l)
}

// sibling creates a second pool sharing the processor, feeds source and ledger.
func (f *fixture) sibling() *fixture {
	return newFixtureWith(f.t, f.proc, f.source, f.ledger)
}

func newFixtureWith(t *testing.T, proc *Processor, source *oracle.MemorySource, l *ledger.Memory) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		source:    source,
		ledger:    l,
		proc:      proc,
		slot:      startSlot,
		address:   newKey(),
		admin:     newKey(),
		user:      newKey(),
		mintA:     newKey(),
		mintB:     newKey(),
		shareMint: newKey(),
		vaultA:    newKey(),
		vaultB:    newKey(),
		oracleA:   newKey(),
		oracleB:   newKey(),
	}
	require.NoError(t, l.CreateAccount(f.vaultA, f.mintA, f.address, 0))
	require.NoError(t, l.CreateAccount(f.vaultB, f.mintB, f.address, 0))
	f.adminAccts = f.openAccounts(f.admin, startingBalance)
	f.userAccts = f.openAccounts(f.user, startingBalance)
	f.setPrice(types.SideA, "1", "0")
	f.setPrice(types.SideB, "1", "0")
	return f
}

// openAccounts creates token and share accounts for owner.
func (f *fixture) openAccounts(owner types.Pubkey, balance uint64) instruction.Accounts {
	f.t.Helper()
	accts := instruction.Accounts{
		Signer:     owner,
		UserTokenA: newKey(),
		UserTokenB: newKey(),
		UserShares: newKey(),
		OracleA:    f.oracleA,
		OracleB:    f.oracleB,
	}
	require.NoError(f.t, f.ledger.CreateAccount(accts.UserTokenA, f.mintA, owner, balance))
	require.NoError(f.t, f.ledger.CreateAccount(accts.UserTokenB, f.mintB, owner, balance))
	require.NoError(f.t, f.ledger.CreateAccount(accts.UserShares, f.shareMint, owner, 0))
	return accts
}

func (f *fixture) setPrice(side types.Side, price, conf string) {
	f.setFeed(side, price, conf, f.slot)
}

func (f *fixture) setFeed(side types.Side, price, conf string, publishSlot uint64) {
	key := f.oracleA
	if side == types.SideB {
		key = f.oracleB
	}
	f.source.SetFeed(key, oracle.FeedFromDecimal(
		decimal.RequireFromString(price), decimal.RequireFromString(conf), -8, publishSlot))
}

func (f *fixture) initializeIx(a, b uint64) *instruction.Initialize {
	return &instruction.Initialize{
		InitialReserveA: a,
		InitialReserveB: b,
		Admin:           f.admin,
		MintA:           f.mintA,
		MintB:           f.mintB,
		ShareMint:       f.shareMint,
		VaultA:          f.vaultA,
		VaultB:          f.vaultB,
		OracleA:         f.oracleA,
		OracleB:         f.oracleB,
	}
}

func (f *fixture) process(current *pool.Pool, ix instruction.Instruction, accts instruction.Accounts) (*pool.Pool, *Receipt, error) {
	return f.proc.Process(context.Background(), f.address, current, ix, accts, f.slot)
}

// initialize seeds the pool through the admin.
func (f *fixture) initialize(a, b uint64) *pool.Pool {
	f.t.Helper()
	p, _, err := f.process(nil, f.initializeIx(a, b), f.adminAccts)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) mustProcess(current *pool.Pool, ix instruction.Instruction, accts instruction.Accounts) (*pool.Pool, *Receipt) {
	f.t.Helper()
	p, r, err := f.process(current, ix, accts)
	require.NoError(f.t, err)
	return p, r
}

func (f *fixture) prices(p *pool.Pool) pricing.Prices {
	f.t.Helper()
	prices, err := f.proc.Prices(context.Background(), p, f.slot)
	require.NoError(f.t, err)
	return prices
}

// requireVaultsMatch checks that the vaults hold exactly the recorded reserves
// and the share mint supply equals the recorded share supply.
func (f *fixture) requireVaultsMatch(p *pool.Pool) {
	f.t.Helper()
	require.Equal(f.t, p.ReserveA, f.ledger.Balance(f.vaultA), "vault a")
	require.Equal(f.t, p.ReserveB, f.ledger.Balance(f.vaultB), "vault b")
	require.Equal(f.t, p.ShareSupply, f.ledger.Supply(f.shareMint), "share supply")
}
