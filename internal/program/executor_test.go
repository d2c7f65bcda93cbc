package program

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/storage"
	"github.com/lugondev/go-zion/pkg/types"
)

// flakyRepository fails pool saves while failSaves is set.
type flakyRepository struct {
	storage.Repository
	failSaves atomic.Bool
}

func (r *flakyRepository) Pools() storage.PoolRepository {
	return &flakyPools{PoolRepository: r.Repository.Pools(), repo: r}
}

type flakyPools struct {
	storage.PoolRepository
	repo *flakyRepository
}

func (p *flakyPools) Save(ctx context.Context, m *storage.PoolModel) error {
	if p.repo.failSaves.Load() {
		return errors.New("disk full")
	}
	return p.PoolRepository.Save(ctx, m)
}

// receiptLog collects receipts passed to a hook.
type receiptLog struct {
	mu       sync.Mutex
	receipts []*Receipt
}

func (l *receiptLog) Process(ctx context.Context, r *Receipt, mc *metrics.Collection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts = append(l.receipts, r)
	return nil
}

func (l *receiptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.receipts)
}

type executorHarness struct {
	*fixture
	exec    *Executor
	repo    *flakyRepository
	log     *receiptLog
	metrics *metrics.LogMetrics
}

func newHarness(t *testing.T) *executorHarness {
	t.Helper()
	f := newFixture(t)
	h := &executorHarness{
		fixture: f,
		repo:    &flakyRepository{Repository: storage.NewMemoryRepository()},
		log:     &receiptLog{},
		metrics: metrics.NewLogMetrics(nil),
	}
	exec, err := NewExecutorBuilder(f.proc).
		Repository(h.repo).
		Clock(NewStaticClock(f.slot)).
		Hook(h.log).
		Metrics(metrics.NewCollection(h.metrics)).
		Workers(4).
		Build()
	require.NoError(t, err)
	h.exec = exec
	return h
}

func (h *executorHarness) request(f *fixture, ix instruction.Instruction, accts instruction.Accounts) Request {
	return Request{Pool: f.address, Instruction: ix, Accounts: accts}
}

func (h *executorHarness) mustExecute(f *fixture, ix instruction.Instruction, accts instruction.Accounts) *Receipt {
	h.t.Helper()
	r, err := h.exec.Execute(context.Background(), h.request(f, ix, accts))
	require.NoError(h.t, err)
	return r
}

func (h *executorHarness) stored(f *fixture) *pool.Pool {
	h.t.Helper()
	p, err := h.exec.Pool(context.Background(), f.address)
	require.NoError(h.t, err)
	return p
}

func TestExecutorBuildRequiresClock(t *testing.T) {
	_, err := NewExecutorBuilder(newFixture(t).proc).Build()
	require.ErrorContains(t, err, "clock")

	_, err = NewExecutorBuilder(nil).Clock(NewStaticClock(1)).Build()
	require.ErrorContains(t, err, "processor")
}

func TestExecutorPersistsPoolAndRunsHooks(t *testing.T) {
	h := newHarness(t)
	f := h.fixture

	h.mustExecute(f, f.initializeIx(1_000, 1_000), f.adminAccts)
	r := h.mustExecute(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 100, MinAmountOut: 100}, f.userAccts)
	assert.Equal(t, uint64(100), r.AmountsOut.B)

	p := h.stored(f)
	assert.Equal(t, pool.StatusActive, p.Status)
	assert.Equal(t, uint64(1_100), p.ReserveA)
	assert.Equal(t, uint64(900), p.ReserveB)
	f.requireVaultsMatch(p)

	require.Equal(t, 2, h.log.Len())
	assert.Equal(t, instruction.KindInitialize, h.log.receipts[0].Kind)
	assert.Equal(t, r.ID, h.log.receipts[1].ID)

	assert.Equal(t, uint64(2), h.metrics.Counter(metrics.MetricInstructionsReceived))
	assert.Equal(t, uint64(2), h.metrics.Counter(metrics.MetricInstructionsSuccessful))
	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.KindCounter("swap")))
	assert.Equal(t, uint64(2_000), h.metrics.Counter(metrics.MetricSharesMinted))
	assert.Equal(t, float64(2_000), h.metrics.Gauge(metrics.MetricPoolShareSupply))
}

func TestExecutorUnknownPool(t *testing.T) {
	h := newHarness(t)
	f := h.fixture

	_, err := h.exec.Execute(context.Background(), h.request(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 1}, f.userAccts))
	require.ErrorIs(t, err, zerrors.ErrPoolNotFound)

	_, err = h.exec.Pool(context.Background(), f.address)
	require.ErrorIs(t, err, zerrors.ErrPoolNotFound)

	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.MetricInstructionsFailed))
	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.FailureCounter(zerrors.ErrCodePoolNotFound)))
	assert.Zero(t, h.log.Len())
}

func TestExecutorRevertsLedgerWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	f := h.fixture
	h.mustExecute(f, f.initializeIx(1_000, 1_000), f.adminAccts)

	h.repo.failSaves.Store(true)
	_, err := h.exec.Execute(context.Background(), h.request(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 100}, f.userAccts))
	require.ErrorIs(t, err, zerrors.ErrStorageFailure)
	h.repo.failSaves.Store(false)

	p := h.stored(f)
	assert.Equal(t, uint64(1_000), p.ReserveA)
	f.requireVaultsMatch(p)
	assert.Equal(t, uint64(startingBalance), f.ledger.Balance(f.userAccts.UserTokenA))
	assert.Equal(t, uint64(startingBalance), f.ledger.Balance(f.userAccts.UserTokenB))

	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.MetricLedgerReverts))
	assert.Equal(t, 1, h.log.Len(), "failed instructions produce no receipt")
}

func TestExecutorHookFailureDoesNotFailInstruction(t *testing.T) {
	f := newFixture(t)
	failing := processor.ProcessorFunc[*Receipt](func(ctx context.Context, r *Receipt, mc *metrics.Collection) error {
		return errors.New("journal offline")
	})
	exec, err := NewExecutorBuilder(f.proc).Clock(NewStaticClock(f.slot)).Hook(failing).Build()
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), Request{Pool: f.address, Instruction: f.initializeIx(10, 10), Accounts: f.adminAccts})
	require.NoError(t, err)
}

func TestExecutorSetEmergency(t *testing.T) {
	h := newHarness(t)
	f := h.fixture
	ctx := context.Background()
	h.mustExecute(f, f.initializeIx(1_000, 1_000), f.adminAccts)

	_, err := h.exec.SetEmergency(ctx, f.address, f.user, true)
	require.ErrorIs(t, err, zerrors.ErrUnauthorized)

	p, err := h.exec.SetEmergency(ctx, f.address, f.admin, true)
	require.NoError(t, err)
	assert.Equal(t, pool.StatusEmergency, p.Status)
	assert.Equal(t, pool.StatusEmergency, h.stored(f).Status)

	_, err = h.exec.Execute(ctx, h.request(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 10}, f.userAccts))
	require.ErrorIs(t, err, zerrors.ErrPoolFrozen)

	h.mustExecute(f, &instruction.Withdraw{SharesIn: 100}, f.adminAccts)
	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.MetricEmergencyToggles))

	_, err = h.exec.SetEmergency(ctx, newKey(), f.admin, true)
	require.ErrorIs(t, err, zerrors.ErrPoolNotFound)
}

func TestExecuteBatchKeepsPerPoolOrder(t *testing.T) {
	h := newHarness(t)
	first := h.fixture
	second := first.sibling()

	reqs := []Request{
		h.request(first, first.initializeIx(10_000, 10_000), first.adminAccts),
		h.request(second, second.initializeIx(5_000, 5_000), second.adminAccts),
	}
	for i := 0; i < 20; i++ {
		side := types.Side(i % 2)
		reqs = append(reqs,
			h.request(first, &instruction.Swap{TokenIn: side, AmountIn: 100}, first.userAccts),
			h.request(second, &instruction.Deposit{Token: side, Amount: 50}, second.userAccts),
		)
	}
	reqs = append(reqs, h.request(first, &instruction.Withdraw{SharesIn: 20_000}, first.adminAccts))

	results := h.exec.ExecuteBatch(context.Background(), reqs)
	require.Len(t, results, len(reqs))
	for i, res := range results {
		require.NoError(t, res.Err, "request %d", i)
		require.Equal(t, reqs[i].Pool, res.Request.Pool)
		require.Equal(t, reqs[i].Instruction.Kind(), res.Receipt.Kind)
	}

	p1 := h.stored(first)
	assert.Zero(t, p1.ShareSupply)
	first.requireVaultsMatch(p1)

	p2 := h.stored(second)
	assert.Equal(t, uint64(11_000), p2.ShareSupply)
	second.requireVaultsMatch(p2)

	assert.Equal(t, len(reqs), h.log.Len())
}

func TestExecuteBatchReportsEachFailure(t *testing.T) {
	h := newHarness(t)
	f := h.fixture

	results := h.exec.ExecuteBatch(context.Background(), []Request{
		h.request(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 10}, f.userAccts),
		h.request(f, f.initializeIx(1_000, 1_000), f.adminAccts),
		{Pool: f.address},
		h.request(f, &instruction.Swap{TokenIn: types.SideA, AmountIn: 10}, f.userAccts),
	})

	require.ErrorIs(t, results[0].Err, zerrors.ErrPoolNotFound)
	require.NoError(t, results[1].Err)
	require.ErrorIs(t, results[2].Err, zerrors.ErrInvalidInstruction)
	require.NoError(t, results[3].Err)
	require.Nil(t, results[0].Receipt)
}

func TestExecutorSerializesSamePool(t *testing.T) {
	h := newHarness(t)
	f := h.fixture
	h.mustExecute(f, f.initializeIx(100_000, 100_000), f.adminAccts)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(side types.Side) {
			defer wg.Done()
			_, err := h.exec.Execute(context.Background(), h.request(f, &instruction.Swap{TokenIn: side, AmountIn: 25}, f.userAccts))
			assert.NoError(t, err)
		}(types.Side(i % 2))
	}
	wg.Wait()

	p := h.stored(f)
	assert.Equal(t, uint64(200_000), p.ReserveA+p.ReserveB)
	f.requireVaultsMatch(p)
	assert.Zero(t, h.exec.lockedPools(), "idle pools keep no lock entry")
}

func TestExecutorReleasesPoolLocks(t *testing.T) {
	h := newHarness(t)

	var reqs []Request
	for i := 0; i < 25; i++ {
		f := h.fixture.sibling()
		reqs = append(reqs,
			h.request(f, f.initializeIx(1_000, 1_000), f.adminAccts),
			h.request(f, &instruction.Swap{TokenIn: types.SideB, AmountIn: 10}, f.userAccts),
		)
	}
	for i, res := range h.exec.ExecuteBatch(context.Background(), reqs) {
		require.NoError(t, res.Err, "request %d", i)
	}
	assert.Zero(t, h.exec.lockedPools())

	_, err := h.exec.SetEmergency(context.Background(), newKey(), h.fixture.admin, true)
	require.ErrorIs(t, err, zerrors.ErrPoolNotFound)
	assert.Zero(t, h.exec.lockedPools(), "failed calls release their entry too")
}

func TestExecutorClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exec.Close(context.Background()))
}
