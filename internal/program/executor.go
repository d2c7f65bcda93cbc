package program

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lugondev/go-zion/internal/common"
	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/storage"
	"github.com/lugondev/go-zion/pkg/types"
)

// DefaultWorkers bounds how many pools ExecuteBatch works on at once.
const DefaultWorkers = 8

// Request is one instruction addressed to a pool.
type Request struct {
	Pool        types.Pubkey
	Instruction instruction.Instruction
	Accounts    instruction.Accounts
}

// Result is the outcome of one request of a batch.
type Result struct {
	Request Request
	Receipt *Receipt
	Err     error
}

// Executor runs instructions against stored pools.
//
// Instructions for the same pool are serialized; instructions for different
// pools run independently. A committed instruction persists the new pool
// record and then runs the post-commit hooks. If the record cannot be saved,
// the ledger movements are reverted and the instruction fails.
type Executor struct {
	common.LoggerMixin

	proc    *Processor
	repo    storage.Repository
	clock   Clock
	hooks   *processor.ChainedProcessor[*Receipt]
	metrics *metrics.Collection
	workers int

	mu    sync.Mutex
	locks map[types.Pubkey]*poolLock
}

// poolLock serializes one pool. refs counts holders and waiters; the entry
// is dropped when it reaches zero.
type poolLock struct {
	sync.Mutex
	refs int
}

// Processor returns the processor instructions run through.
func (e *Executor) Processor() *Processor {
	return e.proc
}

// Repository returns the backing repository.
func (e *Executor) Repository() storage.Repository {
	return e.repo
}

// Execute runs one request and returns its receipt.
func (e *Executor) Execute(ctx context.Context, req Request) (*Receipt, error) {
	_ = e.metrics.IncrementCounter(ctx, metrics.MetricInstructionsReceived, 1)

	start := time.Now()
	receipt, err := e.execute(ctx, req)
	elapsed := time.Since(start)
	_ = e.metrics.RecordHistogram(ctx, metrics.MetricInstructionTimeMilliseconds, float64(elapsed.Microseconds())/1000)

	if err != nil {
		code := zerrors.Code(err)
		_ = e.metrics.IncrementCounter(ctx, metrics.MetricInstructionsFailed, 1)
		_ = e.metrics.IncrementCounter(ctx, metrics.FailureCounter(code), 1)
		e.GetLogger().Warn("instruction failed",
			"pool", req.Pool.String(),
			"kind", kindOf(req),
			"code", code,
			"error", err,
		)
		return nil, err
	}

	_ = e.metrics.IncrementCounter(ctx, metrics.MetricInstructionsSuccessful, 1)
	_ = e.metrics.IncrementCounter(ctx, metrics.KindCounter(receipt.Kind.String()), 1)
	return receipt, nil
}

// ExecuteBatch runs every request and returns one result per request, in
// request order. Requests for the same pool run in the order given.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var order []types.Pubkey
	byPool := make(map[types.Pubkey][]int)
	for i, req := range reqs {
		if _, ok := byPool[req.Pool]; !ok {
			order = append(order, req.Pool)
		}
		byPool[req.Pool] = append(byPool[req.Pool], i)
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, address := range order {
		indexes := byPool[address]
		g.Go(func() error {
			for _, i := range indexes {
				receipt, err := e.Execute(ctx, reqs[i])
				results[i] = Result{Request: reqs[i], Receipt: receipt, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// SetEmergency toggles emergency mode on a stored pool.
func (e *Executor) SetEmergency(ctx context.Context, address, signer types.Pubkey, enabled bool) (*pool.Pool, error) {
	unlock := e.lock(address)
	defer unlock()

	current, err := e.load(ctx, address, false)
	if err != nil {
		return nil, err
	}
	slot, err := e.slot(ctx)
	if err != nil {
		return nil, err
	}
	next, err := e.proc.SetEmergency(current, signer, enabled, slot)
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, address, next); err != nil {
		return nil, err
	}

	_ = e.metrics.IncrementCounter(ctx, metrics.MetricEmergencyToggles, 1)
	return next, nil
}

// Pool loads the stored state of a pool.
func (e *Executor) Pool(ctx context.Context, address types.Pubkey) (*pool.Pool, error) {
	return e.load(ctx, address, false)
}

// Close flushes buffered hooks and metrics.
func (e *Executor) Close(ctx context.Context) error {
	hookErr := e.hooks.FlushBatch(ctx, e.metrics)
	if hookErr != nil {
		e.GetLogger().Error("failed to flush hooks", "error", hookErr)
	}
	return errors.Join(hookErr, e.metrics.Flush(ctx))
}

func (e *Executor) execute(ctx context.Context, req Request) (*Receipt, error) {
	if req.Instruction == nil {
		return nil, zerrors.InvalidInstruction("missing instruction")
	}

	unlock := e.lock(req.Pool)
	defer unlock()

	current, err := e.load(ctx, req.Pool, req.Instruction.Kind() == instruction.KindInitialize)
	if err != nil {
		return nil, err
	}
	slot, err := e.slot(ctx)
	if err != nil {
		return nil, err
	}

	next, receipt, err := e.proc.Process(ctx, req.Pool, current, req.Instruction, req.Accounts, slot)
	if err != nil {
		return nil, err
	}

	if err := e.save(ctx, req.Pool, next); err != nil {
		// The record is unchanged, so the movements must not stand either.
		if rerr := e.proc.Ledger().Revert(context.WithoutCancel(ctx), receipt.Movements); rerr != nil {
			e.GetLogger().Error("failed to revert ledger movements",
				"pool", req.Pool.String(),
				"receipt", receipt.ID,
				"error", rerr,
			)
			return nil, zerrors.Join(err, rerr)
		}
		_ = e.metrics.IncrementCounter(ctx, metrics.MetricLedgerReverts, 1)
		return nil, err
	}

	if err := e.hooks.Process(ctx, receipt, e.metrics); err != nil {
		e.GetLogger().Error("post-commit hook failed",
			"pool", req.Pool.String(),
			"receipt", receipt.ID,
			"error", err,
		)
	}

	if receipt.SharesMinted > 0 {
		_ = e.metrics.IncrementCounter(ctx, metrics.MetricSharesMinted, receipt.SharesMinted)
	}
	if receipt.SharesBurned > 0 {
		_ = e.metrics.IncrementCounter(ctx, metrics.MetricSharesBurned, receipt.SharesBurned)
	}
	_ = e.metrics.UpdateGauge(ctx, metrics.MetricPoolShareSupply, float64(next.ShareSupply))

	return receipt, nil
}

func (e *Executor) lock(address types.Pubkey) func() {
	e.mu.Lock()
	l, ok := e.locks[address]
	if !ok {
		l = &poolLock{}
		e.locks[address] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(e.locks, address)
		}
		e.mu.Unlock()
	}
}

// lockedPools reports how many pools currently have a lock entry.
func (e *Executor) lockedPools() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}

// load reads a pool record. A missing record is an uninitialized pool when
// allowMissing is set.
func (e *Executor) load(ctx context.Context, address types.Pubkey, allowMissing bool) (*pool.Pool, error) {
	m, err := e.repo.Pools().FindByAddress(ctx, address.String())
	if errors.Is(err, storage.ErrNotFound) {
		if allowMissing {
			return &pool.Pool{}, nil
		}
		return nil, zerrors.NewError(zerrors.ErrCodePoolNotFound, fmt.Sprintf("pool %s not found", address))
	}
	if err != nil {
		return nil, zerrors.StorageFailure("load pool "+address.String(), err)
	}

	p, err := m.Pool()
	if err != nil {
		return nil, zerrors.StorageFailure("decode pool "+address.String(), err)
	}
	return p, nil
}

func (e *Executor) save(ctx context.Context, address types.Pubkey, p *pool.Pool) error {
	m, err := storage.PoolToModel(address, p)
	if err != nil {
		return zerrors.StorageFailure("encode pool "+address.String(), err)
	}
	if err := e.repo.Pools().Save(ctx, m); err != nil {
		return zerrors.StorageFailure("save pool "+address.String(), err)
	}
	return nil
}

func (e *Executor) slot(ctx context.Context) (uint64, error) {
	slot, err := e.clock.Slot(ctx)
	if err != nil {
		// Without a slot no feed can be checked for staleness.
		return 0, zerrors.InvalidOracleData("current slot is unavailable").WithCause(err)
	}
	return slot, nil
}

func kindOf(req Request) string {
	if req.Instruction == nil {
		return "none"
	}
	return req.Instruction.Kind().String()
}
