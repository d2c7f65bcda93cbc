package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/lugondev/go-zion/internal/common"
	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/program"
	"github.com/lugondev/go-zion/internal/storage"
	"github.com/lugondev/go-zion/pkg/types"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int
	Name    string
	Action  string
	Receipt *program.Receipt
	Err     error
	// Failures lists expectations the step did not meet.
	Failures []string
}

// Passed reports whether the step met every expectation.
func (r StepResult) Passed() bool {
	return len(r.Failures) == 0
}

// Balances are a participant's token and share balances.
type Balances struct {
	A      uint64
	B      uint64
	Shares uint64
}

// Report is the outcome of a scenario run.
type Report struct {
	Name     string
	Pool     types.Pubkey
	Final    *pool.Pool
	Steps    []StepResult
	Holdings map[string]Balances
}

// Failed returns the steps that missed an expectation.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.Passed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Participants returns participant names in sorted order.
func (r *Report) Participants() []string {
	names := make([]string, 0, len(r.Holdings))
	for name := range r.Holdings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes a scenario. Each Run starts from a fresh pool, ledger and
// feed source.
type Runner struct {
	common.LoggerMixin

	scenario *Scenario
	cfg      program.Config
	repo     storage.Repository
	metrics  *metrics.Collection
	hooks    []processor.Processor[*program.Receipt]
}

// NewRunner creates a runner for s with the given engine configuration.
func NewRunner(s *Scenario, cfg program.Config) *Runner {
	return &Runner{
		LoggerMixin: common.NewLoggerMixin("scenario"),
		scenario:    s,
		cfg:         cfg,
	}
}

// WithLogger sets a custom logger.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.SetLogger(logger)
	return r
}

// WithRepository stores pool records and receipts in repo instead of memory.
func (r *Runner) WithRepository(repo storage.Repository) *Runner {
	r.repo = repo
	return r
}

// WithMetrics records execution metrics into mc.
func (r *Runner) WithMetrics(mc *metrics.Collection) *Runner {
	r.metrics = mc
	return r
}

// WithHook adds a post-commit hook.
func (r *Runner) WithHook(hook processor.Processor[*program.Receipt]) *Runner {
	r.hooks = append(r.hooks, hook)
	return r
}

// participant holds a participant's accounts.
type participant struct {
	key   types.Pubkey
	accts instruction.Accounts
}

// run is the state of one Run.
type run struct {
	*Runner

	source *oracle.MemorySource
	ledger *ledger.Memory
	clock  *program.StaticClock
	exec   *program.Executor

	address   types.Pubkey
	mintA     types.Pubkey
	mintB     types.Pubkey
	shareMint types.Pubkey
	vaultA    types.Pubkey
	vaultB    types.Pubkey
	oracleA   types.Pubkey
	oracleB   types.Pubkey

	participants map[string]*participant
}

// Run executes every step and reports the outcome. Step failures are
// recorded in the report; the returned error covers setup problems only.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	st, err := r.setup()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Name:     r.scenario.Name,
		Pool:     st.address,
		Holdings: make(map[string]Balances),
	}
	for i, step := range r.scenario.Steps {
		res := st.step(ctx, i+1, step)
		if !res.Passed() {
			r.GetLogger().Warn("scenario step failed",
				"scenario", r.scenario.Name,
				"step", res.Index,
				"name", res.Name,
				"failures", strings.Join(res.Failures, "; "),
			)
		}
		report.Steps = append(report.Steps, res)
	}

	if err := st.exec.Close(ctx); err != nil {
		return nil, fmt.Errorf("failed to close executor: %w", err)
	}

	report.Final, err = st.exec.Pool(ctx, st.address)
	if err != nil && !zerrors.Is(err, zerrors.ErrPoolNotFound) {
		return nil, err
	}
	for name, p := range st.participants {
		report.Holdings[name] = Balances{
			A:      st.ledger.Balance(p.accts.UserTokenA),
			B:      st.ledger.Balance(p.accts.UserTokenB),
			Shares: st.ledger.Balance(p.accts.UserShares),
		}
	}
	return report, nil
}

func (r *Runner) setup() (*run, error) {
	st := &run{
		Runner:       r,
		source:       oracle.NewMemorySource(),
		ledger:       ledger.NewMemory().WithLogger(r.GetLogger()),
		clock:        program.NewStaticClock(r.scenario.StartSlot),
		address:      newKey(),
		mintA:        newKey(),
		mintB:        newKey(),
		shareMint:    newKey(),
		vaultA:       newKey(),
		vaultB:       newKey(),
		oracleA:      newKey(),
		oracleB:      newKey(),
		participants: make(map[string]*participant),
	}

	proc := program.NewProcessor(r.cfg, st.source, st.ledger).WithLogger(r.GetLogger())
	b := program.NewExecutorBuilder(proc).
		Clock(st.clock).
		Metrics(r.metrics).
		Logger(r.GetLogger())
	if r.repo != nil {
		b.Repository(r.repo)
	}
	for _, h := range r.hooks {
		b.Hook(h)
	}
	exec, err := b.Build()
	if err != nil {
		return nil, err
	}
	st.exec = exec

	if err := st.ledger.CreateAccount(st.vaultA, st.mintA, st.address, 0); err != nil {
		return nil, err
	}
	if err := st.ledger.CreateAccount(st.vaultB, st.mintB, st.address, 0); err != nil {
		return nil, err
	}
	for name, h := range r.scenario.Participants {
		p, err := st.openAccounts(h)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", name, err)
		}
		st.participants[name] = p
	}

	if err := st.publish(types.SideA, r.scenario.FeedA); err != nil {
		return nil, err
	}
	if err := st.publish(types.SideB, r.scenario.FeedB); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *run) openAccounts(h Holdings) (*participant, error) {
	p := &participant{key: newKey()}
	p.accts = instruction.Accounts{
		Signer:     p.key,
		UserTokenA: newKey(),
		UserTokenB: newKey(),
		UserShares: newKey(),
		OracleA:    st.oracleA,
		OracleB:    st.oracleB,
	}
	if err := st.ledger.CreateAccount(p.accts.UserTokenA, st.mintA, p.key, h.A); err != nil {
		return nil, err
	}
	if err := st.ledger.CreateAccount(p.accts.UserTokenB, st.mintB, p.key, h.B); err != nil {
		return nil, err
	}
	if err := st.ledger.CreateAccount(p.accts.UserShares, st.shareMint, p.key, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// publish writes a feed reading relative to the current slot.
func (st *run) publish(side types.Side, spec FeedSpec) error {
	price, err := decimal.NewFromString(spec.Price)
	if err != nil {
		return fmt.Errorf("feed %s: invalid price: %w", side, err)
	}
	conf := decimal.Zero
	if spec.Conf != "" {
		if conf, err = decimal.NewFromString(spec.Conf); err != nil {
			return fmt.Errorf("feed %s: invalid conf: %w", side, err)
		}
	}
	expo := int32(DefaultExpo)
	if spec.Expo != nil {
		expo = *spec.Expo
	}

	slot, _ := st.clock.Slot(context.Background())
	publishSlot := uint64(0)
	if spec.Age < slot {
		publishSlot = slot - spec.Age
	}

	feed := oracle.FeedFromDecimal(price, conf, expo, publishSlot)
	if spec.Halted {
		feed.Status = oracle.StatusHalted
	}

	key := st.oracleA
	if side == types.SideB {
		key = st.oracleB
	}
	st.source.SetFeed(key, feed)
	return nil
}

func (st *run) step(ctx context.Context, index int, step Step) StepResult {
	res := StepResult{Index: index, Name: step.label(), Action: step.Action}

	switch step.Action {
	case ActionAdvance:
		st.clock.Advance(step.Slots)
		return res
	case ActionSetFeed:
		side, _ := types.ParseSide(step.Token)
		if err := st.publish(side, *step.Feed); err != nil {
			res.Failures = append(res.Failures, err.Error())
		}
		return res
	case ActionEmergency:
		p, err := st.exec.SetEmergency(ctx, st.address, st.participants[step.Signer].key, step.Enabled)
		res.Err = err
		st.check(&res, step.Expect, nil, p)
		return res
	}

	signer := st.participants[step.Signer]
	ix, err := st.instruction(step)
	if err != nil {
		res.Err = err
		res.Failures = append(res.Failures, err.Error())
		return res
	}

	res.Receipt, res.Err = st.exec.Execute(ctx, program.Request{
		Pool:        st.address,
		Instruction: ix,
		Accounts:    signer.accts,
	})

	var current *pool.Pool
	if res.Err == nil {
		current, _ = st.exec.Pool(ctx, st.address)
	}
	st.check(&res, step.Expect, res.Receipt, current)
	return res
}

func (st *run) instruction(step Step) (instruction.Instruction, error) {
	var kind instruction.Kind
	if err := kind.UnmarshalText([]byte(step.Action)); err != nil {
		return nil, err
	}

	switch kind {
	case instruction.KindInitialize:
		return &instruction.Initialize{
			InitialReserveA: step.AmountA,
			InitialReserveB: step.AmountB,
			Admin:           st.participants[st.scenario.Admin].key,
			MintA:           st.mintA,
			MintB:           st.mintB,
			ShareMint:       st.shareMint,
			VaultA:          st.vaultA,
			VaultB:          st.vaultB,
			OracleA:         st.oracleA,
			OracleB:         st.oracleB,
		}, nil
	case instruction.KindAdminDeposit:
		return &instruction.AdminDeposit{AmountA: step.AmountA, AmountB: step.AmountB}, nil
	case instruction.KindDeposit:
		side, err := types.ParseSide(step.Token)
		if err != nil {
			return nil, err
		}
		return &instruction.Deposit{Token: side, Amount: step.Amount, MinSharesOut: step.MinOut}, nil
	case instruction.KindWithdraw:
		return &instruction.Withdraw{SharesIn: step.Shares, MinAmountAOut: step.MinA, MinAmountBOut: step.MinB}, nil
	default:
		side, err := types.ParseSide(step.Token)
		if err != nil {
			return nil, err
		}
		return &instruction.Swap{TokenIn: side, AmountIn: step.Amount, MinAmountOut: step.MinOut}, nil
	}
}

// check compares a step outcome against its expectations.
func (st *run) check(res *StepResult, want Expect, receipt *program.Receipt, current *pool.Pool) {
	fail := func(format string, args ...any) {
		res.Failures = append(res.Failures, fmt.Sprintf(format, args...))
	}

	if want.Error != "" {
		if res.Err == nil {
			fail("expected error %s, step succeeded", want.Error)
		} else if code := zerrors.Code(res.Err); !strings.EqualFold(code, want.Error) {
			fail("expected error %s, got %s: %v", want.Error, code, res.Err)
		}
		return
	}
	if res.Err != nil {
		fail("unexpected error: %v", res.Err)
		return
	}

	eq := func(what string, want *uint64, got uint64) {
		if want != nil && *want != got {
			fail("%s: expected %d, got %d", what, *want, got)
		}
	}
	if receipt != nil {
		eq("amount_out", want.AmountOut, receipt.AmountsOut.A+receipt.AmountsOut.B)
		eq("amount_a_out", want.AmountAOut, receipt.AmountsOut.A)
		eq("amount_b_out", want.AmountBOut, receipt.AmountsOut.B)
		eq("shares_minted", want.SharesMinted, receipt.SharesMinted)
		eq("shares_burned", want.SharesBurned, receipt.SharesBurned)
		if want.Capped != nil && *want.Capped != receipt.Capped {
			fail("capped: expected %t, got %t", *want.Capped, receipt.Capped)
		}
	}
	if current != nil {
		eq("reserve_a", want.ReserveA, current.ReserveA)
		eq("reserve_b", want.ReserveB, current.ReserveB)
		eq("share_supply", want.ShareSupply, current.ShareSupply)
		if want.Status != "" && want.Status != current.Status.String() {
			fail("status: expected %s, got %s", want.Status, current.Status)
		}
	}
}

func newKey() types.Pubkey {
	return solana.NewWallet().PublicKey()
}
