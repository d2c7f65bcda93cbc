// Package program runs pool instructions.
//
// A Processor is the pool state machine: for each instruction it checks the
// signer and pool status, resolves both oracle prices, quotes the operation,
// validates the resulting transition and hands the token movements to the
// ledger as a single batch. Nothing is committed unless every step succeeds.
//
// An Executor wraps a Processor with storage, per-pool serialization,
// post-commit hooks and metrics.
package program

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lugondev/go-zion/internal/common"
	"github.com/lugondev/go-zion/internal/config"
	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/guard"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

var sides = [2]types.Side{types.SideA, types.SideB}

// Config collects the settings of the components a Processor drives.
type Config struct {
	Oracle  oracle.Config
	Pricing pricing.Config
	Guard   guard.Config
}

// ConfigFrom converts application configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	seed, err := fixedpoint.Parse(cfg.Pricing.SeedSharePrice)
	if err != nil {
		return Config{}, fmt.Errorf("invalid pricing.seed_share_price: %w", err)
	}
	tolerance, err := fixedpoint.Parse(cfg.Guard.ValueTolerance)
	if err != nil {
		return Config{}, fmt.Errorf("invalid guard.value_tolerance: %w", err)
	}
	return Config{
		Oracle: oracle.Config{
			MaxAgeSlots:      cfg.Oracle.MaxAgeSlots,
			MaxConfidenceBps: cfg.Oracle.MaxConfidenceBps,
		},
		Pricing: pricing.Config{SeedSharePrice: seed},
		Guard:   guard.Config{ValueTolerance: tolerance},
	}, nil
}

// Processor executes instructions against a pool.
type Processor struct {
	common.LoggerMixin

	resolver *oracle.Resolver
	engine   *pricing.Engine
	guard    *guard.Guard
	source   oracle.Source
	ledger   ledger.Ledger
	now      func() time.Time
}

// NewProcessor creates a Processor reading feeds from source and moving
// tokens through l.
func NewProcessor(cfg Config, source oracle.Source, l ledger.Ledger) *Processor {
	return &Processor{
		LoggerMixin: common.NewLoggerMixin("processor"),
		resolver:    oracle.NewResolver(cfg.Oracle),
		engine:      pricing.NewEngine(cfg.Pricing),
		guard:       guard.New(cfg.Guard),
		source:      source,
		ledger:      l,
		now:         time.Now,
	}
}

// NewProcessorFromConfig creates a Processor from application configuration.
func NewProcessorFromConfig(cfg *config.Config, source oracle.Source, l ledger.Ledger) (*Processor, error) {
	c, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	return NewProcessor(c, source, l), nil
}

// WithLogger sets a custom logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.SetLogger(logger)
	return p
}

// Engine returns the pricing engine used for quotes.
func (p *Processor) Engine() *pricing.Engine {
	return p.engine
}

// Ledger returns the ledger movements are applied to.
func (p *Processor) Ledger() ledger.Ledger {
	return p.ledger
}

// Prices resolves both feeds bound to current as of slot.
func (p *Processor) Prices(ctx context.Context, current *pool.Pool, slot uint64) (pricing.Prices, error) {
	bindings := [2]types.Pubkey{current.TokenA.Oracle, current.TokenB.Oracle}
	return p.resolvePrices(ctx, bindings, bindings, slot)
}

// transition is the outcome of an instruction before it is committed.
type transition struct {
	next      *pool.Pool
	receipt   Receipt
	movements []ledger.Movement
}

// Process runs ix against current at slot and returns the new pool state and
// the receipt. current is never modified; a nil current is an uninitialized
// pool. On error no movements have been applied.
func (p *Processor) Process(
	ctx context.Context,
	address types.Pubkey,
	current *pool.Pool,
	ix instruction.Instruction,
	accts instruction.Accounts,
	slot uint64,
) (*pool.Pool, *Receipt, error) {
	if ix == nil {
		return nil, nil, zerrors.InvalidInstruction("missing instruction")
	}
	if current == nil {
		current = &pool.Pool{}
	}
	kind := ix.Kind()

	if err := authorize(current, ix, accts.Signer); err != nil {
		return nil, nil, err
	}
	if err := guard.CheckStatus(kind, current.Status); err != nil {
		return nil, nil, err
	}
	if err := ix.Validate(); err != nil {
		return nil, nil, err
	}

	bindings := [2]types.Pubkey{current.TokenA.Oracle, current.TokenB.Oracle}
	if init, ok := ix.(*instruction.Initialize); ok {
		bindings = [2]types.Pubkey{init.OracleA, init.OracleB}
	}
	prices, err := p.resolvePrices(ctx, bindings, [2]types.Pubkey{accts.OracleA, accts.OracleB}, slot)
	if err != nil {
		return nil, nil, err
	}

	t, err := p.apply(current, ix, accts, prices)
	if err != nil {
		return nil, nil, err
	}
	if err := p.guard.CheckTransition(kind, current, t.next, prices); err != nil {
		return nil, nil, err
	}
	t.next.LastUpdateSlot = slot

	if err := p.ledger.Apply(ctx, t.movements); err != nil {
		return nil, nil, zerrors.LedgerFailure(err)
	}

	receipt := t.receipt
	receipt.ID = uuid.NewString()
	receipt.Pool = address
	receipt.Kind = kind
	receipt.Signer = accts.Signer
	receipt.Slot = slot
	receipt.PriceA = prices.A.Price
	receipt.PriceB = prices.B.Price
	receipt.Movements = t.movements
	receipt.CreatedAt = p.now().UTC()

	p.GetLogger().Debug("instruction committed",
		"pool", address.String(),
		"kind", kind.String(),
		"slot", slot,
		"reserve_a", t.next.ReserveA,
		"reserve_b", t.next.ReserveB,
		"share_supply", t.next.ShareSupply,
	)
	return t.next, &receipt, nil
}

// SetEmergency moves an active pool into emergency mode, or an emergency pool
// back to active. Only the pool admin may do either.
func (p *Processor) SetEmergency(current *pool.Pool, signer types.Pubkey, enabled bool, slot uint64) (*pool.Pool, error) {
	if err := guard.Authorize(guard.AdminOp, signer, current.Admin); err != nil {
		return nil, err
	}

	op, from, to := "enter_emergency", pool.StatusActive, pool.StatusEmergency
	if !enabled {
		op, from, to = "leave_emergency", pool.StatusEmergency, pool.StatusActive
	}
	if current.Status != from {
		return nil, zerrors.PoolFrozen(op, current.Status.String())
	}

	next := current.Clone()
	next.Status = to
	next.LastUpdateSlot = slot
	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}

	p.GetLogger().Info("pool status changed", "from", from.String(), "to", to.String(), "slot", slot)
	return next, nil
}

func authorize(current *pool.Pool, ix instruction.Instruction, signer types.Pubkey) error {
	role := guard.RoleOf(ix.Kind())
	init, ok := ix.(*instruction.Initialize)
	if !ok {
		return guard.Authorize(role, signer, current.Admin)
	}
	// A record created ahead of time may already name its admin.
	if !current.Admin.IsZero() {
		if err := guard.Authorize(role, signer, current.Admin); err != nil {
			return err
		}
	}
	return guard.Authorize(role, signer, init.Admin)
}

func (p *Processor) resolvePrices(ctx context.Context, bindings, feeds [2]types.Pubkey, slot uint64) (pricing.Prices, error) {
	var quotes [2]oracle.Quote
	for i, side := range sides {
		account, err := p.source.Account(ctx, feeds[i])
		if err != nil {
			return pricing.Prices{}, zerrors.InvalidOracleData(
				fmt.Sprintf("feed %s for token %s is unavailable", feeds[i], side)).WithCause(err)
		}
		quote, err := p.resolver.Resolve(bindings[i], feeds[i], account, slot)
		if err != nil {
			return pricing.Prices{}, err
		}
		quotes[i] = quote
	}
	return pricing.Prices{A: quotes[0], B: quotes[1]}, nil
}

func (p *Processor) apply(current *pool.Pool, ix instruction.Instruction, accts instruction.Accounts, prices pricing.Prices) (*transition, error) {
	switch ix := ix.(type) {
	case *instruction.Initialize:
		next := current.Clone()
		next.Status = pool.StatusActive
		next.Admin = ix.Admin
		next.ShareMint = ix.ShareMint
		next.TokenA = pool.Token{Mint: ix.MintA, Vault: ix.VaultA, Oracle: ix.OracleA}
		next.TokenB = pool.Token{Mint: ix.MintB, Vault: ix.VaultB, Oracle: ix.OracleB}

		amounts := pricing.Amounts{A: ix.InitialReserveA, B: ix.InitialReserveB}
		q, err := p.engine.DepositAtMarket(next, amounts, prices)
		if err != nil {
			return nil, err
		}
		return credit(next, q, accts), nil

	case *instruction.AdminDeposit:
		next := current.Clone()
		q, err := p.engine.DepositAtMarket(next, pricing.Amounts{A: ix.AmountA, B: ix.AmountB}, prices)
		if err != nil {
			return nil, err
		}
		return credit(next, q, accts), nil

	case *instruction.Deposit:
		next := current.Clone()
		q, err := p.engine.DepositAtProtocol(next, pricing.Single(ix.Token, ix.Amount), prices)
		if err != nil {
			return nil, err
		}
		if err := guard.CheckMinimum("shares out", q.Shares, ix.MinSharesOut); err != nil {
			return nil, err
		}
		return credit(next, q, accts), nil

	case *instruction.Withdraw:
		q, err := p.engine.Withdraw(current, ix.SharesIn, prices)
		if err != nil {
			return nil, err
		}
		if err := guard.CheckMinimum("amount a out", q.Amounts.A, ix.MinAmountAOut); err != nil {
			return nil, err
		}
		if err := guard.CheckMinimum("amount b out", q.Amounts.B, ix.MinAmountBOut); err != nil {
			return nil, err
		}
		return debit(current.Clone(), q, accts), nil

	case *instruction.Swap:
		q, err := p.engine.Swap(current, ix.TokenIn, ix.AmountIn, prices)
		if err != nil {
			return nil, err
		}
		if err := guard.CheckMinimum("amount out", q.AmountOut, ix.MinAmountOut); err != nil {
			return nil, err
		}
		return exchange(current.Clone(), q, accts), nil

	default:
		return nil, zerrors.InvalidInstruction(fmt.Sprintf("unsupported instruction %s", ix.Kind()))
	}
}

// credit adds a deposit to next: tokens move into the vaults, then shares are
// minted to the depositor.
func credit(next *pool.Pool, q *pricing.DepositQuote, accts instruction.Accounts) *transition {
	t := &transition{next: next}
	for _, side := range sides {
		amount := q.Amounts.Get(side)
		if amount == 0 {
			continue
		}
		token := next.Token(side)
		next.SetReserve(side, next.Reserve(side)+amount)
		t.movements = append(t.movements, ledger.Transfer(token.Mint, accts.UserToken(side), token.Vault, amount))
	}
	next.ShareSupply += q.Shares
	t.movements = append(t.movements, ledger.MintTo(next.ShareMint, accts.UserShares, q.Shares))

	t.receipt.AmountsIn = q.Amounts
	t.receipt.SharesMinted = q.Shares
	return t
}

// debit removes a withdrawal from next: shares are burned, then tokens move
// out of the vaults.
func debit(next *pool.Pool, q *pricing.WithdrawQuote, accts instruction.Accounts) *transition {
	t := &transition{next: next}
	next.ShareSupply -= q.Shares
	t.movements = append(t.movements, ledger.Burn(next.ShareMint, accts.UserShares, q.Shares))
	for _, side := range sides {
		amount := q.Amounts.Get(side)
		if amount == 0 {
			continue
		}
		token := next.Token(side)
		next.SetReserve(side, next.Reserve(side)-amount)
		t.movements = append(t.movements, ledger.Transfer(token.Mint, token.Vault, accts.UserToken(side), amount))
	}

	t.receipt.AmountsOut = q.Amounts
	t.receipt.SharesBurned = q.Shares
	t.receipt.Capped = q.Capped
	return t
}

func exchange(next *pool.Pool, q *pricing.SwapQuote, accts instruction.Accounts) *transition {
	in, out := q.In, q.In.Other()
	next.SetReserve(in, next.Reserve(in)+q.AmountIn)
	next.SetReserve(out, next.Reserve(out)-q.AmountOut)

	tokenIn, tokenOut := next.Token(in), next.Token(out)
	rate := q.Price
	return &transition{
		next: next,
		receipt: Receipt{
			AmountsIn:  pricing.Single(in, q.AmountIn),
			AmountsOut: pricing.Single(out, q.AmountOut),
			Rate:       &rate,
		},
		movements: []ledger.Movement{
			ledger.Transfer(tokenIn.Mint, accts.UserToken(in), tokenIn.Vault, q.AmountIn),
			ledger.Transfer(tokenOut.Mint, tokenOut.Vault, accts.UserToken(out), q.AmountOut),
		},
	}
}
