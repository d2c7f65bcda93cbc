// Package pricing computes how many tokens and pool shares change hands for
// each pool operation.
//
// All functions are pure: they read a pool and the prices resolved for the
// current instruction and return a quote, never mutating the pool. Arithmetic
// is checked fixed-point; amounts leaving the engine are floored so the pool
// never pays out more than the quoted value.
package pricing

import (
	"fmt"
	"math"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

// Config tunes share issuance.
type Config struct {
	// SeedSharePrice is the value of one share when a pool has no shares
	// outstanding.
	SeedSharePrice fixedpoint.Number
}

// DefaultConfig issues one share per unit of deposited value.
func DefaultConfig() Config {
	return Config{SeedSharePrice: fixedpoint.One()}
}

// DepositQuote describes shares issued for a deposit.
type DepositQuote struct {
	Amounts      Amounts
	Shares       uint64
	DepositValue fixedpoint.Number
	PoolValue    fixedpoint.Number
}

// WithdrawQuote describes tokens paid for burned shares.
type WithdrawQuote struct {
	Shares      uint64
	Amounts     Amounts
	Entitlement fixedpoint.Number
	PayoutValue fixedpoint.Number
	Capped      bool
}

// SwapQuote describes a single-direction exchange.
type SwapQuote struct {
	In        types.Side
	AmountIn  uint64
	AmountOut uint64
	Price     fixedpoint.Number
}

// Engine quotes pool operations.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. A zero SeedSharePrice falls back to one.
func NewEngine(cfg Config) *Engine {
	if cfg.SeedSharePrice.IsZero() {
		cfg.SeedSharePrice = fixedpoint.One()
	}
	return &Engine{cfg: cfg}
}

// DepositAtMarket quotes a deposit valued at market prices. Used for admin
// deposits and pool seeding.
func (e *Engine) DepositAtMarket(p *pool.Pool, amounts Amounts, prices Prices) (*DepositQuote, error) {
	return e.deposit(p, amounts, prices, Market, Market)
}

// DepositAtProtocol quotes a user deposit: the deposit is valued at bid and
// the existing pool at ask, so a wide confidence band always favors
// existing holders.
func (e *Engine) DepositAtProtocol(p *pool.Pool, amounts Amounts, prices Prices) (*DepositQuote, error) {
	return e.deposit(p, amounts, prices, Bid, Ask)
}

func (e *Engine) deposit(p *pool.Pool, amounts Amounts, prices Prices, depositAt, poolAt Valuation) (*DepositQuote, error) {
	if amounts.IsZero() {
		return nil, zerrors.ZeroAmount("deposit amount")
	}
	if err := checkedAdd(p.ReserveA, amounts.A, "reserve a"); err != nil {
		return nil, err
	}
	if err := checkedAdd(p.ReserveB, amounts.B, "reserve b"); err != nil {
		return nil, err
	}

	depositValue, err := Value(amounts, prices, depositAt)
	if err != nil {
		return nil, err
	}

	q := &DepositQuote{Amounts: amounts, DepositValue: depositValue}

	var shares fixedpoint.Number
	if p.ShareSupply == 0 {
		shares, err = depositValue.Div(e.cfg.SeedSharePrice)
		if err != nil {
			return nil, zerrors.Arithmetic("seed shares", err)
		}
	} else {
		poolValue, err := Value(Reserves(p), prices, poolAt)
		if err != nil {
			return nil, err
		}
		if poolValue.IsZero() {
			return nil, zerrors.InvariantViolation("pool with outstanding shares has no value")
		}
		q.PoolValue = poolValue

		shares, err = depositValue.MulDiv(fixedpoint.FromUint64(p.ShareSupply), poolValue)
		if err != nil {
			return nil, zerrors.Arithmetic("deposit shares", err)
		}
	}

	out, err := shares.Floor()
	if err != nil {
		return nil, zerrors.Arithmetic("deposit shares", err)
	}
	if out == 0 {
		return nil, zerrors.ZeroAmount("shares issued")
	}
	if err := checkedAdd(p.ShareSupply, out, "share supply"); err != nil {
		return nil, err
	}
	q.Shares = out
	return q, nil
}

// Withdraw quotes burning shares for a proportional claim on both reserves.
// The entitlement is shares × pool value ÷ supply at market. The claim is
// valued at ask, the price the pool charges for tokens it pays out, and when
// that exceeds the entitlement both amounts are scaled down until it no
// longer does. Burning the whole supply returns both reserves exactly.
func (e *Engine) Withdraw(p *pool.Pool, shares uint64, prices Prices) (*WithdrawQuote, error) {
	if shares == 0 {
		return nil, zerrors.ZeroAmount("shares in")
	}
	if p.ShareSupply == 0 || shares > p.ShareSupply {
		return nil, zerrors.InsufficientLiquidity(fmt.Sprintf("cannot burn %d of %d shares", shares, p.ShareSupply))
	}

	q := &WithdrawQuote{Shares: shares}

	if shares == p.ShareSupply {
		q.Amounts = Reserves(p)
	} else {
		a, err := proportional(p.ReserveA, shares, p.ShareSupply)
		if err != nil {
			return nil, err
		}
		b, err := proportional(p.ReserveB, shares, p.ShareSupply)
		if err != nil {
			return nil, err
		}
		q.Amounts = Amounts{A: a, B: b}
	}

	poolValue, err := Value(Reserves(p), prices, Market)
	if err != nil {
		return nil, err
	}
	entitlement, err := poolValue.MulDiv(fixedpoint.FromUint64(shares), fixedpoint.FromUint64(p.ShareSupply))
	if err != nil {
		return nil, zerrors.Arithmetic("withdraw entitlement", err)
	}
	q.Entitlement = entitlement

	payout, err := Value(q.Amounts, prices, Ask)
	if err != nil {
		return nil, err
	}
	if shares < p.ShareSupply && payout.GreaterThan(entitlement) {
		for _, side := range []types.Side{types.SideA, types.SideB} {
			scaled, err := fixedpoint.FromUint64(q.Amounts.Get(side)).MulDiv(entitlement, payout)
			if err != nil {
				return nil, zerrors.Arithmetic("capped payout", err)
			}
			amount, err := scaled.Floor()
			if err != nil {
				return nil, zerrors.Arithmetic("capped payout", err)
			}
			if side == types.SideA {
				q.Amounts.A = amount
			} else {
				q.Amounts.B = amount
			}
		}
		q.Capped = true
		if payout, err = Value(q.Amounts, prices, Ask); err != nil {
			return nil, err
		}
	}
	q.PayoutValue = payout

	if q.Amounts.IsZero() {
		return nil, zerrors.ZeroAmount("withdrawal output")
	}
	return q, nil
}

// Swap quotes exchanging amountIn of token in for the other token at the
// protocol price. The output is floored and must leave a positive reserve.
func (e *Engine) Swap(p *pool.Pool, in types.Side, amountIn uint64, prices Prices) (*SwapQuote, error) {
	if !in.Valid() {
		return nil, zerrors.InvalidInstruction(fmt.Sprintf("unknown token side %d", in))
	}
	if amountIn == 0 {
		return nil, zerrors.ZeroAmount("swap amount")
	}
	if p.ShareSupply == 0 {
		return nil, zerrors.InsufficientLiquidity("pool holds no liquidity")
	}
	if err := checkedAdd(p.Reserve(in), amountIn, "reserve "+in.String()); err != nil {
		return nil, err
	}

	rate, err := ProtocolPrice(prices, in)
	if err != nil {
		return nil, err
	}
	outValue, err := rate.MulUint64(amountIn)
	if err != nil {
		return nil, zerrors.Arithmetic("swap output", err)
	}
	out, err := outValue.Floor()
	if err != nil {
		return nil, zerrors.Arithmetic("swap output", err)
	}
	if out == 0 {
		return nil, zerrors.ZeroAmount("swap output")
	}

	// An exact drain is rejected too: a zero reserve with shares outstanding
	// can no longer price deposits.
	reserveOut := p.Reserve(in.Other())
	if out >= reserveOut {
		return nil, zerrors.InsufficientLiquidity(fmt.Sprintf(
			"swap needs %d of token %s but reserve holds %d", out, in.Other(), reserveOut))
	}

	return &SwapQuote{
		In:        in,
		AmountIn:  amountIn,
		AmountOut: out,
		Price:     rate,
	}, nil
}

func proportional(reserve, shares, supply uint64) (uint64, error) {
	n, err := fixedpoint.FromUint64(reserve).MulDiv(fixedpoint.FromUint64(shares), fixedpoint.FromUint64(supply))
	if err != nil {
		return 0, zerrors.Arithmetic("proportional claim", err)
	}
	out, err := n.Floor()
	return out, zerrors.Arithmetic("proportional claim", err)
}

func checkedAdd(a, b uint64, what string) error {
	if a > math.MaxUint64-b {
		return zerrors.NewError(zerrors.ErrCodeArithmeticOverflow, what+" exceeds u64")
	}
	return nil
}
