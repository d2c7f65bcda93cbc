package pricing

import (
	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

// Valuation selects which side of the confidence band prices a token.
type Valuation uint8

const (
	// Market uses the oracle price as published.
	Market Valuation = iota
	// Bid uses price minus confidence: what the pool credits for a token it receives.
	Bid
	// Ask uses price plus confidence: what the pool charges for a token it pays out.
	Ask
)

// Prices holds the quotes resolved for both pool tokens within one instruction.
type Prices struct {
	A oracle.Quote
	B oracle.Quote
}

// Quote returns the quote for side.
func (p Prices) Quote(side types.Side) oracle.Quote {
	if side == types.SideB {
		return p.B
	}
	return p.A
}

// Price returns the unit price of side under valuation v.
func (p Prices) Price(side types.Side, v Valuation) (fixedpoint.Number, error) {
	q := p.Quote(side)
	switch v {
	case Bid:
		return q.Bid()
	case Ask:
		return q.Ask()
	default:
		return q.Price, nil
	}
}

// Amounts is a pair of token amounts in base units.
type Amounts struct {
	A uint64 `json:"a"`
	B uint64 `json:"b"`
}

// Single returns Amounts carrying amount on side only.
func Single(side types.Side, amount uint64) Amounts {
	if side == types.SideB {
		return Amounts{B: amount}
	}
	return Amounts{A: amount}
}

// Get returns the amount on side.
func (a Amounts) Get(side types.Side) uint64 {
	if side == types.SideB {
		return a.B
	}
	return a.A
}

// IsZero reports whether both amounts are zero.
func (a Amounts) IsZero() bool {
	return a.A == 0 && a.B == 0
}

// Reserves returns the pool's reserves as Amounts.
func Reserves(p *pool.Pool) Amounts {
	return Amounts{A: p.ReserveA, B: p.ReserveB}
}

// Value prices amounts under valuation v. The result is exact: base-unit
// amounts are whole numbers, so no rounding occurs.
func Value(amounts Amounts, prices Prices, v Valuation) (fixedpoint.Number, error) {
	total := fixedpoint.Zero()
	for _, side := range []types.Side{types.SideA, types.SideB} {
		amount := amounts.Get(side)
		if amount == 0 {
			continue
		}
		price, err := prices.Price(side, v)
		if err != nil {
			return fixedpoint.Number{}, err
		}
		part, err := price.MulUint64(amount)
		if err != nil {
			return fixedpoint.Number{}, zerrors.Arithmetic("token value", err)
		}
		if total, err = total.Add(part); err != nil {
			return fixedpoint.Number{}, zerrors.Arithmetic("total value", err)
		}
	}
	return total, nil
}

// PoolValue is the market value of both reserves.
func PoolValue(p *pool.Pool, prices Prices) (fixedpoint.Number, error) {
	return Value(Reserves(p), prices, Market)
}

// ShareValue is the market value of a single pool share, or zero when no
// shares are outstanding.
func ShareValue(p *pool.Pool, prices Prices) (fixedpoint.Number, error) {
	if p.ShareSupply == 0 {
		return fixedpoint.Zero(), nil
	}
	total, err := PoolValue(p, prices)
	if err != nil {
		return fixedpoint.Number{}, err
	}
	v, err := total.Div(fixedpoint.FromUint64(p.ShareSupply))
	return v, zerrors.Arithmetic("share value", err)
}

// MarketPrice is the oracle-implied exchange rate: units of the other token
// per unit of in.
func MarketPrice(prices Prices, in types.Side) (fixedpoint.Number, error) {
	rate, err := prices.Quote(in).Price.Div(prices.Quote(in.Other()).Price)
	return rate, zerrors.Arithmetic("market price", err)
}

// ProtocolPrice is the rate the pool trades at: the token it receives is
// valued at bid and the token it pays out at ask. With zero confidence this
// equals MarketPrice; with a non-zero band it is always below the oracle
// ratio, so swaps settle more conservatively than the feeds imply. Reserves
// never move the rate; they only bound capacity.
func ProtocolPrice(prices Prices, in types.Side) (fixedpoint.Number, error) {
	bid, err := prices.Price(in, Bid)
	if err != nil {
		return fixedpoint.Number{}, err
	}
	ask, err := prices.Price(in.Other(), Ask)
	if err != nil {
		return fixedpoint.Number{}, err
	}
	rate, err := bid.Div(ask)
	return rate, zerrors.Arithmetic("protocol price", err)
}
