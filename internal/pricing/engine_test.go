package pricing

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

func quote(price, conf string) oracle.Quote {
	return oracle.Quote{
		Price:      fixedpoint.MustParse(price),
		Confidence: fixedpoint.MustParse(conf),
	}
}

func flatPrices() Prices {
	return Prices{A: quote("1", "0"), B: quote("1", "0")}
}

func activePool(a, b, supply uint64) *pool.Pool {
	return &pool.Pool{
		Status:      pool.StatusActive,
		ReserveA:    a,
		ReserveB:    b,
		ShareSupply: supply,
	}
}

func TestProtocolPriceFollowsOracleNotReserves(t *testing.T) {
	prices := Prices{A: quote("2", "0"), B: quote("0.5", "0")}

	rate, err := ProtocolPrice(prices, types.SideA)
	require.NoError(t, err)
	require.Equal(t, "4", rate.String())

	market, err := MarketPrice(prices, types.SideA)
	require.NoError(t, err)
	require.True(t, rate.Equal(market))

	reverse, err := ProtocolPrice(prices, types.SideB)
	require.NoError(t, err)
	require.Equal(t, "0.25", reverse.String())
}

func TestProtocolPriceAppliesConfidenceBand(t *testing.T) {
	prices := Prices{A: quote("1", "0.01"), B: quote("1", "0.01")}

	rate, err := ProtocolPrice(prices, types.SideA)
	require.NoError(t, err)
	// 0.99 / 1.01
	require.Equal(t, "0.980198019801", rate.String())
}

func TestSwapAtParity(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(1_000, 1_000, 1_000)

	q, err := e.Swap(p, types.SideA, 100, flatPrices())
	require.NoError(t, err)
	require.Equal(t, uint64(100), q.AmountOut)
	require.Equal(t, types.SideA, q.In)
	require.Equal(t, "1", q.Price.String())

	// The pool itself is untouched.
	require.Equal(t, uint64(1_000), p.ReserveA)
	require.Equal(t, uint64(1_000), p.ReserveB)
}

func TestSwapFailures(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, err := e.Swap(activePool(1_000, 1_000, 1_000), types.SideA, 1_000, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrInsufficientLiquidity, "draining the out reserve is rejected")

	q, err := e.Swap(activePool(1_000, 1_000, 1_000), types.SideA, 999, flatPrices())
	require.NoError(t, err)
	require.Equal(t, uint64(999), q.AmountOut, "one unit must stay behind")

	_, err = e.Swap(activePool(1_000, 1_000, 1_000), types.SideA, 0, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrZeroAmount)

	tiny := Prices{A: quote("0.001", "0"), B: quote("1", "0")}
	_, err = e.Swap(activePool(1_000, 1_000, 1_000), types.SideA, 1, tiny)
	require.ErrorIs(t, err, zerrors.ErrZeroAmount, "output rounding to zero is rejected")

	_, err = e.Swap(activePool(0, 0, 0), types.SideA, 10, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrInsufficientLiquidity)

	_, err = e.Swap(activePool(math.MaxUint64, 1_000, 1_000), types.SideA, 1, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrArithmeticOverflow)

	_, err = e.Swap(activePool(1_000, 1_000, 1_000), types.Side(5), 1, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrInvalidInstruction)
}

func TestSeedDeposit(t *testing.T) {
	e := NewEngine(DefaultConfig())
	prices := Prices{A: quote("2", "0"), B: quote("3", "0")}

	q, err := e.DepositAtMarket(activePool(0, 0, 0), Amounts{A: 100, B: 100}, prices)
	require.NoError(t, err)
	require.Equal(t, uint64(500), q.Shares)
	require.Equal(t, "500", q.DepositValue.String())

	e = NewEngine(Config{SeedSharePrice: fixedpoint.MustParse("10")})
	q, err = e.DepositAtMarket(activePool(0, 0, 0), Amounts{A: 100, B: 100}, prices)
	require.NoError(t, err)
	require.Equal(t, uint64(50), q.Shares)
}

func TestDepositMarketVersusProtocol(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(1_000, 1_000, 2_000)

	// Without a confidence band both paths agree.
	market, err := e.DepositAtMarket(p, Single(types.SideA, 100), flatPrices())
	require.NoError(t, err)
	protocol, err := e.DepositAtProtocol(p, Single(types.SideA, 100), flatPrices())
	require.NoError(t, err)
	require.Equal(t, uint64(100), market.Shares)
	require.Equal(t, market.Shares, protocol.Shares)

	// With a band, users are credited at bid against the pool at ask.
	wide := Prices{A: quote("1", "0.02"), B: quote("1", "0.02")}
	market, err = e.DepositAtMarket(p, Single(types.SideA, 100), wide)
	require.NoError(t, err)
	protocol, err = e.DepositAtProtocol(p, Single(types.SideA, 100), wide)
	require.NoError(t, err)
	require.Equal(t, uint64(100), market.Shares)
	// 100 × 0.98 × 2000 / (2000 × 1.02) = 96.07...
	require.Equal(t, uint64(96), protocol.Shares)
}

func TestDepositFailures(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, err := e.DepositAtProtocol(activePool(1_000, 1_000, 1_000), Amounts{}, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrZeroAmount)

	_, err = e.DepositAtProtocol(activePool(math.MaxUint64-1, 1_000, 1_000), Single(types.SideA, 2), flatPrices())
	require.ErrorIs(t, err, zerrors.ErrArithmeticOverflow)

	// A dust deposit into a deep pool issues no shares.
	_, err = e.DepositAtProtocol(activePool(1_000_000, 1_000_000, 1), Single(types.SideA, 1), flatPrices())
	require.ErrorIs(t, err, zerrors.ErrZeroAmount)

	_, err = e.DepositAtMarket(activePool(1, 1, math.MaxUint64), Single(types.SideA, 1), flatPrices())
	require.ErrorIs(t, err, zerrors.ErrArithmeticOverflow)
}

func TestWithdrawProportional(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(1_000, 3_000, 1_000)

	q, err := e.Withdraw(p, 250, flatPrices())
	require.NoError(t, err)
	require.Equal(t, Amounts{A: 250, B: 750}, q.Amounts)
	require.False(t, q.Capped)
	require.False(t, q.PayoutValue.GreaterThan(q.Entitlement))
}

func TestWithdrawCapsClaimAtEntitlement(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(1_000, 1_000, 2_000)
	wide := Prices{A: quote("1", "0.02"), B: quote("1", "0.02")}

	// The 250/250 claim is worth 510 at ask against an entitlement of 500,
	// so each side is scaled by 500/510: floor(245.09...) = 245.
	q, err := e.Withdraw(p, 500, wide)
	require.NoError(t, err)
	require.True(t, q.Capped)
	require.Equal(t, Amounts{A: 245, B: 245}, q.Amounts)
	require.Equal(t, fixedpoint.MustParse("500"), q.Entitlement)
	require.Equal(t, fixedpoint.MustParse("499.8"), q.PayoutValue)
	require.False(t, q.PayoutValue.GreaterThan(q.Entitlement))
}

func TestWithdrawCapNeverExceedsEntitlement(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rng := rand.New(rand.NewPCG(17, 23))
	prices := Prices{A: quote("3.7", "0.07"), B: quote("0.42", "0.0004")}

	capped := 0
	for i := 0; i < 2_000; i++ {
		supply := 1_000 + rng.Uint64N(1_000_000)
		p := activePool(1_000+rng.Uint64N(1_000_000_000), 1_000+rng.Uint64N(1_000_000_000), supply)
		q, err := e.Withdraw(p, 1+rng.Uint64N(supply-1), prices)
		if err != nil {
			require.ErrorIs(t, err, zerrors.ErrZeroAmount, "withdraw %d", i)
			continue
		}
		require.False(t, q.PayoutValue.GreaterThan(q.Entitlement), "withdraw %d paid %s for %s", i, q.PayoutValue, q.Entitlement)
		require.LessOrEqual(t, q.Amounts.A, p.ReserveA)
		require.LessOrEqual(t, q.Amounts.B, p.ReserveB)
		if q.Capped {
			capped++
		}
	}
	require.Positive(t, capped)
}

func TestWithdrawFloorsClaims(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(10, 10, 3)

	q, err := e.Withdraw(p, 1, flatPrices())
	require.NoError(t, err)
	require.Equal(t, Amounts{A: 3, B: 3}, q.Amounts)
}

func TestWithdrawFullSupplyReturnsReserves(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := activePool(1_234, 5_678, 999)

	q, err := e.Withdraw(p, 999, Prices{A: quote("1", "0.01"), B: quote("2", "0.01")})
	require.NoError(t, err)
	require.Equal(t, Amounts{A: 1_234, B: 5_678}, q.Amounts)
}

func TestWithdrawFailures(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, err := e.Withdraw(activePool(1_000, 1_000, 1_000), 1_001, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrInsufficientLiquidity)

	_, err = e.Withdraw(activePool(0, 0, 0), 1, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrInsufficientLiquidity)

	_, err = e.Withdraw(activePool(1_000, 1_000, 1_000), 0, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrZeroAmount)

	_, err = e.Withdraw(activePool(1, 1, 1_000), 1, flatPrices())
	require.ErrorIs(t, err, zerrors.ErrZeroAmount)
}

func TestPoolAndShareValue(t *testing.T) {
	p := activePool(100, 200, 50)
	prices := Prices{A: quote("1.5", "0"), B: quote("0.25", "0")}

	v, err := PoolValue(p, prices)
	require.NoError(t, err)
	require.Equal(t, "200", v.String())

	sv, err := ShareValue(p, prices)
	require.NoError(t, err)
	require.Equal(t, "4", sv.String())

	zero, err := ShareValue(activePool(0, 0, 0), prices)
	require.NoError(t, err)
	require.True(t, zero.IsZero())
}
