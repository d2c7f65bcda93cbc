package program

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

func randomSide(rng *rand.Rand) types.Side {
	return types.Side(rng.IntN(2))
}

func TestSwapsNeverLowerPoolValue(t *testing.T) {
	confidences := []string{"0", "0.004", "0.01"}
	for _, conf := range confidences {
		t.Run("conf "+conf, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, 11))
			f := newFixture(t)
			f.setPrice(types.SideA, "1.25", "0")
			f.setPrice(types.SideB, "0.8", "0")
			p := f.initialize(50_000, 80_000)

			f.setPrice(types.SideA, "1.25", conf)
			f.setPrice(types.SideB, "0.8", conf)
			prices := f.prices(p)

			for i := 0; i < 300; i++ {
				ix := &instruction.Swap{TokenIn: randomSide(rng), AmountIn: 10 + rng.Uint64N(5_000)}
				next, _, err := f.process(p, ix, f.userAccts)
				if err != nil {
					require.ErrorIs(t, err, zerrors.ErrInsufficientLiquidity, "swap %d", i)
					continue
				}

				before, err := pricing.PoolValue(p, prices)
				require.NoError(t, err)
				after, err := pricing.PoolValue(next, prices)
				require.NoError(t, err)
				require.False(t, after.LessThan(before), "swap %d lowered pool value from %s to %s", i, before, after)
				require.NoError(t, next.CheckInvariants())
				require.Positive(t, next.ReserveA)
				require.Positive(t, next.ReserveB)
				p = next
			}
			f.requireVaultsMatch(p)
		})
	}
}

func TestDepositThenWithdrawNeverProfits(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	f := newFixture(t)
	p := f.initialize(100_000, 40_000)
	confs := []string{"0", "0.001", "0.01"}

	for i := 0; i < 200; i++ {
		conf := confs[rng.IntN(len(confs))]
		f.setPrice(types.SideA, "2", conf)
		f.setPrice(types.SideB, "3", conf)
		prices := f.prices(p)

		side := randomSide(rng)
		amount := 10 + rng.Uint64N(5_000)

		deposited, r, err := f.process(p, &instruction.Deposit{Token: side, Amount: amount}, f.userAccts)
		require.NoError(t, err, "deposit %d", i)

		withdrawn, w, err := f.process(deposited, &instruction.Withdraw{SharesIn: r.SharesMinted}, f.userAccts)
		require.NoError(t, err, "withdraw %d", i)

		in, err := pricing.Value(pricing.Single(side, amount), prices, pricing.Market)
		require.NoError(t, err)
		out, err := pricing.Value(w.AmountsOut, prices, pricing.Market)
		require.NoError(t, err)
		require.False(t, out.GreaterThan(in), "round trip %d returned %s for %s", i, out, in)

		require.Zero(t, f.ledger.Balance(f.userAccts.UserShares))
		p = withdrawn
	}
	f.requireVaultsMatch(p)
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	f := newFixture(t)
	p := f.initialize(1_000, 1_000)

	for i := 0; i < 50; i++ {
		accts := f.adminAccts
		accts.Signer = newKey()
		a, b := rng.Uint64N(10_000), 1+rng.Uint64N(10_000)

		_, _, err := f.process(p, &instruction.AdminDeposit{AmountA: a, AmountB: b}, accts)
		require.ErrorIs(t, err, zerrors.ErrUnauthorized)

		_, _, err = f.process(nil, f.initializeIx(1+a, b), accts)
		require.ErrorIs(t, err, zerrors.ErrUnauthorized)
	}
	f.requireVaultsMatch(p)
}

func TestStalenessAlwaysRejected(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	f := newFixture(t)
	p := f.initialize(10_000, 10_000)

	instructions := []instruction.Instruction{
		instruction.NewAdminDeposit(types.SideA, 10),
		&instruction.Deposit{Token: types.SideB, Amount: 10},
		&instruction.Withdraw{SharesIn: 10},
		&instruction.Swap{TokenIn: types.SideA, AmountIn: 10},
	}

	for i := 0; i < 50; i++ {
		age := maxAgeSlots + 1 + rng.Uint64N(500)
		f.slot = startSlot + age

		ix := instructions[rng.IntN(len(instructions))]
		accts := f.userAccts
		if ix.Kind() != instruction.KindDeposit && ix.Kind() != instruction.KindSwap {
			accts = f.adminAccts
		}
		_, _, err := f.process(p, ix, accts)
		require.ErrorIs(t, err, zerrors.ErrStalePrice, "%s at age %d", ix.Kind(), age)
	}
}

func TestSharePriceNeverFallsAcrossMixedOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 4))
	f := newFixture(t)
	p := f.initialize(60_000, 60_000)
	prices := f.prices(p)

	shareValue := func() fixedpoint.Number {
		v, err := pricing.ShareValue(p, prices)
		require.NoError(t, err)
		return v
	}

	for i := 0; i < 200; i++ {
		var ix instruction.Instruction
		accts := f.userAccts
		switch rng.IntN(3) {
		case 0:
			ix = &instruction.Swap{TokenIn: randomSide(rng), AmountIn: 1 + rng.Uint64N(3_000)}
		case 1:
			ix = &instruction.Deposit{Token: randomSide(rng), Amount: 1 + rng.Uint64N(3_000)}
		default:
			ix = &instruction.Withdraw{SharesIn: 1 + rng.Uint64N(1_000)}
			accts = f.adminAccts
		}

		before := shareValue()
		next, _, err := f.process(p, ix, accts)
		if err != nil {
			continue
		}
		p = next
		require.False(t, shareValue().LessThan(before), "%s at step %d diluted shares", ix.Kind(), i)
	}
	f.requireVaultsMatch(p)
}
