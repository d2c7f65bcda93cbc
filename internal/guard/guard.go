// Package guard enforces authorization, lifecycle and solvency rules around
// every pool state transition.
package guard

import (
	"fmt"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

// Role is the privilege an instruction requires.
type Role uint8

const (
	AdminOp Role = iota
	UserOp
)

func (r Role) String() string {
	if r == AdminOp {
		return "admin"
	}
	return "user"
}

// RoleOf returns the role required by an instruction kind.
func RoleOf(kind instruction.Kind) Role {
	switch kind {
	case instruction.KindInitialize, instruction.KindAdminDeposit:
		return AdminOp
	default:
		return UserOp
	}
}

// Authorize checks that signer may act in role on a pool administered by admin.
func Authorize(role Role, signer, admin types.Pubkey) error {
	if role == AdminOp && !signer.Equals(admin) {
		return zerrors.Unauthorized(fmt.Sprintf("%s is not the pool admin", signer))
	}
	return nil
}

// allowed lists the statuses each instruction may start from.
var allowed = map[instruction.Kind][]pool.Status{
	instruction.KindInitialize:   {pool.StatusUninitialized},
	instruction.KindAdminDeposit: {pool.StatusActive, pool.StatusEmergency},
	instruction.KindDeposit:      {pool.StatusActive},
	instruction.KindWithdraw:     {pool.StatusActive, pool.StatusEmergency},
	instruction.KindSwap:         {pool.StatusActive},
}

// CheckStatus rejects an instruction the pool status does not allow.
func CheckStatus(kind instruction.Kind, status pool.Status) error {
	for _, s := range allowed[kind] {
		if s == status {
			return nil
		}
	}
	return zerrors.PoolFrozen(kind.String(), status.String())
}

// CheckMinimum rejects an output below the caller's bound.
func CheckMinimum(what string, got, min uint64) error {
	if got < min {
		return zerrors.SlippageExceeded(what, got, min)
	}
	return nil
}

// Config tunes transition checks.
type Config struct {
	// ValueTolerance is the largest relative decrease in pool or per-share
	// value accepted as rounding noise.
	ValueTolerance fixedpoint.Number
}

// Guard validates state transitions.
type Guard struct {
	cfg Config
}

// New creates a Guard.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// CheckTransition validates the pool after an instruction against its state
// before. The invariants must hold on after; pool value may not fall across
// deposits and swaps; per-share value may not fall whenever shares remain
// outstanding on both sides of the transition.
func (g *Guard) CheckTransition(kind instruction.Kind, before, after *pool.Pool, prices pricing.Prices) error {
	if err := after.CheckInvariants(); err != nil {
		return err
	}

	valueBefore, err := pricing.PoolValue(before, prices)
	if err != nil {
		return err
	}
	valueAfter, err := pricing.PoolValue(after, prices)
	if err != nil {
		return err
	}

	switch kind {
	case instruction.KindAdminDeposit, instruction.KindDeposit, instruction.KindSwap:
		ok, err := g.notBelow(valueAfter, 1, valueBefore, 1)
		if err != nil {
			return err
		}
		if !ok {
			return zerrors.InvariantViolation(fmt.Sprintf(
				"%s lowers pool value from %s to %s", kind, valueBefore, valueAfter))
		}
	}

	if before.ShareSupply > 0 && after.ShareSupply > 0 {
		// valueAfter/supplyAfter >= valueBefore/supplyBefore, cross-multiplied
		// so the comparison is exact.
		ok, err := g.notBelow(valueAfter, before.ShareSupply, valueBefore, after.ShareSupply)
		if err != nil {
			return err
		}
		if !ok {
			return zerrors.InvariantViolation(fmt.Sprintf(
				"%s dilutes share value (%s over %d shares to %s over %d shares)",
				kind, valueBefore, before.ShareSupply, valueAfter, after.ShareSupply))
		}
	}
	return nil
}

// notBelow reports whether a×ma >= b×mb×(1 - tolerance).
func (g *Guard) notBelow(a fixedpoint.Number, ma uint64, b fixedpoint.Number, mb uint64) (bool, error) {
	lhs, err := a.MulUint64(ma)
	if err != nil {
		return false, zerrors.Arithmetic("transition check", err)
	}
	rhs, err := b.MulUint64(mb)
	if err != nil {
		return false, zerrors.Arithmetic("transition check", err)
	}
	slack, err := rhs.Mul(g.cfg.ValueTolerance)
	if err != nil {
		return false, zerrors.Arithmetic("transition check", err)
	}
	floor, err := rhs.Sub(slack)
	if err != nil {
		// Tolerance of 100% or more accepts anything.
		return true, nil
	}
	return !lhs.LessThan(floor), nil
}
