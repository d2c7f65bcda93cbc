// Package errors defines the error type returned by every pool operation.
//
// Each failure carries a stable Code. Errors compare equal under errors.Is when
// their codes match, so callers test against the predefined sentinels rather
// than message text. Constructors always allocate a fresh error; sentinels are
// never mutated.
package errors

import (
	"errors"
	"fmt"

	"github.com/lugondev/go-zion/pkg/fixedpoint"
)

// Error codes for pool operations.
const (
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeStalePrice            = "STALE_PRICE"
	ErrCodeInvalidOracleData     = "INVALID_ORACLE_DATA"
	ErrCodeNegativePrice         = "NEGATIVE_PRICE"
	ErrCodeZeroPrice             = "ZERO_PRICE"
	ErrCodeArithmeticOverflow    = "ARITHMETIC_OVERFLOW"
	ErrCodeArithmeticUnderflow   = "ARITHMETIC_UNDERFLOW"
	ErrCodeInsufficientLiquidity = "INSUFFICIENT_LIQUIDITY"
	ErrCodeSlippageExceeded      = "SLIPPAGE_EXCEEDED"
	ErrCodeInvariantViolation    = "INVARIANT_VIOLATION"
	ErrCodePoolFrozen            = "POOL_FROZEN"
	ErrCodeInvalidInstruction    = "INVALID_INSTRUCTION"
	ErrCodeZeroAmount            = "ZERO_AMOUNT"
	ErrCodeLedgerFailure         = "LEDGER_FAILURE"
	ErrCodePoolNotFound          = "POOL_NOT_FOUND"
	ErrCodeStorageFailure        = "STORAGE_FAILURE"
)

// PoolError represents a failed pool operation.
type PoolError struct {
	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PoolError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *PoolError) Is(target error) bool {
	t, ok := target.(*PoolError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *PoolError) WithCause(cause error) *PoolError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of the error with the given details.
func (e *PoolError) WithDetails(details map[string]any) *PoolError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError creates a new PoolError.
func NewError(code, message string) *PoolError {
	return &PoolError{
		Code:    code,
		Message: message,
	}
}

// Pre-defined errors, one per code.
var (
	ErrUnauthorized          = NewError(ErrCodeUnauthorized, "signer is not authorized")
	ErrStalePrice            = NewError(ErrCodeStalePrice, "oracle price is stale")
	ErrInvalidOracleData     = NewError(ErrCodeInvalidOracleData, "invalid oracle data")
	ErrNegativePrice         = NewError(ErrCodeNegativePrice, "oracle price is negative")
	ErrZeroPrice             = NewError(ErrCodeZeroPrice, "oracle price is zero")
	ErrArithmeticOverflow    = NewError(ErrCodeArithmeticOverflow, "arithmetic overflow")
	ErrArithmeticUnderflow   = NewError(ErrCodeArithmeticUnderflow, "arithmetic underflow")
	ErrInsufficientLiquidity = NewError(ErrCodeInsufficientLiquidity, "insufficient liquidity")
	ErrSlippageExceeded      = NewError(ErrCodeSlippageExceeded, "slippage exceeded")
	ErrInvariantViolation    = NewError(ErrCodeInvariantViolation, "pool invariant violated")
	ErrPoolFrozen            = NewError(ErrCodePoolFrozen, "operation not allowed in current pool status")
	ErrInvalidInstruction    = NewError(ErrCodeInvalidInstruction, "invalid instruction")
	ErrZeroAmount            = NewError(ErrCodeZeroAmount, "amount is zero")
	ErrLedgerFailure         = NewError(ErrCodeLedgerFailure, "ledger rejected movements")
	ErrPoolNotFound          = NewError(ErrCodePoolNotFound, "pool not found")
	ErrStorageFailure        = NewError(ErrCodeStorageFailure, "storage failure")
)

// Unauthorized creates an error for a signer lacking the required role.
func Unauthorized(reason string) *PoolError {
	return NewError(ErrCodeUnauthorized, reason)
}

// StalePrice creates an error for a feed older than the allowed age.
func StalePrice(ageSlots, maxAgeSlots uint64) *PoolError {
	return NewError(ErrCodeStalePrice, fmt.Sprintf("price is %d slots old, max %d", ageSlots, maxAgeSlots)).
		WithDetails(map[string]any{"age_slots": ageSlots, "max_age_slots": maxAgeSlots})
}

// InvalidOracleData creates an error for a malformed or untrusted feed.
func InvalidOracleData(reason string) *PoolError {
	return NewError(ErrCodeInvalidOracleData, reason)
}

// InsufficientLiquidity creates an error for a request the reserves cannot cover.
func InsufficientLiquidity(reason string) *PoolError {
	return NewError(ErrCodeInsufficientLiquidity, reason)
}

// SlippageExceeded creates an error for an output below the caller's bound.
func SlippageExceeded(what string, got, min uint64) *PoolError {
	return NewError(ErrCodeSlippageExceeded, fmt.Sprintf("%s %d below minimum %d", what, got, min)).
		WithDetails(map[string]any{"got": got, "min": min})
}

// InvariantViolation creates an error for a rejected state transition.
func InvariantViolation(reason string) *PoolError {
	return NewError(ErrCodeInvariantViolation, reason)
}

// PoolFrozen creates an error for an operation the pool status does not allow.
func PoolFrozen(op, status string) *PoolError {
	return NewError(ErrCodePoolFrozen, fmt.Sprintf("%s not allowed while pool is %s", op, status))
}

// InvalidInstruction creates an error for a malformed instruction.
func InvalidInstruction(reason string) *PoolError {
	return NewError(ErrCodeInvalidInstruction, reason)
}

// ZeroAmount creates an error for an amount that must be positive.
func ZeroAmount(what string) *PoolError {
	return NewError(ErrCodeZeroAmount, fmt.Sprintf("%s must be greater than zero", what))
}

// LedgerFailure creates an error for a rejected movement batch.
func LedgerFailure(cause error) *PoolError {
	return ErrLedgerFailure.WithCause(cause)
}

// StorageFailure creates an error for a failed load or save.
func StorageFailure(what string, cause error) *PoolError {
	return NewError(ErrCodeStorageFailure, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// Arithmetic maps a fixedpoint failure onto the matching error code.
// Errors that are already PoolErrors pass through unchanged.
func Arithmetic(what string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PoolError
	if errors.As(err, &pe) {
		return err
	}
	switch {
	case errors.Is(err, fixedpoint.ErrUnderflow):
		return NewError(ErrCodeArithmeticUnderflow, what).WithCause(err)
	default:
		// Overflow and division by zero both mean the result is unrepresentable.
		return NewError(ErrCodeArithmeticOverflow, what).WithCause(err)
	}
}

// Code returns the code of the first PoolError in err's chain, or "" if none.
func Code(err error) string {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
