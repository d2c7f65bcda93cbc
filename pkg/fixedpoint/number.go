// Package fixedpoint provides checked unsigned fixed-point arithmetic with
// twelve decimal places of precision.
//
// A Number is backed by a 256-bit integer holding value × 10^12. Products and
// quotients are computed through a 512-bit intermediate, so a result is only
// rejected when it does not fit the 256-bit backing. Every operation returns
// an error on overflow, underflow or division by zero; nothing wraps and
// nothing saturates.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional decimal digits carried by a Number.
const Decimals = 12

var (
	// ErrOverflow is returned when a result does not fit the backing integer
	// or the requested output type.
	ErrOverflow = errors.New("fixed-point overflow")

	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("fixed-point underflow")

	// ErrDivideByZero is returned when a divisor is zero.
	ErrDivideByZero = errors.New("fixed-point division by zero")

	// ErrInvalidDecimal is returned when a decimal string cannot be parsed.
	ErrInvalidDecimal = errors.New("invalid decimal")
)

var scale = uint256.NewInt(1_000_000_000_000)

// Number is an unsigned fixed-point value. The zero value is 0.
type Number struct {
	raw uint256.Int
}

// Zero returns 0.
func Zero() Number {
	return Number{}
}

// One returns 1.
func One() Number {
	return Number{raw: *scale}
}

// FromUint64 converts an integer amount into a Number. It cannot overflow.
func FromUint64(v uint64) Number {
	var n Number
	n.raw.Mul(uint256.NewInt(v), scale)
	return n
}

// FromRaw builds a Number from its scaled representation (value × 10^12).
func FromRaw(raw *uint256.Int) Number {
	var n Number
	n.raw.Set(raw)
	return n
}

// FromScaled converts mantissa × 10^expo into a Number, flooring any digits
// beyond the supported precision.
func FromScaled(mantissa uint64, expo int32) (Number, error) {
	shift := int64(expo) + Decimals
	m := uint256.NewInt(mantissa)

	if shift >= 0 {
		p, err := pow10(uint64(shift))
		if err != nil {
			if mantissa == 0 {
				return Zero(), nil
			}
			return Number{}, err
		}
		var n Number
		if _, overflow := n.raw.MulOverflow(m, p); overflow {
			return Number{}, ErrOverflow
		}
		return n, nil
	}

	p, err := pow10(uint64(-shift))
	if err != nil {
		// 10^-shift exceeds any uint64 mantissa.
		return Zero(), nil
	}
	var n Number
	n.raw.Div(m, p)
	return n, nil
}

// Parse reads a non-negative decimal string such as "1.25" into a Number.
// Digits beyond the supported precision are floored.
func Parse(s string) (Number, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q: %v", ErrInvalidDecimal, s, err)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Number {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// FromDecimal converts a decimal.Decimal into a Number.
func FromDecimal(d decimal.Decimal) (Number, error) {
	if d.IsNegative() {
		return Number{}, fmt.Errorf("%w: %s", ErrUnderflow, d.String())
	}
	scaled := d.Shift(Decimals).Floor().BigInt()
	raw, overflow := uint256.FromBig(scaled)
	if overflow {
		return Number{}, ErrOverflow
	}
	return FromRaw(raw), nil
}

// Decimal returns the value as a decimal.Decimal.
func (n Number) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(n.raw.ToBig(), -Decimals)
}

// Raw returns a copy of the scaled representation.
func (n Number) Raw() *uint256.Int {
	return new(uint256.Int).Set(&n.raw)
}

// Add returns n + m.
func (n Number) Add(m Number) (Number, error) {
	var out Number
	if _, overflow := out.raw.AddOverflow(&n.raw, &m.raw); overflow {
		return Number{}, ErrOverflow
	}
	return out, nil
}

// Sub returns n - m.
func (n Number) Sub(m Number) (Number, error) {
	var out Number
	if _, underflow := out.raw.SubOverflow(&n.raw, &m.raw); underflow {
		return Number{}, ErrUnderflow
	}
	return out, nil
}

// Mul returns n × m, floored to the supported precision.
func (n Number) Mul(m Number) (Number, error) {
	return mulDiv(&n.raw, &m.raw, scale)
}

// Div returns n ÷ m, floored to the supported precision.
func (n Number) Div(m Number) (Number, error) {
	return mulDiv(&n.raw, scale, &m.raw)
}

// MulDiv returns n × m ÷ d with a single floor at the end.
func (n Number) MulDiv(m, d Number) (Number, error) {
	return mulDiv(&n.raw, &m.raw, &d.raw)
}

// MulUint64 returns n × v.
func (n Number) MulUint64(v uint64) (Number, error) {
	var out Number
	if _, overflow := out.raw.MulOverflow(&n.raw, uint256.NewInt(v)); overflow {
		return Number{}, ErrOverflow
	}
	return out, nil
}

// Floor returns the integer part of n as a uint64.
func (n Number) Floor() (uint64, error) {
	var q uint256.Int
	q.Div(&n.raw, scale)
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// Cmp compares n and m and returns -1, 0 or +1.
func (n Number) Cmp(m Number) int {
	return n.raw.Cmp(&m.raw)
}

// IsZero reports whether n is 0.
func (n Number) IsZero() bool {
	return n.raw.IsZero()
}

// LessThan reports whether n < m.
func (n Number) LessThan(m Number) bool {
	return n.raw.Lt(&m.raw)
}

// GreaterThan reports whether n > m.
func (n Number) GreaterThan(m Number) bool {
	return n.raw.Gt(&m.raw)
}

// Equal reports whether n == m.
func (n Number) Equal(m Number) bool {
	return n.raw.Eq(&m.raw)
}

// String formats n as a decimal string.
func (n Number) String() string {
	return n.Decimal().String()
}

// MarshalText encodes n as a decimal string.
func (n Number) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses a decimal string.
func (n *Number) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Min returns the smaller of a and b.
func Min(a, b Number) Number {
	if a.LessThan(b) {
		return a
	}
	return b
}

func mulDiv(x, y, d *uint256.Int) (Number, error) {
	if d.IsZero() {
		return Number{}, ErrDivideByZero
	}
	var out Number
	if _, overflow := out.raw.MulDivOverflow(x, y, d); overflow {
		return Number{}, ErrOverflow
	}
	return out, nil
}

func pow10(exp uint64) (*uint256.Int, error) {
	// 10^77 is the largest power of ten below 2^256.
	if exp > 77 {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exp)), nil
}
