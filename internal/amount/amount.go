// Package amount provides the fixed-precision value type used for all
// escrowed funds. Amounts count whole base units — the smallest indivisible
// unit of value — and are always non-negative.
//
// All monetary values use shopspring/decimal — never float64 for money.
package amount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegative is returned when constructing an amount from a negative
	// or fractional value.
	ErrNegative = errors.New("amount: value must be a non-negative whole number of base units")

	// ErrUnderflow is returned when a subtraction would produce a negative
	// amount. Callers treat this as an invariant violation, not a
	// recoverable condition.
	ErrUnderflow = errors.New("amount: subtraction underflow")

	// ErrDivideByZero is returned by MulDivFloor with a zero divisor.
	ErrDivideByZero = errors.New("amount: division by zero")
)

// Amount is a non-negative integer quantity of base units. The zero value
// is zero base units and ready to use.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// FromInt64 constructs an Amount from a base-unit count.
func FromInt64(v int64) (Amount, error) {
	if v < 0 {
		return Amount{}, fmt.Errorf("%w: %d", ErrNegative, v)
	}
	return Amount{d: decimal.NewFromInt(v)}, nil
}

// MustFromInt64 is FromInt64 for constants known to be valid; panics otherwise.
func MustFromInt64(v int64) Amount {
	a, err := FromInt64(v)
	if err != nil {
		panic(err)
	}
	return a
}

// FromString parses a decimal string of base units, e.g. "1000".
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal validates that d is a non-negative integer and wraps it.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() || !d.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %s", ErrNegative, d)
	}
	return Amount{d: d}, nil
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String returns the base-unit count in decimal notation.
func (a Amount) String() string { return a.d.String() }

// IsZero reports whether the amount is zero base units.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Add returns a + b. Addition of non-negative integers cannot underflow,
// and decimal arithmetic is arbitrary precision, so Add never fails.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b, or ErrUnderflow if b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	r := a.d.Sub(b.d)
	if r.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrUnderflow, a.d, b.d)
	}
	return Amount{d: r}, nil
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// Equal reports whether a and b are the same number of base units.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// MulDivFloor returns floor(a * mul / div) computed exactly — the
// proportional-share primitive for payout distribution. QuoRem with
// precision 0 yields the exact integer quotient; for non-negative
// operands truncation and floor coincide.
func (a Amount) MulDivFloor(mul, div Amount) (Amount, error) {
	if div.IsZero() {
		return Amount{}, ErrDivideByZero
	}
	q, _ := a.d.Mul(mul.d).QuoRem(div.d, 0)
	return Amount{d: q}, nil
}

// MarshalJSON encodes the amount as a JSON string of base units. Strings
// keep arbitrary-size values exact across JSON round trips.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
