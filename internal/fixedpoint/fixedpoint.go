// internal/fixedpoint/fixedpoint.go
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the canonical precision of every amount and price in the engine.
const Decimals = 18

// BasisPoints is the denominator of every rate (10000 = 100%).
const BasisPoints = 10000

var (
	ErrOverflow       = errors.New("fixed-point overflow")
	ErrDivisionByZero = errors.New("fixed-point division by zero")
	ErrNegative       = errors.New("negative amount")
)

var (
	one    = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))
	bpsDen = uint256.NewInt(BasisPoints)
	bigTen = big.NewInt(10)
)

// One returns 1.0 at canonical precision (10^18).
func One() *uint256.Int {
	return one.Clone()
}

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// FromUint64 scales a whole number to canonical precision.
func FromUint64(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), one)
}

// Mul multiplies with overflow detection.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Add adds with overflow detection.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// SubFloor returns a-b, or zero when b > a.
func SubFloor(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// MulDiv computes a*b/d, multiplying first and truncating the quotient.
// The intermediate product must fit in 256 bits.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return p.Div(p, d), nil
}

// Bps applies a basis-point rate: amount*rate/10000.
func Bps(amount *uint256.Int, rate uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(rate), bpsDen)
}

// Rescale converts a raw integer reading with the given native precision to
// canonical precision. Extra fractional digits are truncated.
func Rescale(raw *big.Int, decimals uint8) (*uint256.Int, error) {
	if raw == nil {
		return new(uint256.Int), nil
	}
	if raw.Sign() < 0 {
		return nil, ErrNegative
	}

	v := new(big.Int).Set(raw)
	switch {
	case decimals < Decimals:
		v.Mul(v, new(big.Int).Exp(bigTen, big.NewInt(int64(Decimals-decimals)), nil))
	case decimals > Decimals:
		v.Quo(v, new(big.Int).Exp(bigTen, big.NewInt(int64(decimals-Decimals)), nil))
	}

	z, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// FromDecimal converts a human value (e.g. 2000.5) to canonical precision.
func FromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegative
	}
	scaled := d.Shift(Decimals).Truncate(0)
	return Rescale(scaled.BigInt(), Decimals)
}

// Parse reads a decimal string such as "100" or "0.99".
func Parse(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) *uint256.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ToDecimal renders a canonical value as a decimal.
func ToDecimal(v *uint256.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -Decimals)
}

// SignedToDecimal renders a signed canonical value (PnL, equity).
func SignedToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -Decimals)
}

// Format renders v with trailing zeros removed.
func Format(v *uint256.Int) string {
	return ToDecimal(v).String()
}
