// Package fixmath implements 18-decimal fixed-point ("WAD") arithmetic on
// 256-bit signed integers. 1.0 is represented by 10^18 raw units.
//
// Rounding rule: the default variants floor (round toward negative infinity),
// so Mul(1, 0.5 WAD) == 0. The Ceil variants round any nonzero remainder
// toward positive infinity. Multiplication overflow is detected on the raw
// double-width product and is a hard failure, never a wrap.
package fixmath

import (
	"errors"
	"math/big"
)

var (
	ErrOverflow        = errors.New("fixed-point overflow")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wad returns 10^18 as a fresh big.Int.
func Wad() *big.Int {
	return new(big.Int).Set(wad)
}

var (
	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// Working width is 256-bit signed: |x| <= 2^255 - 1.
	maxWorking = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
)

// FromInt converts an integer count of whole units to WAD.
func FromInt(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), wad)
}

func inBounds(x *big.Int) bool {
	return x.CmpAbs(maxWorking) <= 0
}

func floorQuo(n, m *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(n, m, new(big.Int))
	// Quo truncates toward zero; floor needs one more step down when the
	// truncated result discarded a negative fraction.
	if r.Sign() != 0 && (n.Sign() < 0) != (m.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

func ceilQuo(n, m *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(n, m, new(big.Int))
	if r.Sign() != 0 && (n.Sign() < 0) == (m.Sign() < 0) {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Mul returns floor(a*b / 10^18).
func Mul(a, b *big.Int) (*big.Int, error) {
	p := new(big.Int).Mul(a, b)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return floorQuo(p, wad), nil
}

// MulCeil returns ceil(a*b / 10^18).
func MulCeil(a, b *big.Int) (*big.Int, error) {
	p := new(big.Int).Mul(a, b)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return ceilQuo(p, wad), nil
}

// Div returns floor(a * 10^18 / b).
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a, wad)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return floorQuo(p, b), nil
}

// DivCeil returns ceil(a * 10^18 / b).
func DivCeil(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a, wad)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return ceilQuo(p, b), nil
}

// Frac returns floor(a*b/c) without the intermediate product losing precision.
func Frac(a, b, c *big.Int) (*big.Int, error) {
	if c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a, b)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return floorQuo(p, c), nil
}

// FracCeil returns ceil(a*b/c).
func FracCeil(a, b, c *big.Int) (*big.Int, error) {
	if c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a, b)
	if !inBounds(p) {
		return nil, ErrOverflow
	}
	return ceilQuo(p, c), nil
}

// CeilQuo is the raw integer ceiling division used internally by the upper
// layers (no WAD scaling). Fails InvalidArgument on a zero denominator.
func CeilQuo(n, m *big.Int) (*big.Int, error) {
	if m.Sign() == 0 {
		return nil, ErrInvalidArgument
	}
	return ceilQuo(n, m), nil
}

// Add returns a+b, failing on working-width overflow.
func Add(a, b *big.Int) (*big.Int, error) {
	s := new(big.Int).Add(a, b)
	if !inBounds(s) {
		return nil, ErrOverflow
	}
	return s, nil
}

// Sub returns a-b, failing on working-width overflow.
func Sub(a, b *big.Int) (*big.Int, error) {
	s := new(big.Int).Sub(a, b)
	if !inBounds(s) {
		return nil, ErrOverflow
	}
	return s, nil
}

// PowWad returns x^n for a WAD base and integer exponent, flooring at each
// step. Used for closed-form EMA decay over n elapsed seconds.
func PowWad(x *big.Int, n int64) (*big.Int, error) {
	if n < 0 {
		return nil, ErrInvalidArgument
	}
	result := Wad()
	base := new(big.Int).Set(x)
	var err error
	for n > 0 {
		if n&1 == 1 {
			result, err = Mul(result, base)
			if err != nil {
				return nil, err
			}
		}
		n >>= 1
		if n > 0 {
			base, err = Mul(base, base)
			if err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// Min returns the smaller of a and b (no copy of the loser).
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
