package math

import (
	"math/big"
	"sync"

	"BasketCore/internal/fault"
)

// RoundingMode selects the rounding direction for fixed-point division.
// The direction is a security property, not a cosmetic one: every call site
// picks the mode that makes rounding error favor the basket (retained
// collateral) over the caller. See RoundDownToProtocol / RoundUpToProtocol.
type RoundingMode int

const (
	// RoundDown rounds toward negative infinity.
	RoundDown RoundingMode = iota
	// RoundUp rounds toward positive infinity.
	RoundUp
)

// Named rounding policies. Use these at call sites where the direction is
// load-bearing, so a reviewer can see which way the error is allowed to fall.
const (
	// RoundDownToProtocol understates an amount credited to a holder.
	RoundDownToProtocol = RoundDown
	// RoundUpToProtocol overstates an amount debited from a holder.
	RoundUpToProtocol = RoundUp
)

// PreciseUnit is 1.0 in 18-decimal fixed point.
var PreciseUnit = big.NewInt(1_000_000_000_000_000_000)

// SecondsPerYear is the streaming-fee accrual denominator (365-day year).
const SecondsPerYear int64 = 365 * 24 * 60 * 60

// Pooled big.Int for intermediate calculations
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	intPool.Put(v)
}

// PreciseMul computes a * b / PreciseUnit with the given rounding mode.
// Inputs may be negative (debt positions); rounding is directional, so
// RoundDown on a negative product moves away from zero.
func PreciseMul(a, b *big.Int, mode RoundingMode) *big.Int {
	prod := getInt()
	prod.Mul(a, b)
	result := divide(prod, PreciseUnit, mode)
	putInt(prod)
	return result
}

// PreciseDiv computes a * PreciseUnit / b with the given rounding mode.
func PreciseDiv(a, b *big.Int, mode RoundingMode) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fault.Arithmeticf("precise div by zero")
	}
	scaled := getInt()
	scaled.Mul(a, PreciseUnit)
	result := divide(scaled, b, mode)
	putInt(scaled)
	return result, nil
}

// Divide computes num / den with the given rounding mode.
func Divide(num, den *big.Int, mode RoundingMode) (*big.Int, error) {
	if den.Sign() == 0 {
		return nil, fault.Arithmeticf("division by zero")
	}
	return divide(num, den, mode), nil
}

// MulDiv computes a * b / den with the given rounding mode.
func MulDiv(a, b, den *big.Int, mode RoundingMode) (*big.Int, error) {
	if den.Sign() == 0 {
		return nil, fault.Arithmeticf("muldiv by zero")
	}
	prod := getInt()
	prod.Mul(a, b)
	result := divide(prod, den, mode)
	putInt(prod)
	return result, nil
}

// divide performs directional division. big.Int QuoRem truncates toward zero,
// so a nonzero remainder needs a correction step when the truncated quotient
// sits on the wrong side of the requested direction.
func divide(num, den *big.Int, mode RoundingMode) *big.Int {
	quo := new(big.Int)
	rem := getInt()
	quo.QuoRem(num, den, rem)

	if rem.Sign() != 0 {
		negative := (num.Sign() < 0) != (den.Sign() < 0)
		switch mode {
		case RoundDown:
			if negative {
				quo.Sub(quo, oneInt)
			}
		case RoundUp:
			if !negative {
				quo.Add(quo, oneInt)
			}
		}
	}

	putInt(rem)
	return quo
}

var oneInt = big.NewInt(1)
