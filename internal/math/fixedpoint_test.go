package math_test

import (
	"math/big"
	"testing"

	"BasketCore/internal/fault"
	fpmath "BasketCore/internal/math"
)

func fixed(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), fpmath.PreciseUnit)
}

// ============================================================================
// Test: PreciseMul
// ============================================================================

func TestPreciseMul_Exact(t *testing.T) {
	// 2.0 * 3.0 = 6.0
	got := fpmath.PreciseMul(fixed(2), fixed(3), fpmath.RoundDown)
	if got.Cmp(fixed(6)) != 0 {
		t.Errorf("got %s, want %s", got, fixed(6))
	}
}

func TestPreciseMul_RoundDown(t *testing.T) {
	// 1 * 1 / 1e18 truncates to 0 under RoundDown
	got := fpmath.PreciseMul(big.NewInt(1), big.NewInt(1), fpmath.RoundDown)
	if got.Sign() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

func TestPreciseMul_RoundUp(t *testing.T) {
	// Same product rounds up to 1
	got := fpmath.PreciseMul(big.NewInt(1), big.NewInt(1), fpmath.RoundUp)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", got)
	}
}

func TestPreciseMul_NegativeRoundDown(t *testing.T) {
	// -1 * 1 / 1e18: RoundDown moves toward negative infinity, so -1
	got := fpmath.PreciseMul(big.NewInt(-1), big.NewInt(1), fpmath.RoundDown)
	if got.Cmp(big.NewInt(-1)) != 0 {
		t.Errorf("got %s, want -1", got)
	}
}

func TestPreciseMul_NegativeRoundUp(t *testing.T) {
	// -1 * 1 / 1e18: RoundUp moves toward positive infinity, so 0
	got := fpmath.PreciseMul(big.NewInt(-1), big.NewInt(1), fpmath.RoundUp)
	if got.Sign() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

func TestPreciseMul_InputsUnchanged(t *testing.T) {
	a := fixed(7)
	b := fixed(3)
	aCopy := new(big.Int).Set(a)
	bCopy := new(big.Int).Set(b)

	fpmath.PreciseMul(a, b, fpmath.RoundDown)

	if a.Cmp(aCopy) != 0 || b.Cmp(bCopy) != 0 {
		t.Error("PreciseMul must not mutate its inputs")
	}
}

// ============================================================================
// Test: PreciseDiv
// ============================================================================

func TestPreciseDiv_Exact(t *testing.T) {
	// 6.0 / 3.0 = 2.0
	got, err := fpmath.PreciseDiv(fixed(6), fixed(3), fpmath.RoundDown)
	if err != nil {
		t.Fatalf("PreciseDiv failed: %v", err)
	}
	if got.Cmp(fixed(2)) != 0 {
		t.Errorf("got %s, want %s", got, fixed(2))
	}
}

func TestPreciseDiv_RoundingDirections(t *testing.T) {
	// 10 / 3 = 3.333... : down floors, up ceils
	down, err := fpmath.PreciseDiv(fixed(10), fixed(3), fpmath.RoundDown)
	if err != nil {
		t.Fatalf("PreciseDiv failed: %v", err)
	}
	up, err := fpmath.PreciseDiv(fixed(10), fixed(3), fpmath.RoundUp)
	if err != nil {
		t.Fatalf("PreciseDiv failed: %v", err)
	}

	diff := new(big.Int).Sub(up, down)
	if diff.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("up - down = %s, want 1", diff)
	}
	if down.Cmp(up) >= 0 {
		t.Error("RoundDown result must be below RoundUp result for inexact division")
	}
}

func TestPreciseDiv_ByZero(t *testing.T) {
	_, err := fpmath.PreciseDiv(fixed(1), new(big.Int), fpmath.RoundDown)
	if err == nil {
		t.Fatal("expected error for division by zero")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
}

// ============================================================================
// Test: Divide / MulDiv
// ============================================================================

func TestDivide_TruncatesTowardRequestedDirection(t *testing.T) {
	down, err := fpmath.Divide(big.NewInt(7), big.NewInt(2), fpmath.RoundDown)
	if err != nil {
		t.Fatalf("Divide failed: %v", err)
	}
	if down.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("7/2 down: got %s, want 3", down)
	}

	up, err := fpmath.Divide(big.NewInt(7), big.NewInt(2), fpmath.RoundUp)
	if err != nil {
		t.Fatalf("Divide failed: %v", err)
	}
	if up.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("7/2 up: got %s, want 4", up)
	}
}

func TestDivide_NegativeNumerator(t *testing.T) {
	// -7/2 = -3.5: down -> -4, up -> -3
	down, _ := fpmath.Divide(big.NewInt(-7), big.NewInt(2), fpmath.RoundDown)
	if down.Cmp(big.NewInt(-4)) != 0 {
		t.Errorf("-7/2 down: got %s, want -4", down)
	}

	up, _ := fpmath.Divide(big.NewInt(-7), big.NewInt(2), fpmath.RoundUp)
	if up.Cmp(big.NewInt(-3)) != 0 {
		t.Errorf("-7/2 up: got %s, want -3", up)
	}
}

func TestMulDiv_NoIntermediateOverflow(t *testing.T) {
	// a * b far exceeds 256 bits; big.Int carries it exactly
	a := new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)
	b := new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)

	got, err := fpmath.MulDiv(a, b, a, fpmath.RoundDown)
	if err != nil {
		t.Fatalf("MulDiv failed: %v", err)
	}
	if got.Cmp(b) != 0 {
		t.Errorf("a*b/a: got %s, want %s", got, b)
	}
}

func TestMulDiv_ByZero(t *testing.T) {
	_, err := fpmath.MulDiv(fixed(1), fixed(1), new(big.Int), fpmath.RoundDown)
	if err == nil {
		t.Fatal("expected error for zero denominator")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
}

// ============================================================================
// Test: Constants
// ============================================================================

func TestSecondsPerYear(t *testing.T) {
	if fpmath.SecondsPerYear != 365*24*60*60 {
		t.Errorf("SecondsPerYear = %d, want 31536000", fpmath.SecondsPerYear)
	}
}
