package ledger_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"BasketCore/internal/fault"
	"BasketCore/internal/ledger"
	fpmath "BasketCore/internal/math"
)

func fixed(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), fpmath.PreciseUnit)
}

// stubOracle reports fixed balances per component.
type stubOracle struct {
	balances map[ledger.Address]*big.Int
}

func (s *stubOracle) BalanceOf(basketID uuid.UUID, component ledger.Address) (*big.Int, error) {
	if b, ok := s.balances[component]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// ============================================================================
// Test: Position unit math
// ============================================================================

func TestDefaultTotalNotional(t *testing.T) {
	// 100 supply * 2.0 unit = 200 notional
	got := ledger.DefaultTotalNotional(fixed(100), fixed(2))
	if got.Cmp(fixed(200)) != 0 {
		t.Errorf("got %s, want %s", got, fixed(200))
	}
}

func TestDefaultPositionUnit_Inverse(t *testing.T) {
	unit, err := ledger.DefaultPositionUnit(fixed(100), fixed(200))
	if err != nil {
		t.Fatalf("DefaultPositionUnit failed: %v", err)
	}
	if unit.Cmp(fixed(2)) != 0 {
		t.Errorf("got %s, want %s", unit, fixed(2))
	}
}

func TestDefaultPositionUnit_ZeroSupply(t *testing.T) {
	_, err := ledger.DefaultPositionUnit(new(big.Int), fixed(200))
	if err == nil {
		t.Fatal("expected error at zero supply")
	}
	if !fault.Is(err, fault.ClassPrecondition) {
		t.Errorf("expected Precondition fault, got %v", fault.ClassOf(err))
	}
}

func TestDefaultPositionUnit_RoundTripNeverOverstates(t *testing.T) {
	// unit -> notional -> unit loses at most rounding, never gains
	supply := fixed(3)
	notional := big.NewInt(1_000_000_007)

	unit, err := ledger.DefaultPositionUnit(supply, notional)
	if err != nil {
		t.Fatalf("DefaultPositionUnit failed: %v", err)
	}
	implied := ledger.DefaultTotalNotional(supply, unit)
	if implied.Cmp(notional) > 0 {
		t.Errorf("implied notional %s exceeds real notional %s", implied, notional)
	}
}

func TestCalculateDefaultEditPositionUnit_IncreaseFloors(t *testing.T) {
	// delta 10 over supply 3.0 = 3.33 base units -> floors to 3
	unit, err := ledger.CalculateDefaultEditPositionUnit(
		fixed(3), new(big.Int), big.NewInt(10), new(big.Int))
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if unit.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("got %s, want 3", unit)
	}
}

func TestCalculateDefaultEditPositionUnit_DecreaseCeils(t *testing.T) {
	// Decrease of 10 over supply 3.0 ceils to 4 per unit, so the ledger
	// releases more than proportional and never overstates what remains.
	unit, err := ledger.CalculateDefaultEditPositionUnit(
		fixed(3), big.NewInt(100), big.NewInt(90), big.NewInt(10))
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if unit.Cmp(big.NewInt(6)) != 0 {
		t.Errorf("got %s, want 6", unit)
	}
}

func TestCalculateDefaultEditPositionUnit_Underflow(t *testing.T) {
	// Decrease ceils to more than the stored unit
	_, err := ledger.CalculateDefaultEditPositionUnit(
		fixed(3), big.NewInt(10), new(big.Int), big.NewInt(3))
	if err == nil {
		t.Fatal("expected underflow error")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
}

func TestCalculateDefaultEditPositionUnit_ZeroSupply(t *testing.T) {
	_, err := ledger.CalculateDefaultEditPositionUnit(
		new(big.Int), new(big.Int), big.NewInt(10), new(big.Int))
	if err == nil {
		t.Fatal("expected error at zero supply")
	}
}

// ============================================================================
// Test: PositionLedger component enumeration
// ============================================================================

func TestPositionLedger_ComponentEnumeratedOnDefaultWrite(t *testing.T) {
	pl := ledger.NewPositionLedger()

	if err := pl.EditDefaultPosition("0xWETH", fixed(1)); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if !pl.HasComponent("0xWETH") {
		t.Error("component should be enumerated after nonzero default write")
	}
	if !pl.HasDefaultPosition("0xWETH") {
		t.Error("default position should exist")
	}
}

func TestPositionLedger_ComponentLeavesOnZeroDefault(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditDefaultPosition("0xWETH", fixed(1))

	if err := pl.EditDefaultPosition("0xWETH", new(big.Int)); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if pl.HasComponent("0xWETH") {
		t.Error("component should leave enumeration when nothing tracks it")
	}
	if pl.HasDefaultPosition("0xWETH") {
		t.Error("zeroed default position should not count as held")
	}
	// The zeroed slot still reads back as zero, not an error
	if pl.DefaultPositionRealUnit("0xWETH").Sign() != 0 {
		t.Error("zeroed unit should read as zero")
	}
}

func TestPositionLedger_ComponentStaysWhileExternalRemains(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditDefaultPosition("0xWETH", fixed(1))
	pl.EditExternalPosition("0xWETH", "0xLendingModule", fixed(2), nil)

	// Zero the default; external position keeps the component enumerated
	pl.EditDefaultPosition("0xWETH", new(big.Int))
	if !pl.HasComponent("0xWETH") {
		t.Error("component with external position must stay enumerated")
	}

	// Destroy the external position; component leaves
	if err := pl.EditExternalPosition("0xWETH", "0xLendingModule", new(big.Int), nil); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}
	if pl.HasComponent("0xWETH") {
		t.Error("component should leave after last position is destroyed")
	}
}

func TestPositionLedger_ZeroUnitExternalRejectsData(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditExternalPosition("0xWETH", "0xLendingModule", fixed(1), []byte("aux"))

	err := pl.EditExternalPosition("0xWETH", "0xLendingModule", new(big.Int), []byte("aux"))
	if err == nil {
		t.Fatal("zero-unit external position must not carry data")
	}
	if !fault.Is(err, fault.ClassPrecondition) {
		t.Errorf("expected Precondition fault, got %v", fault.ClassOf(err))
	}
}

func TestPositionLedger_NegativeExternalUnit(t *testing.T) {
	// Debt positions are negative external units
	pl := ledger.NewPositionLedger()
	pl.EditDefaultPosition("0xWETH", fixed(5))
	if err := pl.EditExternalPosition("0xWETH", "0xBorrowModule", fixed(-2), nil); err != nil {
		t.Fatalf("negative external unit should be allowed: %v", err)
	}

	cumulative := pl.CumulativeComponentRealUnit("0xWETH")
	if cumulative.Cmp(fixed(3)) != 0 {
		t.Errorf("cumulative unit: got %s, want %s", cumulative, fixed(3))
	}
}

func TestPositionLedger_RemoveExternalModuleClearsData(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditExternalPosition("0xWETH", "0xLendingModule", fixed(1), []byte("aux"))

	if err := pl.RemoveExternalPositionModule("0xWETH", "0xLendingModule"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if pl.ExternalPositionData("0xWETH", "0xLendingModule") != nil {
		t.Error("data must be cleared with the position")
	}
	if pl.ExternalPositionRealUnit("0xWETH", "0xLendingModule").Sign() != 0 {
		t.Error("unit must be cleared with the position")
	}
}

// ============================================================================
// Test: Virtual units and the multiplier
// ============================================================================

func TestPositionLedger_VirtualUnitTracksMultiplier(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditDefaultPosition("0xWETH", fixed(2))

	// Identity multiplier: virtual == real
	if pl.DefaultPositionVirtualUnit("0xWETH").Cmp(fixed(2)) != 0 {
		t.Error("virtual unit should equal real unit at identity multiplier")
	}

	// 0.5 multiplier halves the virtual unit, real unit untouched
	half := new(big.Int).Div(fpmath.PreciseUnit, big.NewInt(2))
	if err := pl.EditPositionMultiplier(half); err != nil {
		t.Fatalf("multiplier edit failed: %v", err)
	}

	if pl.DefaultPositionVirtualUnit("0xWETH").Cmp(fixed(1)) != 0 {
		t.Error("virtual unit should be halved")
	}
	if pl.DefaultPositionRealUnit("0xWETH").Cmp(fixed(2)) != 0 {
		t.Error("real unit must not change with the multiplier")
	}
}

func TestPositionLedger_MultiplierMustStayPositive(t *testing.T) {
	pl := ledger.NewPositionLedger()

	if err := pl.EditPositionMultiplier(new(big.Int)); err == nil {
		t.Error("zero multiplier must be rejected")
	}
	if err := pl.EditPositionMultiplier(big.NewInt(-1)); err == nil {
		t.Error("negative multiplier must be rejected")
	}
}

func TestPositionLedger_PositionsReport(t *testing.T) {
	pl := ledger.NewPositionLedger()
	pl.EditDefaultPosition("0xWETH", fixed(2))
	pl.EditExternalPosition("0xWETH", "0xLendingModule", fixed(1), []byte("aux"))
	pl.EditDefaultPosition("0xUSDC", fixed(3))

	positions := pl.Positions()
	if len(positions) != 3 {
		t.Fatalf("got %d positions, want 3", len(positions))
	}

	// Default before externals within a component
	if positions[0].Component != "0xWETH" || positions[0].Module != "" {
		t.Errorf("first position should be WETH default, got %+v", positions[0])
	}
	if positions[1].Module != "0xLendingModule" {
		t.Errorf("second position should be the external, got %+v", positions[1])
	}
}

// ============================================================================
// Test: Basket supply and modules
// ============================================================================

func TestBasket_MintBurn(t *testing.T) {
	b := ledger.NewBasket(uuid.New(), "WEB3")

	if err := b.Mint(fixed(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := b.Burn(fixed(40)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if b.TotalSupply().Cmp(fixed(60)) != 0 {
		t.Errorf("supply: got %s, want %s", b.TotalSupply(), fixed(60))
	}
}

func TestBasket_BurnPastZero(t *testing.T) {
	b := ledger.NewBasket(uuid.New(), "WEB3")
	b.Mint(fixed(10))

	err := b.Burn(fixed(11))
	if err == nil {
		t.Fatal("burn past zero must fail, never clamp")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
	if b.TotalSupply().Cmp(fixed(10)) != 0 {
		t.Error("failed burn must leave supply unchanged")
	}
}

func TestBasket_ModuleLifecycle(t *testing.T) {
	b := ledger.NewBasket(uuid.New(), "WEB3")

	b.EnableModule("0xModA")
	b.EnableModule("0xModB")
	b.EnableModule("0xModA") // idempotent

	mods := b.Modules()
	if len(mods) != 2 || mods[0] != "0xModA" || mods[1] != "0xModB" {
		t.Errorf("modules: got %v", mods)
	}

	if err := b.DisableModule("0xModA"); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if b.IsModuleEnabled("0xModA") {
		t.Error("module should be disabled")
	}

	if err := b.DisableModule("0xModA"); err == nil {
		t.Error("disabling a module twice must fail")
	}
}

// ============================================================================
// Test: CalculateAndEditDefaultPosition (airdrop reconciliation)
// ============================================================================

func TestBasket_AirdropFoldsIntoUnit(t *testing.T) {
	// 100 supply holding 200 WETH at unit 2.0; 30 WETH airdrop arrives.
	// New unit = 2.0 + 30/100 = 2.3
	b := ledger.NewBasket(uuid.New(), "WEB3")
	b.Mint(fixed(100))
	b.Ledger.EditDefaultPosition("0xWETH", fixed(2))

	oracle := &stubOracle{balances: map[ledger.Address]*big.Int{
		"0xWETH": fixed(230),
	}}

	newUnit, balance, prevUnit, err := b.CalculateAndEditDefaultPosition(
		oracle, "0xWETH", b.TotalSupply(), fixed(200))
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	want := new(big.Int).Add(fixed(2), new(big.Int).Div(fixed(3), big.NewInt(10)))
	if newUnit.Cmp(want) != 0 {
		t.Errorf("new unit: got %s, want %s", newUnit, want)
	}
	if balance.Cmp(fixed(230)) != 0 {
		t.Errorf("balance: got %s, want %s", balance, fixed(230))
	}
	if prevUnit.Cmp(fixed(2)) != 0 {
		t.Errorf("prev unit: got %s, want %s", prevUnit, fixed(2))
	}
	if b.Ledger.DefaultPositionRealUnit("0xWETH").Cmp(want) != 0 {
		t.Error("ledger should store the new unit")
	}
}
