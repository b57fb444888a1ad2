package issuance_test

import (
	"math/big"
	"testing"

	"BasketCore/internal/fault"
	"BasketCore/internal/issuance"
	fpmath "BasketCore/internal/math"
)

func fixed(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), fpmath.PreciseUnit)
}

func pct(hundredths int64) *big.Int {
	// hundredths of a percent: pct(100) = 1%
	return new(big.Int).Div(
		new(big.Int).Mul(big.NewInt(hundredths), fpmath.PreciseUnit),
		big.NewInt(10_000),
	)
}

var scale18 = new(big.Int).Set(fpmath.PreciseUnit)

// ============================================================================
// Test: ComputeIssueQuote
// ============================================================================

func TestComputeIssueQuote_ZeroFeesAtPar(t *testing.T) {
	// 100 supply valued at 1.0 reserve each; deposit 10 reserve -> mint 10
	quote, err := issuance.ComputeIssueQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.BasketQuantity.Cmp(fixed(10)) != 0 {
		t.Errorf("mint: got %s, want %s", quote.BasketQuantity, fixed(10))
	}
	if quote.NewSupply.Cmp(fixed(110)) != 0 {
		t.Errorf("new supply: got %s, want %s", quote.NewSupply, fixed(110))
	}
	if quote.PostFeeQuantity.Cmp(fixed(10)) != 0 {
		t.Errorf("post-fee: got %s, want %s", quote.PostFeeQuantity, fixed(10))
	}
}

func TestComputeIssueQuote_FirstIssuance(t *testing.T) {
	// Zero supply: mint at the quoted valuation directly. 10 reserve at
	// valuation 2.0 -> 5 basket units.
	quote, err := issuance.ComputeIssueQuote(
		new(big.Int), fixed(2), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.BasketQuantity.Cmp(fixed(5)) != 0 {
		t.Errorf("mint: got %s, want %s", quote.BasketQuantity, fixed(5))
	}
}

func TestComputeIssueQuote_FeesOffGross(t *testing.T) {
	// 1% manager + 1% protocol off the gross 10 -> post-fee 9.8
	fees := issuance.Fees{
		ManagerFee:  pct(100),
		ProtocolFee: pct(100),
		Premium:     new(big.Int),
	}

	quote, err := issuance.ComputeIssueQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		fees, fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	wantPostFee := new(big.Int).Sub(fixed(10), new(big.Int).Div(fixed(2), big.NewInt(10)))
	if quote.PostFeeQuantity.Cmp(wantPostFee) != 0 {
		t.Errorf("post-fee: got %s, want %s", quote.PostFeeQuantity, wantPostFee)
	}
	// Mint matches the post-fee quantity at par with no premium
	if quote.BasketQuantity.Cmp(wantPostFee) != 0 {
		t.Errorf("mint: got %s, want %s", quote.BasketQuantity, wantPostFee)
	}
}

func TestComputeIssueQuote_PremiumDilutesEntrant(t *testing.T) {
	// A 1% premium means the entrant mints against the post-premium quantity
	// while the full post-fee deposit enters the basket: existing holders
	// capture the difference.
	fees := issuance.Fees{
		ManagerFee:  new(big.Int),
		ProtocolFee: new(big.Int),
		Premium:     pct(100),
	}

	quote, err := issuance.ComputeIssueQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		fees, fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.BasketQuantity.Cmp(quote.PostFeeAndPremiumQuantity) >= 0 {
		t.Errorf("mint %s should be below the post-premium quantity %s",
			quote.BasketQuantity, quote.PostFeeAndPremiumQuantity)
	}
	if quote.BasketQuantity.Sign() <= 0 {
		t.Error("mint must stay positive")
	}
}

func TestComputeIssueQuote_SixDecimalReserve(t *testing.T) {
	// 10 units of a 6-decimal reserve (10_000_000 base units) at par
	scale6 := big.NewInt(1_000_000)
	deposit := big.NewInt(10_000_000)

	quote, err := issuance.ComputeIssueQuote(
		fixed(100), fixed(1), deposit, scale6,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.BasketQuantity.Cmp(fixed(10)) != 0 {
		t.Errorf("mint: got %s, want %s", quote.BasketQuantity, fixed(10))
	}
}

func TestComputeIssueQuote_SlippageRejection(t *testing.T) {
	minOut := fixed(11) // asks for more than the 10 the deposit buys

	_, err := issuance.ComputeIssueQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, minOut)
	if err == nil {
		t.Fatal("expected slippage rejection")
	}
	if !fault.Is(err, fault.ClassPolicy) {
		t.Errorf("slippage must be a Policy fault, got %v", fault.ClassOf(err))
	}
}

func TestComputeIssueQuote_RejectsNonPositiveInputs(t *testing.T) {
	cases := []struct {
		name      string
		quantity  *big.Int
		valuation *big.Int
	}{
		{"zero quantity", new(big.Int), fixed(1)},
		{"negative quantity", fixed(-1), fixed(1)},
		{"zero valuation", fixed(10), new(big.Int)},
	}

	for _, tc := range cases {
		_, err := issuance.ComputeIssueQuote(
			fixed(100), tc.valuation, tc.quantity, scale18,
			issuance.ZeroFees(), fpmath.PreciseUnit, nil)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

// ============================================================================
// Test: ComputeRedeemQuote
// ============================================================================

func TestComputeRedeemQuote_ZeroFeesAtPar(t *testing.T) {
	quote, err := issuance.ComputeRedeemQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.ReserveQuantity.Cmp(fixed(10)) != 0 {
		t.Errorf("reserve out: got %s, want %s", quote.ReserveQuantity, fixed(10))
	}
	if quote.NewSupply.Cmp(fixed(90)) != 0 {
		t.Errorf("new supply: got %s, want %s", quote.NewSupply, fixed(90))
	}
}

func TestComputeRedeemQuote_ExceedsSupply(t *testing.T) {
	_, err := issuance.ComputeRedeemQuote(
		fixed(100), fixed(1), fixed(101), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil, nil)
	if err == nil {
		t.Fatal("expected error for redeem exceeding supply")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
}

func TestComputeRedeemQuote_SupplyFloor(t *testing.T) {
	_, err := issuance.ComputeRedeemQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil, fixed(95))
	if err == nil {
		t.Fatal("expected supply floor rejection")
	}
	if !fault.Is(err, fault.ClassPolicy) {
		t.Errorf("supply floor must be a Policy fault, got %v", fault.ClassOf(err))
	}
}

func TestComputeRedeemQuote_SlippageRejection(t *testing.T) {
	_, err := issuance.ComputeRedeemQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, fixed(11), nil)
	if err == nil {
		t.Fatal("expected slippage rejection")
	}
	if !fault.Is(err, fault.ClassPolicy) {
		t.Errorf("slippage must be a Policy fault, got %v", fault.ClassOf(err))
	}
}

func TestComputeRedeemQuote_FeesRoundAgainstRedeemer(t *testing.T) {
	fees := issuance.Fees{
		ManagerFee:  pct(100),
		ProtocolFee: new(big.Int),
		Premium:     pct(100),
	}

	quote, err := issuance.ComputeRedeemQuote(
		fixed(100), fixed(1), fixed(10), scale18,
		fees, fpmath.PreciseUnit, nil, nil)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.ReserveQuantity.Cmp(quote.GrossNotional) >= 0 {
		t.Error("fees must reduce the reserve payout below gross")
	}
}

// ============================================================================
// Test: Issue/redeem round trip
// ============================================================================

func TestRoundTrip_NeverProfitsTheCaller(t *testing.T) {
	// Issue with an awkward quantity, immediately redeem the minted amount.
	// Rounding at every step falls toward the basket, so the reserve returned
	// can never exceed the reserve deposited.
	supply := fixed(100)
	valuation := fixed(1)
	deposit := big.NewInt(1_234_567_891_234_567_891)

	issueQuote, err := issuance.ComputeIssueQuote(
		supply, valuation, deposit, scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	redeemQuote, err := issuance.ComputeRedeemQuote(
		issueQuote.NewSupply, valuation, issueQuote.BasketQuantity, scale18,
		issuance.ZeroFees(), fpmath.PreciseUnit, nil, nil)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	if redeemQuote.ReserveQuantity.Cmp(deposit) > 0 {
		t.Errorf("round trip returned %s from a deposit of %s",
			redeemQuote.ReserveQuantity, deposit)
	}
}

// ============================================================================
// Test: Expected position units
// ============================================================================

func TestExpectedIssuePositionUnit(t *testing.T) {
	// 100 supply at unit 2.0 (200 notional), deposit 20, new supply 110:
	// new unit = 220 / 110 = 2.0
	unit, err := issuance.ExpectedIssuePositionUnit(
		fixed(100), fixed(2), fixed(20), fpmath.PreciseUnit, fixed(110))
	if err != nil {
		t.Fatalf("expected unit failed: %v", err)
	}
	if unit.Cmp(fixed(2)) != 0 {
		t.Errorf("got %s, want %s", unit, fixed(2))
	}
}

func TestExpectedIssuePositionUnit_ZeroNewSupply(t *testing.T) {
	_, err := issuance.ExpectedIssuePositionUnit(
		new(big.Int), new(big.Int), fixed(10), fpmath.PreciseUnit, new(big.Int))
	if err == nil {
		t.Fatal("expected error at zero post-issue supply")
	}
}

func TestExpectedRedeemPositionUnit_FullUnwind(t *testing.T) {
	// Final redemption drives supply to zero: unit collapses to zero
	unit, err := issuance.ExpectedRedeemPositionUnit(
		fixed(100), fixed(2), fixed(200), fpmath.PreciseUnit, new(big.Int))
	if err != nil {
		t.Fatalf("expected unit failed: %v", err)
	}
	if unit.Sign() != 0 {
		t.Errorf("got %s, want 0", unit)
	}
}

func TestExpectedRedeemPositionUnit_WithdrawExceedsPosition(t *testing.T) {
	_, err := issuance.ExpectedRedeemPositionUnit(
		fixed(100), fixed(2), fixed(201), fpmath.PreciseUnit, fixed(90))
	if err == nil {
		t.Fatal("expected error when withdrawal exceeds position notional")
	}
	if !fault.Is(err, fault.ClassArithmetic) {
		t.Errorf("expected Arithmetic fault, got %v", fault.ClassOf(err))
	}
}
