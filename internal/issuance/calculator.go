package issuance

import (
	"math/big"

	"BasketCore/internal/fault"
	"BasketCore/internal/ledger"
	fpmath "BasketCore/internal/math"
)

// Fees are the 18-decimal percentages applied to issuance and redemption.
// Manager and protocol fees are each taken off the gross quantity, not
// compounded. The premium dilutes the entrant/exiter in favor of existing
// holders.
type Fees struct {
	ManagerFee  *big.Int
	ProtocolFee *big.Int
	Premium     *big.Int
}

// ZeroFees is the all-zero fee schedule.
func ZeroFees() Fees {
	return Fees{
		ManagerFee:  new(big.Int),
		ProtocolFee: new(big.Int),
		Premium:     new(big.Int),
	}
}

// Policy is the per-basket issuance configuration.
type Policy struct {
	Fees Fees

	// SupplyFloor rejects redemptions that would leave less supply
	// outstanding. Nil disables the check.
	SupplyFloor *big.Int
}

// IssueQuote is the result of the issuance quantity math. All reserve
// quantities are in the reserve asset's base units.
type IssueQuote struct {
	GrossReserveQuantity      *big.Int
	PostFeeQuantity           *big.Int
	PostFeeAndPremiumQuantity *big.Int
	BasketQuantity            *big.Int
	NewSupply                 *big.Int

	// NewMultiplier is carried so supply-decrease edge cases can lower it
	// without changing the commit path; normal issuance leaves it untouched.
	NewMultiplier *big.Int
}

// RedeemQuote is the result of the redemption quantity math.
type RedeemQuote struct {
	BasketQuantity            *big.Int
	GrossNotional             *big.Int // 18-decimal reserve notional
	PostFeeAndPremiumNotional *big.Int
	ReserveQuantity           *big.Int // base units returned to the redeemer
	NewSupply                 *big.Int
	NewMultiplier             *big.Int
}

// ComputeIssueQuote converts a gross reserve deposit into the basket
// quantity to mint.
//
// Fee order: manager and protocol fees each off the gross quantity, then the
// premium off the post-fee quantity. The mint solves
//
//	mint = nPFP * supply / (supply*valuation + nPF - nPFP)
//
// with quantities normalized to 18 decimals by reserveScale. Keeping nPF in
// the denominator while minting against nPFP is what makes the premium
// accrue to existing holders instead of being paid out separately.
func ComputeIssueQuote(
	supply *big.Int,
	valuation *big.Int,
	reserveQuantity *big.Int,
	reserveScale *big.Int,
	fees Fees,
	multiplier *big.Int,
	minBasketOut *big.Int,
) (*IssueQuote, error) {
	if reserveQuantity == nil || reserveQuantity.Sign() <= 0 {
		return nil, fault.Preconditionf("issue quantity must be positive, got %v", reserveQuantity)
	}
	if valuation == nil || valuation.Sign() <= 0 {
		return nil, fault.Preconditionf("valuation must be positive, got %v", valuation)
	}
	if reserveScale == nil || reserveScale.Sign() <= 0 {
		return nil, fault.Preconditionf("reserve scale must be positive, got %v", reserveScale)
	}

	// Fees off gross, premium off post-fee. Fee amounts round down so the
	// entrant's post-fee quantity is never understated by more than the
	// rounding loss on the fee itself.
	managerFee := fpmath.PreciseMul(reserveQuantity, fees.ManagerFee, fpmath.RoundDownToProtocol)
	protocolFee := fpmath.PreciseMul(reserveQuantity, fees.ProtocolFee, fpmath.RoundDownToProtocol)

	postFee := new(big.Int).Sub(reserveQuantity, managerFee)
	postFee.Sub(postFee, protocolFee)
	if postFee.Sign() <= 0 {
		return nil, fault.Preconditionf("fees consume entire issue quantity %s", reserveQuantity)
	}

	premium := fpmath.PreciseMul(postFee, fees.Premium, fpmath.RoundDownToProtocol)
	postFeePremium := new(big.Int).Sub(postFee, premium)
	if postFeePremium.Sign() <= 0 {
		return nil, fault.Preconditionf("premium consumes entire post-fee quantity %s", postFee)
	}

	// Normalize to 18 decimals.
	nPF, err := fpmath.PreciseDiv(postFee, reserveScale, fpmath.RoundDownToProtocol)
	if err != nil {
		return nil, err
	}
	nPFP, err := fpmath.PreciseDiv(postFeePremium, reserveScale, fpmath.RoundDownToProtocol)
	if err != nil {
		return nil, err
	}

	var mint *big.Int
	if supply.Sign() == 0 {
		// First issuance: mint at the quoted valuation directly.
		mint, err = fpmath.PreciseDiv(nPFP, valuation, fpmath.RoundDownToProtocol)
		if err != nil {
			return nil, err
		}
	} else {
		denominator := fpmath.PreciseMul(supply, valuation, fpmath.RoundDownToProtocol)
		denominator.Add(denominator, nPF)
		denominator.Sub(denominator, nPFP)
		if denominator.Sign() <= 0 {
			return nil, fault.Arithmeticf("degenerate issue denominator %s", denominator)
		}
		mint, err = fpmath.MulDiv(nPFP, supply, denominator, fpmath.RoundDownToProtocol)
		if err != nil {
			return nil, err
		}
	}

	if minBasketOut != nil && mint.Cmp(minBasketOut) < 0 {
		return nil, fault.Policyf("mint quantity %s below minimum %s", mint, minBasketOut)
	}

	return &IssueQuote{
		GrossReserveQuantity:      new(big.Int).Set(reserveQuantity),
		PostFeeQuantity:           postFee,
		PostFeeAndPremiumQuantity: postFeePremium,
		BasketQuantity:            mint,
		NewSupply:                 new(big.Int).Add(supply, mint),
		NewMultiplier:             new(big.Int).Set(multiplier),
	}, nil
}

// ComputeRedeemQuote converts a basket quantity to burn into the reserve
// amount returned. Premium and fees are subtracted from notional before the
// reserve amount is computed, mirroring issuance with the sign reversed:
// fee and premium amounts round up against the redeemer, the returned
// reserve rounds down.
func ComputeRedeemQuote(
	supply *big.Int,
	valuation *big.Int,
	basketQuantity *big.Int,
	reserveScale *big.Int,
	fees Fees,
	multiplier *big.Int,
	minReserveOut *big.Int,
	supplyFloor *big.Int,
) (*RedeemQuote, error) {
	if basketQuantity == nil || basketQuantity.Sign() <= 0 {
		return nil, fault.Preconditionf("redeem quantity must be positive, got %v", basketQuantity)
	}
	if valuation == nil || valuation.Sign() <= 0 {
		return nil, fault.Preconditionf("valuation must be positive, got %v", valuation)
	}
	if reserveScale == nil || reserveScale.Sign() <= 0 {
		return nil, fault.Preconditionf("reserve scale must be positive, got %v", reserveScale)
	}
	if supply.Cmp(basketQuantity) < 0 {
		return nil, fault.Arithmeticf("redeem %s exceeds supply %s", basketQuantity, supply)
	}

	newSupply := new(big.Int).Sub(supply, basketQuantity)
	if supplyFloor != nil && newSupply.Cmp(supplyFloor) < 0 {
		return nil, fault.Policyf("redemption would leave supply %s below floor %s", newSupply, supplyFloor)
	}

	gross := fpmath.PreciseMul(basketQuantity, valuation, fpmath.RoundDownToProtocol)

	managerFee := fpmath.PreciseMul(gross, fees.ManagerFee, fpmath.RoundUpToProtocol)
	protocolFee := fpmath.PreciseMul(gross, fees.ProtocolFee, fpmath.RoundUpToProtocol)

	postFee := new(big.Int).Sub(gross, managerFee)
	postFee.Sub(postFee, protocolFee)
	if postFee.Sign() < 0 {
		return nil, fault.Preconditionf("fees exceed redemption notional %s", gross)
	}

	premium := fpmath.PreciseMul(postFee, fees.Premium, fpmath.RoundUpToProtocol)
	postFeePremium := new(big.Int).Sub(postFee, premium)
	if postFeePremium.Sign() < 0 {
		return nil, fault.Preconditionf("premium exceeds post-fee notional %s", postFee)
	}

	// Denormalize to reserve base units, rounding the payout down.
	reserveOut := fpmath.PreciseMul(postFeePremium, reserveScale, fpmath.RoundDownToProtocol)

	if minReserveOut != nil && reserveOut.Cmp(minReserveOut) < 0 {
		return nil, fault.Policyf("reserve out %s below minimum %s", reserveOut, minReserveOut)
	}

	return &RedeemQuote{
		BasketQuantity:            new(big.Int).Set(basketQuantity),
		GrossNotional:             gross,
		PostFeeAndPremiumNotional: postFeePremium,
		ReserveQuantity:           reserveOut,
		NewSupply:                 newSupply,
		NewMultiplier:             new(big.Int).Set(multiplier),
	}, nil
}

// ExpectedIssuePositionUnit derives the reserve component's new default real
// unit after an issuance deposited depositNotional (base units, post-fee).
// The new notional round-trips through the multiplier with floor rounding at
// every step, so the virtual unit reported externally never overstates real
// backing.
func ExpectedIssuePositionUnit(
	prevSupply *big.Int,
	prevUnit *big.Int,
	depositNotional *big.Int,
	multiplier *big.Int,
	newSupply *big.Int,
) (*big.Int, error) {
	if newSupply.Sign() == 0 {
		return nil, fault.Preconditionf("issue position unit undefined at zero post-issue supply")
	}

	newNotional := ledger.DefaultTotalNotional(prevSupply, prevUnit)
	newNotional.Add(newNotional, depositNotional)

	virtual := fpmath.PreciseMul(newNotional, multiplier, fpmath.RoundDownToProtocol)
	real, err := fpmath.PreciseDiv(virtual, multiplier, fpmath.RoundDownToProtocol)
	if err != nil {
		return nil, err
	}

	return ledger.DefaultPositionUnit(newSupply, real)
}

// ExpectedRedeemPositionUnit derives the reserve component's new default
// real unit after withdrawNotional (base units) leaves the basket. The
// notional decrease is exact; the final unit floors down to protect the
// remaining holders.
func ExpectedRedeemPositionUnit(
	prevSupply *big.Int,
	prevUnit *big.Int,
	withdrawNotional *big.Int,
	multiplier *big.Int,
	newSupply *big.Int,
) (*big.Int, error) {
	newNotional := ledger.DefaultTotalNotional(prevSupply, prevUnit)
	newNotional.Sub(newNotional, withdrawNotional)
	if newNotional.Sign() < 0 {
		return nil, fault.Arithmeticf("withdraw notional %s exceeds position notional", withdrawNotional)
	}

	if newSupply.Sign() == 0 {
		// Final redemption: position fully unwound.
		return new(big.Int), nil
	}

	virtual := fpmath.PreciseMul(newNotional, multiplier, fpmath.RoundDownToProtocol)
	real, err := fpmath.PreciseDiv(virtual, multiplier, fpmath.RoundDownToProtocol)
	if err != nil {
		return nil, err
	}

	return ledger.DefaultPositionUnit(newSupply, real)
}
