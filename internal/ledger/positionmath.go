package ledger

import (
	"math/big"

	"BasketCore/internal/fault"
	fpmath "BasketCore/internal/math"
)

// DefaultTotalNotional converts a per-basket-unit position unit into the
// total notional implied by the given supply: supply * unit / PreciseUnit,
// rounded down so the ledger never claims more than it can prove.
func DefaultTotalNotional(supply, positionUnit *big.Int) *big.Int {
	return fpmath.PreciseMul(supply, positionUnit, fpmath.RoundDownToProtocol)
}

// DefaultPositionUnit is the inverse of DefaultTotalNotional:
// totalNotional * PreciseUnit / supply, rounded down. The pair are exact
// inverses only up to rounding loss; callers must tolerate one unit of
// drift per call, always in the understating direction.
func DefaultPositionUnit(supply, totalNotional *big.Int) (*big.Int, error) {
	if supply.Sign() == 0 {
		return nil, fault.Preconditionf("position unit undefined at zero supply")
	}
	return fpmath.PreciseDiv(totalNotional, supply, fpmath.RoundDownToProtocol)
}

// CalculateDefaultEditPositionUnit derives the new position unit after a
// component's measured notional moved from preNotional to postNotional.
//
// The rounding is asymmetric on purpose: unit increases round down and unit
// decreases round up, so the ledger-implied total notional can never exceed
// the real measured balance. Rounding error only ever works in the basket's
// favor.
func CalculateDefaultEditPositionUnit(supply, preNotional, postNotional, prePositionUnit *big.Int) (*big.Int, error) {
	if supply.Sign() == 0 {
		return nil, fault.Preconditionf("cannot edit position unit at zero supply")
	}

	delta := new(big.Int)
	unit := new(big.Int)

	if postNotional.Cmp(preNotional) >= 0 {
		delta.Sub(postNotional, preNotional)
		unitDelta, err := fpmath.PreciseDiv(delta, supply, fpmath.RoundDownToProtocol)
		if err != nil {
			return nil, err
		}
		unit.Add(prePositionUnit, unitDelta)
		return unit, nil
	}

	delta.Sub(preNotional, postNotional)
	unitDelta, err := fpmath.PreciseDiv(delta, supply, fpmath.RoundUpToProtocol)
	if err != nil {
		return nil, err
	}
	unit.Sub(prePositionUnit, unitDelta)
	if unit.Sign() < 0 {
		return nil, fault.Arithmeticf("position unit underflow: decrease %s exceeds unit %s",
			unitDelta, prePositionUnit)
	}
	return unit, nil
}
