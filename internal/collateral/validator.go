package collateral

import (
	"math/big"

	"github.com/google/uuid"

	"BasketCore/internal/fault"
	"BasketCore/internal/ledger"
)

// Validator runs the collateralization invariant checks that bracket any
// hook call that can move component balances. Checks are read-only; a
// violation is fatal and must abort the whole operation, because the ledger
// math assumes implied backing never exceeds measured balances.
type Validator struct {
	oracle ledger.BalanceOracle
}

func NewValidator(oracle ledger.BalanceOracle) *Validator {
	return &Validator{oracle: oracle}
}

// SnapshotBalance records a component's measured balance before an external
// call.
func (v *Validator) SnapshotBalance(basketID uuid.UUID, component ledger.Address) (*big.Int, error) {
	balance, err := v.oracle.BalanceOf(basketID, component)
	if err != nil {
		return nil, fault.Preconditionf("snapshot %s balance: %w", component, err)
	}
	return balance, nil
}

// ValidateTransferIn asserts that after the bracketed call the component
// balance grew by at least componentQuantity over the snapshot. Guards
// against a hook that claims to deposit a component but does not actually
// transfer it in.
func (v *Validator) ValidateTransferIn(
	basketID uuid.UUID,
	component ledger.Address,
	initialBalance *big.Int,
	componentQuantity *big.Int,
) error {
	current, err := v.oracle.BalanceOf(basketID, component)
	if err != nil {
		return fault.Preconditionf("measure %s balance: %w", component, err)
	}

	required := new(big.Int).Add(initialBalance, componentQuantity)
	if current.Cmp(required) < 0 {
		return fault.Invariantf("undercollateralized transfer-in of %s: balance %s, need %s",
			component, current, required)
	}
	return nil
}

// ValidateTransferOut asserts that after a redemption-driven external call
// the remaining balance still covers the per-unit backing the ledger is
// about to record: current >= newDefaultUnit * finalSupply / PreciseUnit.
func (v *Validator) ValidateTransferOut(
	basketID uuid.UUID,
	component ledger.Address,
	newDefaultUnit *big.Int,
	finalSupply *big.Int,
) error {
	current, err := v.oracle.BalanceOf(basketID, component)
	if err != nil {
		return fault.Preconditionf("measure %s balance: %w", component, err)
	}

	implied := ledger.DefaultTotalNotional(finalSupply, newDefaultUnit)
	if current.Cmp(implied) < 0 {
		return fault.Invariantf("undercollateralized transfer-out of %s: balance %s below implied backing %s",
			component, current, implied)
	}
	return nil
}
