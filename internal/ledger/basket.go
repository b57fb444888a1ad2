package ledger

import (
	"math/big"

	"github.com/google/uuid"

	"BasketCore/internal/fault"
)

// BalanceOracle reports the measured balance of a component actually held by
// a basket instance. Measured balances can diverge from bookkeeping
// (fee-on-transfer tokens, airdrops, interest accrual); the ledger folds the
// divergence back in via CalculateAndEditDefaultPosition.
type BalanceOracle interface {
	BalanceOf(basketID uuid.UUID, component Address) (*big.Int, error)
}

// Basket is one basket-token instance: identity, outstanding supply, the
// position ledger it exclusively owns, and the set of enabled modules.
// Supply is mutated only by the issuance/redemption path and fee accrual.
type Basket struct {
	ID     uuid.UUID
	Symbol string

	Ledger *PositionLedger

	totalSupply *big.Int
	modules     map[Address]bool
	moduleOrder []Address
}

func NewBasket(id uuid.UUID, symbol string) *Basket {
	return &Basket{
		ID:          id,
		Symbol:      symbol,
		Ledger:      NewPositionLedger(),
		totalSupply: new(big.Int),
		modules:     make(map[Address]bool),
	}
}

// TotalSupply returns a copy of the outstanding basket-token supply.
func (b *Basket) TotalSupply() *big.Int {
	return new(big.Int).Set(b.totalSupply)
}

// Mint increases supply. Only the issuance path and fee accrual call this.
func (b *Basket) Mint(quantity *big.Int) error {
	if quantity == nil || quantity.Sign() < 0 {
		return fault.Arithmeticf("mint quantity must be non-negative, got %v", quantity)
	}
	b.totalSupply.Add(b.totalSupply, quantity)
	return nil
}

// Burn decreases supply. Burning past zero is an arithmetic fault, never a
// clamp.
func (b *Basket) Burn(quantity *big.Int) error {
	if quantity == nil || quantity.Sign() < 0 {
		return fault.Arithmeticf("burn quantity must be non-negative, got %v", quantity)
	}
	if b.totalSupply.Cmp(quantity) < 0 {
		return fault.Arithmeticf("burn %s exceeds supply %s", quantity, b.totalSupply)
	}
	b.totalSupply.Sub(b.totalSupply, quantity)
	return nil
}

// EnableModule authorizes a module to mutate this basket's ledger.
func (b *Basket) EnableModule(module Address) {
	if !b.modules[module] {
		b.modules[module] = true
		b.moduleOrder = append(b.moduleOrder, module)
	}
}

// DisableModule revokes a module's authorization.
func (b *Basket) DisableModule(module Address) error {
	if !b.modules[module] {
		return fault.Preconditionf("module %s not enabled on basket %s", module, b.ID)
	}
	delete(b.modules, module)
	for i, m := range b.moduleOrder {
		if m == module {
			b.moduleOrder = append(b.moduleOrder[:i], b.moduleOrder[i+1:]...)
			break
		}
	}
	return nil
}

// IsModuleEnabled reports whether the module may mutate this basket.
func (b *Basket) IsModuleEnabled(module Address) bool {
	return b.modules[module]
}

// Modules returns enabled modules in enablement order.
func (b *Basket) Modules() []Address {
	out := make([]Address, len(b.moduleOrder))
	copy(out, b.moduleOrder)
	return out
}

// CalculateAndEditDefaultPosition reads the component's current measured
// balance, treats it as the new total notional, derives the new default
// position unit from the delta against previousComponentBalance, and writes
// it. This is how arbitrary external balance changes get folded back into
// the ledger without the ledger knowing the cause.
//
// Returns (newUnit, currentBalance, previousUnit).
func (b *Basket) CalculateAndEditDefaultPosition(
	oracle BalanceOracle,
	component Address,
	supply *big.Int,
	previousComponentBalance *big.Int,
) (*big.Int, *big.Int, *big.Int, error) {
	currentBalance, err := oracle.BalanceOf(b.ID, component)
	if err != nil {
		return nil, nil, nil, fault.Preconditionf("measure %s balance: %w", component, err)
	}

	prevUnit := b.Ledger.DefaultPositionRealUnit(component)

	newUnit, err := CalculateDefaultEditPositionUnit(supply, previousComponentBalance, currentBalance, prevUnit)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := b.Ledger.EditDefaultPosition(component, newUnit); err != nil {
		return nil, nil, nil, err
	}

	return newUnit, currentBalance, prevUnit, nil
}
