package module

import (
	"math/big"

	"BasketCore/internal/fault"
	"BasketCore/internal/ledger"
)

// Module is an external protocol integration registered with the core.
// Capabilities are the closed set of hook interfaces below, discovered by
// type assertion; a module implements only the hooks it needs. Every hook
// invocation is bracketed by collateralization checks, so a hook's effects
// on component balances are bounded rather than trusted.
type Module interface {
	Address() ledger.Address
}

// IssueHook runs during issuance, after quantities are computed and before
// ledger writes commit. The hook performs the reserve transfer-in.
type IssueHook interface {
	OnIssue(basket *ledger.Basket, component ledger.Address, quantity *big.Int) error
}

// RedeemHook runs during redemption and performs the reserve transfer-out.
type RedeemHook interface {
	OnRedeem(basket *ledger.Basket, component ledger.Address, quantity *big.Int) error
}

// ComponentHook observes default position unit rewrites (balance syncs).
type ComponentHook interface {
	OnComponentEdit(basket *ledger.Basket, component ledger.Address, newRealUnit *big.Int) error
}

// Registry is the explicit module registry. Registration order is preserved
// so hook invocation order is deterministic.
type Registry struct {
	modules map[ledger.Address]Module
	order   []ledger.Address
}

func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[ledger.Address]Module),
	}
}

// Register adds a module. Re-registering an address is a precondition fault.
func (r *Registry) Register(m Module) error {
	addr := m.Address()
	if _, ok := r.modules[addr]; ok {
		return fault.Preconditionf("module %s already registered", addr)
	}
	r.modules[addr] = m
	r.order = append(r.order, addr)
	return nil
}

// Get returns the module registered at addr.
func (r *Registry) Get(addr ledger.Address) (Module, bool) {
	m, ok := r.modules[addr]
	return m, ok
}

// Addresses returns registered module addresses in registration order.
func (r *Registry) Addresses() []ledger.Address {
	out := make([]ledger.Address, len(r.order))
	copy(out, r.order)
	return out
}
