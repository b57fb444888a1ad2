package ledger

import (
	"math/big"

	"BasketCore/internal/fault"
	fpmath "BasketCore/internal/math"
)

// Address identifies an external asset or module contract.
type Address string

// ExternalPosition is component notional held through another protocol,
// tracked under the controlling module. Unit may be negative (borrowed/debt
// notional). Data is module-defined auxiliary state, opaque to the ledger.
type ExternalPosition struct {
	Unit *big.Int
	Data []byte
}

// Position is a reported (virtual-unit) position, default or external.
type Position struct {
	Component Address
	Module    Address // empty for the default position
	Unit      *big.Int
	Data      []byte
}

type externalKey struct {
	component Address
	module    Address
}

// PositionLedger is the per-basket-instance position record: the enumerated
// component list, default real units, external positions keyed by
// (component, module), and the global position multiplier.
//
// Not thread-safe — only accessed from the single-threaded engine. Component
// list membership is a maintained set: a component is enumerated iff its
// default real unit is nonzero or it has at least one external position
// module. Removal uses swap-with-last, so enumeration order is insertion
// order only until the first removal.
type PositionLedger struct {
	components      []Address
	defaultUnits    map[Address]*big.Int
	externalModules map[Address][]Address
	externals       map[externalKey]*ExternalPosition
	multiplier      *big.Int
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		defaultUnits:    make(map[Address]*big.Int),
		externalModules: make(map[Address][]Address),
		externals:       make(map[externalKey]*ExternalPosition),
		multiplier:      new(big.Int).Set(fpmath.PreciseUnit),
	}
}

// --- Queries ---

// Components returns the enumerated component list.
func (pl *PositionLedger) Components() []Address {
	out := make([]Address, len(pl.components))
	copy(out, pl.components)
	return out
}

// HasComponent reports whether the component is enumerated.
func (pl *PositionLedger) HasComponent(component Address) bool {
	return pl.componentIndex(component) >= 0
}

// HasDefaultPosition reports whether the stored default real unit is nonzero.
func (pl *PositionLedger) HasDefaultPosition(component Address) bool {
	unit, ok := pl.defaultUnits[component]
	return ok && unit.Sign() != 0
}

// HasExternalPosition reports whether the module controls a position on the
// component.
func (pl *PositionLedger) HasExternalPosition(component, module Address) bool {
	for _, m := range pl.externalModules[component] {
		if m == module {
			return true
		}
	}
	return false
}

// HasSufficientDefaultUnits reports whether the stored default real unit is
// at least requiredUnit (signed comparison). A component with no position
// and a required unit of zero passes.
func (pl *PositionLedger) HasSufficientDefaultUnits(component Address, requiredUnit *big.Int) bool {
	return pl.DefaultPositionRealUnit(component).Cmp(requiredUnit) >= 0
}

// HasSufficientExternalUnits is the external-position analogue of
// HasSufficientDefaultUnits.
func (pl *PositionLedger) HasSufficientExternalUnits(component, module Address, requiredUnit *big.Int) bool {
	return pl.ExternalPositionRealUnit(component, module).Cmp(requiredUnit) >= 0
}

// DefaultPositionRealUnit returns a copy of the stored default real unit.
func (pl *PositionLedger) DefaultPositionRealUnit(component Address) *big.Int {
	if unit, ok := pl.defaultUnits[component]; ok {
		return new(big.Int).Set(unit)
	}
	return new(big.Int)
}

// ExternalPositionRealUnit returns a copy of the (component, module) real unit.
func (pl *PositionLedger) ExternalPositionRealUnit(component, module Address) *big.Int {
	if pos, ok := pl.externals[externalKey{component, module}]; ok {
		return new(big.Int).Set(pos.Unit)
	}
	return new(big.Int)
}

// ExternalPositionModules returns the modules controlling external positions
// on the component, in registration order.
func (pl *PositionLedger) ExternalPositionModules(component Address) []Address {
	mods := pl.externalModules[component]
	out := make([]Address, len(mods))
	copy(out, mods)
	return out
}

// ExternalPositionData returns a copy of the module-defined data payload.
func (pl *PositionLedger) ExternalPositionData(component, module Address) []byte {
	if pos, ok := pl.externals[externalKey{component, module}]; ok && len(pos.Data) > 0 {
		out := make([]byte, len(pos.Data))
		copy(out, pos.Data)
		return out
	}
	return nil
}

// PositionMultiplier returns a copy of the global position multiplier.
func (pl *PositionLedger) PositionMultiplier() *big.Int {
	return new(big.Int).Set(pl.multiplier)
}

// DefaultPositionVirtualUnit converts the stored default real unit to the
// externally reported virtual unit: real * multiplier / PreciseUnit,
// rounded down so the report never overstates backing.
func (pl *PositionLedger) DefaultPositionVirtualUnit(component Address) *big.Int {
	return fpmath.PreciseMul(pl.DefaultPositionRealUnit(component), pl.multiplier, fpmath.RoundDownToProtocol)
}

// ExternalPositionVirtualUnit converts an external real unit to virtual terms.
func (pl *PositionLedger) ExternalPositionVirtualUnit(component, module Address) *big.Int {
	return fpmath.PreciseMul(pl.ExternalPositionRealUnit(component, module), pl.multiplier, fpmath.RoundDownToProtocol)
}

// CumulativeComponentRealUnit is the tracked balance of a component per
// basket unit: default real unit plus all external real units (debt units
// subtract).
func (pl *PositionLedger) CumulativeComponentRealUnit(component Address) *big.Int {
	total := pl.DefaultPositionRealUnit(component)
	for _, m := range pl.externalModules[component] {
		if pos, ok := pl.externals[externalKey{component, m}]; ok {
			total.Add(total, pos.Unit)
		}
	}
	return total
}

// Positions returns all virtual-unit positions: for each enumerated
// component the default position (if its real unit is nonzero) followed by
// its external positions in module registration order.
func (pl *PositionLedger) Positions() []Position {
	out := make([]Position, 0, len(pl.components))
	for _, c := range pl.components {
		if pl.HasDefaultPosition(c) {
			out = append(out, Position{
				Component: c,
				Unit:      pl.DefaultPositionVirtualUnit(c),
			})
		}
		for _, m := range pl.externalModules[c] {
			out = append(out, Position{
				Component: c,
				Module:    m,
				Unit:      pl.ExternalPositionVirtualUnit(c, m),
				Data:      pl.ExternalPositionData(c, m),
			})
		}
	}
	return out
}

// --- Mutators ---

// EditDefaultPosition sets the component's default real unit and maintains
// component-list membership. The storage slot is explicitly zeroed, never
// deleted, when the unit returns to zero.
func (pl *PositionLedger) EditDefaultPosition(component Address, newRealUnit *big.Int) error {
	if newRealUnit == nil {
		return fault.Preconditionf("nil default position unit for %s", component)
	}

	if newRealUnit.Sign() != 0 {
		pl.defaultUnits[component] = new(big.Int).Set(newRealUnit)
		pl.addComponent(component)
		return nil
	}

	pl.defaultUnits[component] = new(big.Int)
	if len(pl.externalModules[component]) == 0 {
		pl.removeComponent(component)
	}
	return nil
}

// EditExternalPosition sets the (component, module) real unit and data.
// A zero unit destroys the position: data must already be empty, and both
// unit and data are cleared atomically.
func (pl *PositionLedger) EditExternalPosition(component, module Address, newRealUnit *big.Int, data []byte) error {
	if newRealUnit == nil {
		return fault.Preconditionf("nil external position unit for %s/%s", component, module)
	}

	key := externalKey{component, module}

	if newRealUnit.Sign() != 0 {
		pos := &ExternalPosition{Unit: new(big.Int).Set(newRealUnit)}
		if len(data) > 0 {
			pos.Data = make([]byte, len(data))
			copy(pos.Data, data)
		}
		pl.externals[key] = pos
		pl.addExternalModule(component, module)
		pl.addComponent(component)
		return nil
	}

	if len(data) > 0 {
		return fault.Preconditionf("zero-unit external position for %s/%s cannot carry data", component, module)
	}

	delete(pl.externals, key)
	pl.removeExternalModule(component, module)
	if !pl.HasDefaultPosition(component) && len(pl.externalModules[component]) == 0 {
		pl.removeComponent(component)
	}
	return nil
}

// AddExternalPositionModule registers a module on a component ahead of its
// first unit write and enumerates the component.
func (pl *PositionLedger) AddExternalPositionModule(component, module Address) error {
	if pl.HasExternalPosition(component, module) {
		return fault.Preconditionf("module %s already registered on %s", module, component)
	}
	pl.addExternalModule(component, module)
	pl.addComponent(component)
	return nil
}

// RemoveExternalPositionModule destroys the (component, module) position:
// unit and data are cleared together, the module is dropped from the
// component's module list, and the component leaves enumeration when nothing
// else tracks it.
func (pl *PositionLedger) RemoveExternalPositionModule(component, module Address) error {
	if !pl.HasExternalPosition(component, module) {
		return fault.Preconditionf("module %s not registered on %s", module, component)
	}
	delete(pl.externals, externalKey{component, module})
	pl.removeExternalModule(component, module)
	if !pl.HasDefaultPosition(component) && len(pl.externalModules[component]) == 0 {
		pl.removeComponent(component)
	}
	return nil
}

// EditPositionMultiplier replaces the global position multiplier. The
// multiplier must stay strictly positive; fee accrual only ever lowers it.
func (pl *PositionLedger) EditPositionMultiplier(newMultiplier *big.Int) error {
	if newMultiplier == nil || newMultiplier.Sign() <= 0 {
		return fault.Invariantf("position multiplier must stay positive, got %v", newMultiplier)
	}
	pl.multiplier = new(big.Int).Set(newMultiplier)
	return nil
}

// --- Component set maintenance ---

func (pl *PositionLedger) componentIndex(component Address) int {
	for i, c := range pl.components {
		if c == component {
			return i
		}
	}
	return -1
}

func (pl *PositionLedger) addComponent(component Address) {
	if pl.componentIndex(component) < 0 {
		pl.components = append(pl.components, component)
	}
}

// removeComponent drops a component via swap-with-last.
func (pl *PositionLedger) removeComponent(component Address) {
	i := pl.componentIndex(component)
	if i < 0 {
		return
	}
	last := len(pl.components) - 1
	pl.components[i] = pl.components[last]
	pl.components = pl.components[:last]
}

func (pl *PositionLedger) addExternalModule(component, module Address) {
	for _, m := range pl.externalModules[component] {
		if m == module {
			return
		}
	}
	pl.externalModules[component] = append(pl.externalModules[component], module)
}

func (pl *PositionLedger) removeExternalModule(component, module Address) {
	mods := pl.externalModules[component]
	for i, m := range mods {
		if m == module {
			last := len(mods) - 1
			mods[i] = mods[last]
			pl.externalModules[component] = mods[:last]
			if last == 0 {
				delete(pl.externalModules, component)
			}
			return
		}
	}
}
