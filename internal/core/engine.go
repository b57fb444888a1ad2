package core

import (
	"encoding/binary"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BasketCore/internal/collateral"
	"BasketCore/internal/event"
	"BasketCore/internal/fault"
	"BasketCore/internal/fees"
	"BasketCore/internal/issuance"
	"BasketCore/internal/ledger"
	"BasketCore/internal/module"
	"BasketCore/internal/observability"
)

// ValuationOracle quotes the basket-token valuation in units of a reserve
// asset, 18-decimal fixed point. Like balances, valuations are versioned
// inputs: the engine never computes them, it only consumes them.
type ValuationOracle interface {
	Valuation(basketID uuid.UUID, reserveAsset ledger.Address) (*big.Int, error)
}

// CoreOutput is the engine's result for one applied event: the sequenced
// envelope plus a snapshot of the affected basket's state. Sent to the
// persistence worker (blocking) and the publisher (non-blocking).
type CoreOutput struct {
	Envelope   *event.Envelope
	Event      event.Event // original payload, stored in the log for replay
	Symbol     string
	Supply     *big.Int
	Multiplier *big.Int
	Positions  []ledger.Position
}

// Engine is the deterministic accounting core. It owns all basket state and
// processes events strictly sequentially; everything outside this goroutine
// talks to it through channels or read-only queries against quiesced state.
type Engine struct {
	sequence int64
	hasher   *StateHasher

	baskets  map[uuid.UUID]*ledger.Basket
	order    []uuid.UUID
	policies map[uuid.UUID]*issuance.Policy

	registry   *module.Registry
	balances   ledger.BalanceOracle
	valuations ValuationOracle
	feeEngine  *fees.Engine
	validator  *collateral.Validator

	idempotency *IdempotencyChecker
	ordering    *SequenceValidator

	persistChan chan<- CoreOutput
	publishChan chan<- CoreOutput

	metrics *observability.Metrics
	log     zerolog.Logger
}

// EngineConfig carries the engine's collaborators. Metrics may be nil (unit
// tests); DBChecker may be nil (no event-log tier behind the LRU).
type EngineConfig struct {
	StartSequence  int64
	Balances       ledger.BalanceOracle
	Valuations     ValuationOracle
	Registry       *module.Registry
	DBChecker      DBIdempotencyChecker
	LRUCapacity    int
	Metrics        *observability.Metrics
	Logger         zerolog.Logger
	PersistChannel chan<- CoreOutput
	PublishChannel chan<- CoreOutput
}

func NewEngine(cfg EngineConfig) *Engine {
	capacity := cfg.LRUCapacity
	if capacity <= 0 {
		capacity = 100_000
	}
	registry := cfg.Registry
	if registry == nil {
		registry = module.NewRegistry()
	}
	return &Engine{
		sequence:    cfg.StartSequence,
		hasher:      NewStateHasher(),
		baskets:     make(map[uuid.UUID]*ledger.Basket),
		policies:    make(map[uuid.UUID]*issuance.Policy),
		registry:    registry,
		balances:    cfg.Balances,
		valuations:  cfg.Valuations,
		feeEngine:   fees.NewEngine(),
		validator:   collateral.NewValidator(cfg.Balances),
		idempotency: NewIdempotencyChecker(capacity, cfg.DBChecker),
		ordering:    NewSequenceValidator(),
		persistChan: cfg.PersistChannel,
		publishChan: cfg.PublishChannel,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}
}

// AddBasket registers a basket instance with the engine.
func (e *Engine) AddBasket(b *ledger.Basket) error {
	if _, ok := e.baskets[b.ID]; ok {
		return fault.Preconditionf("basket %s already registered", b.ID)
	}
	e.baskets[b.ID] = b
	e.order = append(e.order, b.ID)
	return nil
}

// Basket returns the basket instance by ID.
func (e *Engine) Basket(id uuid.UUID) (*ledger.Basket, bool) {
	b, ok := e.baskets[id]
	return b, ok
}

// Baskets returns all baskets in registration order.
func (e *Engine) Baskets() []*ledger.Basket {
	out := make([]*ledger.Basket, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.baskets[id])
	}
	return out
}

// SetIssuancePolicy installs the fee schedule and redemption floor for a
// basket. Baskets without a policy issue and redeem fee-free.
func (e *Engine) SetIssuancePolicy(basketID uuid.UUID, p issuance.Policy) error {
	if _, ok := e.baskets[basketID]; !ok {
		return fault.Preconditionf("unknown basket %s", basketID)
	}
	e.policies[basketID] = &p
	return nil
}

// FeeEngine exposes the streaming fee engine for initialization wiring.
func (e *Engine) FeeEngine() *fees.Engine {
	return e.feeEngine
}

// Registry exposes the module registry.
func (e *Engine) Registry() *module.Registry {
	return e.registry
}

// Sequence returns the next sequence number to be assigned.
func (e *Engine) Sequence() int64 {
	return e.sequence
}

// StateHash returns the current tip of the state hash chain.
func (e *Engine) StateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// RestoreCheckpoint primes sequence, hash chain, ordering watermarks, and the
// idempotency LRU from a snapshot. Basket state is restored separately by the
// snapshot loader before processing resumes.
func (e *Engine) RestoreCheckpoint(sequence int64, stateHash [32]byte, watermarks map[string]int64, recentKeys []string) {
	e.sequence = sequence
	e.hasher = NewStateHasherFrom(stateHash)
	for partition, seq := range watermarks {
		e.ordering.Restore(partition, seq)
	}
	e.idempotency.WarmUp(recentKeys)
}

// OrderingWatermarks returns per-basket source-sequence watermarks for
// snapshotting.
func (e *Engine) OrderingWatermarks() map[string]int64 {
	return e.ordering.Watermarks()
}

// RecentIdempotencyKeys returns the LRU contents for snapshotting.
func (e *Engine) RecentIdempotencyKeys() []string {
	return e.idempotency.RecentKeys()
}

// ProcessEvent runs one event through the pipeline: dedup, source-sequence
// ordering, dispatch, envelope sequencing, output emission. Must only be
// called from the single processing goroutine.
func (e *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()

	isDup, tier := e.idempotency.IsDuplicate(eventType, evt.IdempotencyKey())

	partition := "basket:" + evt.Basket().String()
	if err := e.ordering.Validate(partition, evt.SourceSequence(), isDup); err != nil {
		if e.metrics != nil {
			e.metrics.EventOutOfOrder.WithLabelValues(evt.Basket().String()).Inc()
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, "out_of_order").Inc()
		}
		return err
	}

	if isDup {
		if e.metrics != nil {
			e.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		e.log.Debug().
			Str("event_type", eventType).
			Str("idempotency_key", evt.IdempotencyKey()).
			Str("tier", tier).
			Msg("duplicate event skipped")
		return nil
	}

	b, err := e.dispatch(evt)
	if err != nil {
		class := fault.ClassOf(err)
		if e.metrics != nil {
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, class.String()).Inc()
			if class == fault.ClassPolicy {
				e.metrics.PolicyRejections.WithLabelValues(evt.Basket().String(), eventType).Inc()
			}
		}
		e.log.Warn().
			Err(err).
			Str("event_type", eventType).
			Str("basket_id", evt.Basket().String()).
			Str("fault_class", class.String()).
			Msg("event rejected")
		return err
	}

	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		BasketID:       evt.Basket(),
		Timestamp:      evt.Timestamp(),
		SourceSequence: evt.SourceSequence(),
		PrevHash:       e.hasher.GetPrevHash(),
	}
	envelope.StateHash = e.hasher.ComputeHash(e.sequence, e.basketDigest(b))

	output := CoreOutput{
		Envelope:   envelope,
		Event:      evt,
		Symbol:     b.Symbol,
		Supply:     b.TotalSupply(),
		Multiplier: b.Ledger.PositionMultiplier(),
		Positions:  b.Ledger.Positions(),
	}

	// Durability before visibility: persist is blocking (backpressure),
	// publish is best-effort.
	if e.persistChan != nil {
		e.persistChan <- output
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	e.idempotency.MarkProcessed(eventType, evt.IdempotencyKey())
	e.sequence++

	if e.metrics != nil {
		e.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		e.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.BasketSupply.WithLabelValues(b.Symbol).Set(fixedToFloat(output.Supply))
		e.metrics.PositionMultiplier.WithLabelValues(b.Symbol).Set(fixedToFloat(output.Multiplier))
	}

	return nil
}

// ReplayEvent re-applies a logged event during recovery. The event log is
// also the DB idempotency tier, so every logged event would look like a
// duplicate to ProcessEvent and state would never be rebuilt; replay
// therefore skips the dedup lookup entirely. It emits no output either: the
// event is already durable and the persistence worker is not running yet.
// Ordering watermarks, the idempotency LRU, the hash chain, and the sequence
// counter advance exactly as they did when the event was first applied.
func (e *Engine) ReplayEvent(evt event.Event) error {
	partition := "basket:" + evt.Basket().String()
	if err := e.ordering.Validate(partition, evt.SourceSequence(), false); err != nil {
		return err
	}

	b, err := e.dispatch(evt)
	if err != nil {
		return err
	}

	e.hasher.ComputeHash(e.sequence, e.basketDigest(b))
	e.idempotency.MarkProcessed(evt.EventType().String(), evt.IdempotencyKey())
	e.sequence++
	return nil
}

func (e *Engine) dispatch(evt event.Event) (*ledger.Basket, error) {
	switch ev := evt.(type) {
	case *event.IssueRequest:
		return e.handleIssue(ev)
	case *event.RedeemRequest:
		return e.handleRedeem(ev)
	case *event.BalanceSync:
		return e.handleBalanceSync(ev)
	case *event.FeeAccrual:
		return e.handleFeeAccrual(ev)
	case *event.ModuleUpdate:
		return e.handleModuleUpdate(ev)
	default:
		return nil, fault.Preconditionf("unknown event type %T", evt)
	}
}

func (e *Engine) basket(id uuid.UUID) (*ledger.Basket, error) {
	b, ok := e.baskets[id]
	if !ok {
		return nil, fault.Preconditionf("unknown basket %s", id)
	}
	return b, nil
}

func (e *Engine) policy(id uuid.UUID) *issuance.Policy {
	if p, ok := e.policies[id]; ok {
		return p
	}
	return &issuance.Policy{Fees: issuance.ZeroFees()}
}

// accrueOutstandingFees crystallizes streaming fees up to ts before supply
// changes, so the fee applies to the pre-operation holder set. The accrual
// stands on its own: it is a completed state change even if the enclosing
// operation later aborts.
func (e *Engine) accrueOutstandingFees(b *ledger.Basket, ts int64) error {
	if _, ok := e.feeEngine.Settings(b.ID); !ok {
		return nil
	}
	_, err := e.feeEngine.Accrue(b, ts)
	return err
}

// handleIssue: accrue fees, quote, snapshot balance, run transfer-in hooks,
// re-check collateralization, then commit mint and position edit atomically.
// No ledger write happens before the last possible failure point.
func (e *Engine) handleIssue(ev *event.IssueRequest) (*ledger.Basket, error) {
	b, err := e.basket(ev.BasketID)
	if err != nil {
		return nil, err
	}
	if err := e.accrueOutstandingFees(b, ev.Ts); err != nil {
		return nil, err
	}

	reserve := ledger.Address(ev.ReserveAsset)
	valuation, err := e.valuations.Valuation(b.ID, reserve)
	if err != nil {
		return nil, fault.Preconditionf("valuation for basket %s in %s: %w", b.ID, reserve, err)
	}

	supply := b.TotalSupply()
	multiplier := b.Ledger.PositionMultiplier()
	quote, err := issuance.ComputeIssueQuote(
		supply, valuation, ev.ReserveQuantity, ev.ReserveScale,
		e.policy(b.ID).Fees, multiplier, ev.MinBasketOut,
	)
	if err != nil {
		return nil, err
	}

	initial, err := e.validator.SnapshotBalance(b.ID, reserve)
	if err != nil {
		return nil, err
	}

	if err := e.invokeIssueHooks(b, reserve, quote.PostFeeQuantity); err != nil {
		return nil, err
	}

	if err := e.validator.ValidateTransferIn(b.ID, reserve, initial, quote.PostFeeQuantity); err != nil {
		e.recordCollateralViolation(b.Symbol, "transfer_in", err)
		return nil, err
	}

	prevUnit := b.Ledger.DefaultPositionRealUnit(reserve)
	newUnit, err := issuance.ExpectedIssuePositionUnit(
		supply, prevUnit, quote.PostFeeQuantity, multiplier, quote.NewSupply,
	)
	if err != nil {
		return nil, err
	}

	if err := b.Mint(quote.BasketQuantity); err != nil {
		return nil, err
	}
	if err := b.Ledger.EditDefaultPosition(reserve, newUnit); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.IssuesTotal.WithLabelValues(b.Symbol).Inc()
	}
	e.log.Info().
		Str("basket", b.Symbol).
		Str("reserve_in", quote.GrossReserveQuantity.String()).
		Str("minted", quote.BasketQuantity.String()).
		Str("new_supply", quote.NewSupply.String()).
		Msg("issuance applied")
	return b, nil
}

// handleRedeem mirrors issuance: quote, derive the post-redeem position unit,
// run transfer-out hooks, verify the remaining balance still covers the unit
// about to be recorded, then commit burn and position edit.
func (e *Engine) handleRedeem(ev *event.RedeemRequest) (*ledger.Basket, error) {
	b, err := e.basket(ev.BasketID)
	if err != nil {
		return nil, err
	}
	if err := e.accrueOutstandingFees(b, ev.Ts); err != nil {
		return nil, err
	}

	reserve := ledger.Address(ev.ReserveAsset)
	valuation, err := e.valuations.Valuation(b.ID, reserve)
	if err != nil {
		return nil, fault.Preconditionf("valuation for basket %s in %s: %w", b.ID, reserve, err)
	}

	supply := b.TotalSupply()
	multiplier := b.Ledger.PositionMultiplier()
	pol := e.policy(b.ID)
	quote, err := issuance.ComputeRedeemQuote(
		supply, valuation, ev.BasketQuantity, ev.ReserveScale,
		pol.Fees, multiplier, ev.MinReserveOut, pol.SupplyFloor,
	)
	if err != nil {
		return nil, err
	}

	prevUnit := b.Ledger.DefaultPositionRealUnit(reserve)
	newUnit, err := issuance.ExpectedRedeemPositionUnit(
		supply, prevUnit, quote.ReserveQuantity, multiplier, quote.NewSupply,
	)
	if err != nil {
		return nil, err
	}

	if err := e.invokeRedeemHooks(b, reserve, quote.ReserveQuantity); err != nil {
		return nil, err
	}

	if err := e.validator.ValidateTransferOut(b.ID, reserve, newUnit, quote.NewSupply); err != nil {
		e.recordCollateralViolation(b.Symbol, "transfer_out", err)
		return nil, err
	}

	if err := b.Burn(quote.BasketQuantity); err != nil {
		return nil, err
	}
	if err := b.Ledger.EditDefaultPosition(reserve, newUnit); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RedeemsTotal.WithLabelValues(b.Symbol).Inc()
	}
	e.log.Info().
		Str("basket", b.Symbol).
		Str("burned", quote.BasketQuantity.String()).
		Str("reserve_out", quote.ReserveQuantity.String()).
		Str("new_supply", quote.NewSupply.String()).
		Msg("redemption applied")
	return b, nil
}

// handleBalanceSync recomputes a component's default position unit from its
// measured balance, folding out-of-band balance drift into the ledger. The
// previous balance is the one implied by the current unit and supply, so a
// sync is a pure reconciliation with no assumption about the cause.
func (e *Engine) handleBalanceSync(ev *event.BalanceSync) (*ledger.Basket, error) {
	b, err := e.basket(ev.BasketID)
	if err != nil {
		return nil, err
	}

	supply := b.TotalSupply()
	if supply.Sign() == 0 {
		return nil, fault.Preconditionf("balance sync undefined at zero supply for basket %s", b.ID)
	}

	component := ledger.Address(ev.Component)
	impliedPrev := ledger.DefaultTotalNotional(supply, b.Ledger.DefaultPositionRealUnit(component))

	newUnit, currentBalance, prevUnit, err := b.CalculateAndEditDefaultPosition(e.balances, component, supply, impliedPrev)
	if err != nil {
		return nil, err
	}

	if err := e.invokeComponentHooks(b, component, newUnit); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.BalanceSyncsTotal.WithLabelValues(b.Symbol).Inc()
	}
	e.log.Info().
		Str("basket", b.Symbol).
		Str("component", string(component)).
		Str("balance", currentBalance.String()).
		Str("prev_unit", prevUnit.String()).
		Str("new_unit", newUnit.String()).
		Msg("balance sync applied")
	return b, nil
}

func (e *Engine) handleFeeAccrual(ev *event.FeeAccrual) (*ledger.Basket, error) {
	b, err := e.basket(ev.BasketID)
	if err != nil {
		return nil, err
	}

	accrual, err := e.feeEngine.Accrue(b, ev.Ts)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.FeeAccrualsTotal.WithLabelValues(b.Symbol).Inc()
	}
	e.log.Info().
		Str("basket", b.Symbol).
		Int64("elapsed_s", accrual.ElapsedSeconds).
		Str("fee_pct", accrual.FeePercentage.String()).
		Str("new_multiplier", accrual.NewMultiplier.String()).
		Str("recipient_mint", accrual.RecipientMint.String()).
		Msg("fee accrual applied")
	return b, nil
}

func (e *Engine) handleModuleUpdate(ev *event.ModuleUpdate) (*ledger.Basket, error) {
	b, err := e.basket(ev.BasketID)
	if err != nil {
		return nil, err
	}

	addr := ledger.Address(ev.Module)
	if ev.Enable {
		if _, ok := e.registry.Get(addr); !ok {
			return nil, fault.Preconditionf("module %s not registered", addr)
		}
		b.EnableModule(addr)
	} else {
		if err := b.DisableModule(addr); err != nil {
			return nil, err
		}
	}

	e.log.Info().
		Str("basket", b.Symbol).
		Str("module", ev.Module).
		Bool("enabled", ev.Enable).
		Msg("module update applied")
	return b, nil
}

// Hook invocation walks enabled modules in enablement order. A hook error
// aborts the operation before any ledger write.

func (e *Engine) invokeIssueHooks(b *ledger.Basket, component ledger.Address, quantity *big.Int) error {
	for _, addr := range b.Modules() {
		m, ok := e.registry.Get(addr)
		if !ok {
			continue
		}
		if hook, ok := m.(module.IssueHook); ok {
			if err := hook.OnIssue(b, component, quantity); err != nil {
				return fault.Preconditionf("issue hook %s: %w", addr, err)
			}
		}
	}
	return nil
}

func (e *Engine) invokeRedeemHooks(b *ledger.Basket, component ledger.Address, quantity *big.Int) error {
	for _, addr := range b.Modules() {
		m, ok := e.registry.Get(addr)
		if !ok {
			continue
		}
		if hook, ok := m.(module.RedeemHook); ok {
			if err := hook.OnRedeem(b, component, quantity); err != nil {
				return fault.Preconditionf("redeem hook %s: %w", addr, err)
			}
		}
	}
	return nil
}

func (e *Engine) invokeComponentHooks(b *ledger.Basket, component ledger.Address, newUnit *big.Int) error {
	for _, addr := range b.Modules() {
		m, ok := e.registry.Get(addr)
		if !ok {
			continue
		}
		if hook, ok := m.(module.ComponentHook); ok {
			if err := hook.OnComponentEdit(b, component, newUnit); err != nil {
				return fault.Preconditionf("component hook %s: %w", addr, err)
			}
		}
	}
	return nil
}

func (e *Engine) recordCollateralViolation(symbol, check string, err error) {
	if e.metrics != nil && fault.Is(err, fault.ClassInvariant) {
		e.metrics.CollateralViolations.WithLabelValues(symbol, check).Inc()
	}
}

// basketDigest serializes a basket's accounting state deterministically for
// the hash chain: supply, multiplier, then components in lexicographic order
// with default unit and external positions per module.
func (e *Engine) basketDigest(b *ledger.Basket) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, b.ID[:]...)
	buf = appendBig(buf, b.TotalSupply())
	buf = appendBig(buf, b.Ledger.PositionMultiplier())

	components := b.Ledger.Components()
	sort.Slice(components, func(i, j int) bool { return components[i] < components[j] })

	for _, c := range components {
		buf = appendString(buf, string(c))
		buf = appendBig(buf, b.Ledger.DefaultPositionRealUnit(c))

		modules := b.Ledger.ExternalPositionModules(c)
		sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
		for _, m := range modules {
			buf = appendString(buf, string(m))
			buf = appendBig(buf, b.Ledger.ExternalPositionRealUnit(c, m))
			buf = appendString(buf, string(b.Ledger.ExternalPositionData(c, m)))
		}
	}
	return buf
}

func appendBig(buf []byte, x *big.Int) []byte {
	sign := byte(0)
	if x.Sign() < 0 {
		sign = 1
	}
	buf = append(buf, sign)
	bs := x.Bytes()
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(bs)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, bs...)
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func fixedToFloat(x *big.Int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(x),
		new(big.Float).SetInt64(1e18),
	).Float64()
	return f
}
