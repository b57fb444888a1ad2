package fees

import (
	"math/big"

	"github.com/google/uuid"

	"BasketCore/internal/fault"
	"BasketCore/internal/ledger"
	fpmath "BasketCore/internal/math"
)

// AccrualState tracks the per-basket fee lifecycle
type AccrualState int32

const (
	AccrualStateUninitialized AccrualState = iota
	AccrualStateInitialized
	AccrualStateAccrued
)

func (s AccrualState) String() string {
	switch s {
	case AccrualStateUninitialized:
		return "Uninitialized"
	case AccrualStateInitialized:
		return "Initialized"
	case AccrualStateAccrued:
		return "Accrued"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions
func (s AccrualState) CanTransitionTo(next AccrualState) bool {
	validTransitions := map[AccrualState][]AccrualState{
		AccrualStateUninitialized: {
			AccrualStateInitialized,
		},
		AccrualStateInitialized: {
			AccrualStateAccrued,
		},
		AccrualStateAccrued: {
			AccrualStateAccrued, // Repeated accruals
		},
	}

	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// FeeSettings is the per-basket streaming fee configuration and accrual
// bookmark. Timestamps are versioned inputs in unix seconds.
type FeeSettings struct {
	FeeRecipient              ledger.Address
	MaxStreamingFeePercentage *big.Int // 18-decimal, immutable after init
	StreamingFeePercentage    *big.Int // 18-decimal annual rate
	LastAccrualTimestamp      int64
	State                     AccrualState
}

// Accrual is the result of one fee crystallization.
type Accrual struct {
	ElapsedSeconds int64
	FeePercentage  *big.Int // Portion of the basket taken this accrual
	NewMultiplier  *big.Int
	RecipientMint  *big.Int // Supply minted to the fee recipient
	NewSupply      *big.Int
}

// Engine dilutes position multipliers over time to extract the streaming
// fee without touching individual component balances. One Engine serves all
// baskets; state is keyed by basket ID.
//
// Not thread-safe — only accessed from the single-threaded engine.
type Engine struct {
	settings map[uuid.UUID]*FeeSettings
}

func NewEngine() *Engine {
	return &Engine{
		settings: make(map[uuid.UUID]*FeeSettings),
	}
}

// Initialize configures streaming fees for a basket. The fee percentage is
// capped by maxFee, which itself must leave the multiplier recoverable.
func (e *Engine) Initialize(
	basketID uuid.UUID,
	recipient ledger.Address,
	streamingFee *big.Int,
	maxFee *big.Int,
	nowUnix int64,
) error {
	if s, ok := e.settings[basketID]; ok && s.State != AccrualStateUninitialized {
		return fault.Preconditionf("fees already initialized for basket %s", basketID)
	}
	if recipient == "" {
		return fault.Preconditionf("fee recipient must be set")
	}
	if maxFee == nil || maxFee.Cmp(fpmath.PreciseUnit) >= 0 {
		return fault.Preconditionf("max streaming fee must be below 100%%, got %v", maxFee)
	}
	if streamingFee == nil || streamingFee.Sign() < 0 || streamingFee.Cmp(maxFee) > 0 {
		return fault.Preconditionf("streaming fee %v outside [0, %s]", streamingFee, maxFee)
	}

	e.settings[basketID] = &FeeSettings{
		FeeRecipient:              recipient,
		MaxStreamingFeePercentage: new(big.Int).Set(maxFee),
		StreamingFeePercentage:    new(big.Int).Set(streamingFee),
		LastAccrualTimestamp:      nowUnix,
		State:                     AccrualStateInitialized,
	}
	return nil
}

// Restore installs fee settings directly, used during snapshot recovery.
func (e *Engine) Restore(basketID uuid.UUID, s *FeeSettings) {
	e.settings[basketID] = s
}

// Settings returns the basket's fee settings, if initialized.
func (e *Engine) Settings(basketID uuid.UUID) (*FeeSettings, bool) {
	s, ok := e.settings[basketID]
	return s, ok
}

// UpdateStreamingFee changes the rate after crystallizing nothing; callers
// must accrue first so the old rate applies to the elapsed window.
func (e *Engine) UpdateStreamingFee(basketID uuid.UUID, newFee *big.Int) error {
	s, ok := e.settings[basketID]
	if !ok || s.State == AccrualStateUninitialized {
		return fault.Preconditionf("fees not initialized for basket %s", basketID)
	}
	if newFee == nil || newFee.Sign() < 0 || newFee.Cmp(s.MaxStreamingFeePercentage) > 0 {
		return fault.Preconditionf("streaming fee %v outside [0, %s]", newFee, s.MaxStreamingFeePercentage)
	}
	s.StreamingFeePercentage = new(big.Int).Set(newFee)
	return nil
}

// Accrue crystallizes the fee earned since the last accrual into the
// position multiplier and mints the implied supply inflation to the fee
// recipient.
//
//	feePct   = streamingFee * elapsed / SecondsPerYear
//	newMult  = multiplier * (1 - feePct)            (floor)
//	mint     = feePct * supply / (1 - feePct)       (floor)
//
// The linear per-call rate compounds geometrically across calls; the
// effective APR converges to the nominal rate only as call frequency
// increases. Zero elapsed time is an exact no-op.
func (e *Engine) Accrue(b *ledger.Basket, nowUnix int64) (*Accrual, error) {
	s, ok := e.settings[b.ID]
	if !ok || s.State == AccrualStateUninitialized {
		return nil, fault.Preconditionf("fees not initialized for basket %s", b.ID)
	}

	elapsed := nowUnix - s.LastAccrualTimestamp
	if elapsed < 0 {
		return nil, fault.Preconditionf("accrual timestamp %d before last accrual %d", nowUnix, s.LastAccrualTimestamp)
	}
	if elapsed == 0 {
		return &Accrual{
			FeePercentage: new(big.Int),
			NewMultiplier: b.Ledger.PositionMultiplier(),
			RecipientMint: new(big.Int),
			NewSupply:     b.TotalSupply(),
		}, nil
	}

	feePct, err := fpmath.MulDiv(
		s.StreamingFeePercentage,
		big.NewInt(elapsed),
		big.NewInt(fpmath.SecondsPerYear),
		fpmath.RoundDownToProtocol,
	)
	if err != nil {
		return nil, err
	}

	// Clamp so the multiplier cannot reach zero from the percentage alone;
	// the post-multiplication check below still guards small multipliers.
	if feePct.Cmp(fpmath.PreciseUnit) >= 0 {
		feePct = new(big.Int).Sub(fpmath.PreciseUnit, big.NewInt(1))
	}

	retained := new(big.Int).Sub(fpmath.PreciseUnit, feePct)
	newMultiplier := fpmath.PreciseMul(b.Ledger.PositionMultiplier(), retained, fpmath.RoundDownToProtocol)
	if newMultiplier.Sign() <= 0 {
		return nil, fault.Invariantf("fee accrual would zero the position multiplier (feePct=%s)", feePct)
	}

	// Solve the mint so the recipient's post-dilution share equals the fee
	// taken: mint / (supply + mint) == feePct.
	supply := b.TotalSupply()
	mint, err := fpmath.MulDiv(feePct, supply, retained, fpmath.RoundDownToProtocol)
	if err != nil {
		return nil, err
	}

	if err := b.Ledger.EditPositionMultiplier(newMultiplier); err != nil {
		return nil, err
	}
	if err := b.Mint(mint); err != nil {
		return nil, err
	}

	s.LastAccrualTimestamp = nowUnix
	if s.State.CanTransitionTo(AccrualStateAccrued) {
		s.State = AccrualStateAccrued
	}

	return &Accrual{
		ElapsedSeconds: elapsed,
		FeePercentage:  feePct,
		NewMultiplier:  newMultiplier,
		RecipientMint:  mint,
		NewSupply:      b.TotalSupply(),
	}, nil
}
