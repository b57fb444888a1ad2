package event

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// IssueRequest asks the core to convert a reserve-asset deposit into newly
// minted basket-token supply. Quantities are in the reserve asset's base
// units; ReserveScale is 10^decimals of the reserve asset.
// Idempotency key: request_id.
type IssueRequest struct {
	RequestID       uuid.UUID
	BasketID        uuid.UUID
	ReserveAsset    string
	ReserveQuantity *big.Int
	ReserveScale    *big.Int
	MinBasketOut    *big.Int // Slippage floor; nil disables the check
	Sequence        int64
	Ts              int64 // Unix seconds, versioned input
}

func (e *IssueRequest) IdempotencyKey() string { return e.RequestID.String() }
func (e *IssueRequest) EventType() EventType   { return EventTypeIssueRequest }
func (e *IssueRequest) Basket() uuid.UUID      { return e.BasketID }
func (e *IssueRequest) SourceSequence() int64  { return e.Sequence }
func (e *IssueRequest) Timestamp() time.Time   { return time.Unix(e.Ts, 0).UTC() }

// RedeemRequest asks the core to burn basket-token supply and release the
// proportional reserve-asset amount.
// Idempotency key: request_id.
type RedeemRequest struct {
	RequestID      uuid.UUID
	BasketID       uuid.UUID
	ReserveAsset   string
	BasketQuantity *big.Int
	ReserveScale   *big.Int
	MinReserveOut  *big.Int // Slippage floor; nil disables the check
	Sequence       int64
	Ts             int64
}

func (e *RedeemRequest) IdempotencyKey() string { return e.RequestID.String() }
func (e *RedeemRequest) EventType() EventType   { return EventTypeRedeemRequest }
func (e *RedeemRequest) Basket() uuid.UUID      { return e.BasketID }
func (e *RedeemRequest) SourceSequence() int64  { return e.Sequence }
func (e *RedeemRequest) Timestamp() time.Time   { return time.Unix(e.Ts, 0).UTC() }

// BalanceSync folds an out-of-band component balance change (airdrop,
// interest, fee-on-transfer drift) back into the default position unit.
// Idempotency key: "{basket}:{component}:{sequence}".
type BalanceSync struct {
	BasketID  uuid.UUID
	Component string
	Sequence  int64
	Ts        int64
}

func (e *BalanceSync) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%d", e.BasketID, e.Component, e.Sequence)
}
func (e *BalanceSync) EventType() EventType  { return EventTypeBalanceSync }
func (e *BalanceSync) Basket() uuid.UUID     { return e.BasketID }
func (e *BalanceSync) SourceSequence() int64 { return e.Sequence }
func (e *BalanceSync) Timestamp() time.Time  { return time.Unix(e.Ts, 0).UTC() }

// FeeAccrual crystallizes unaccrued streaming fees into the position
// multiplier as of the versioned timestamp.
// Idempotency key: "{basket}:{ts}:fee".
type FeeAccrual struct {
	BasketID uuid.UUID
	Sequence int64
	Ts       int64
}

func (e *FeeAccrual) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d:fee", e.BasketID, e.Ts)
}
func (e *FeeAccrual) EventType() EventType  { return EventTypeFeeAccrual }
func (e *FeeAccrual) Basket() uuid.UUID     { return e.BasketID }
func (e *FeeAccrual) SourceSequence() int64 { return e.Sequence }
func (e *FeeAccrual) Timestamp() time.Time  { return time.Unix(e.Ts, 0).UTC() }

// ModuleUpdate enables or disables a module on a basket instance.
// Idempotency key: "{basket}:{module}:{sequence}".
type ModuleUpdate struct {
	BasketID uuid.UUID
	Module   string
	Enable   bool
	Sequence int64
	Ts       int64
}

func (e *ModuleUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%d", e.BasketID, e.Module, e.Sequence)
}
func (e *ModuleUpdate) EventType() EventType  { return EventTypeModuleUpdate }
func (e *ModuleUpdate) Basket() uuid.UUID     { return e.BasketID }
func (e *ModuleUpdate) SourceSequence() int64 { return e.Sequence }
func (e *ModuleUpdate) Timestamp() time.Time  { return time.Unix(e.Ts, 0).UTC() }
