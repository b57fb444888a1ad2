package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeIssueRequest
	EventTypeRedeemRequest
	EventTypeBalanceSync
	EventTypeFeeAccrual
	EventTypeModuleUpdate
)

// Envelope wraps every applied event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Basket instance the event applied to
	BasketID uuid.UUID

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Basket returns the basket instance the event targets
	Basket() uuid.UUID

	// SourceSequence returns upstream ordering key
	SourceSequence() int64

	// Timestamp returns the versioned input timestamp
	Timestamp() time.Time
}

func (et EventType) String() string {
	switch et {
	case EventTypeIssueRequest:
		return "IssueRequest"
	case EventTypeRedeemRequest:
		return "RedeemRequest"
	case EventTypeBalanceSync:
		return "BalanceSync"
	case EventTypeFeeAccrual:
		return "FeeAccrual"
	case EventTypeModuleUpdate:
		return "ModuleUpdate"
	default:
		return "Unknown"
	}
}
