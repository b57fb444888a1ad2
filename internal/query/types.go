package query

import "time"

// BasketStateResponse is the current accounting state of one basket. All
// responses include AsOfSequence for freshness semantics. Quantities are
// decimal strings (18-decimal fixed point unless noted).
type BasketStateResponse struct {
	BasketID           string             `json:"basket_id"`
	Symbol             string             `json:"symbol"`
	Supply             string             `json:"supply"`
	PositionMultiplier string             `json:"position_multiplier"`
	Positions          []PositionResponse `json:"positions"`
	AsOfSequence       int64              `json:"as_of_sequence"`
}

// PositionResponse is one virtual-unit position.
type PositionResponse struct {
	Component string `json:"component"`
	Module    string `json:"module,omitempty"`
	Unit      string `json:"unit"`
	Data      []byte `json:"data,omitempty"`
}

// EventResponse is one applied event from the log.
type EventResponse struct {
	Sequence       int64     `json:"sequence"`
	EventType      string    `json:"event_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	BasketID       string    `json:"basket_id"`
	StateHash      string    `json:"state_hash"`
	PrevHash       string    `json:"prev_hash"`
	Timestamp      time.Time `json:"timestamp"`
	SourceSequence int64     `json:"source_sequence"`
}

// IntegrityReport is the result of an admin integrity verification.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	EventCount      int64   `json:"event_count"`
}
