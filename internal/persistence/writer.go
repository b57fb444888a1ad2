package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes applied events and basket state rows to Postgres
// using multi-row INSERT. Multi-row INSERT is the portable choice here;
// switch to pgx CopyFrom if event throughput ever makes it the bottleneck.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in basket_log.events
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	BasketID       string
	Payload        []byte // JSON-encoded post-apply basket state
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// StateRow represents a row in basket_log.basket_states: the per-event
// accounting snapshot of the affected basket. Quantities are stored as
// decimal text because they exceed int64.
type StateRow struct {
	Sequence   int64
	BasketID   string
	Symbol     string
	Supply     string
	Multiplier string
	Positions  []byte // JSON array of virtual-unit positions
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to basket_log.events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO basket_log.events
		(sequence, event_type, idempotency_key, basket_id, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.BasketID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteStateBatch writes a batch of basket state rows inside tx.
func (w *EventLogWriter) WriteStateBatch(ctx context.Context, tx *sql.Tx, states []StateRow) error {
	if len(states) == 0 {
		return nil
	}

	query := `INSERT INTO basket_log.basket_states
		(sequence, basket_id, symbol, supply, position_multiplier, positions)
		VALUES `

	values := make([]string, 0, len(states))
	args := make([]interface{}, 0, len(states)*6)

	for i, s := range states {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			s.Sequence, s.BasketID, s.Symbol, s.Supply, s.Multiplier, s.Positions,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
