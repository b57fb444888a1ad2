package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to the event log and basket state
// rows. Queries are served over HTTP/JSON from PostgreSQL, never from the
// engine's in-memory state, so a slow reader can never stall event
// processing. All responses include as_of_sequence for freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetBasketState returns the latest persisted state of one basket.
func (qs *QueryService) GetBasketState(ctx context.Context, basketID uuid.UUID) (*BasketStateResponse, error) {
	row := qs.db.QueryRowContext(ctx, `
		SELECT sequence, symbol, supply, position_multiplier, positions
		FROM basket_log.basket_states
		WHERE basket_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, basketID)

	var resp BasketStateResponse
	var positionsJSON []byte
	if err := row.Scan(&resp.AsOfSequence, &resp.Symbol, &resp.Supply, &resp.PositionMultiplier, &positionsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Unknown basket or no events yet
		}
		return nil, fmt.Errorf("load basket state: %w", err)
	}

	resp.BasketID = basketID.String()
	if err := json.Unmarshal(positionsJSON, &resp.Positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}

	return &resp, nil
}

// GetPositions returns the latest persisted positions of one basket.
func (qs *QueryService) GetPositions(ctx context.Context, basketID uuid.UUID) ([]PositionResponse, int64, error) {
	state, err := qs.GetBasketState(ctx, basketID)
	if err != nil {
		return nil, 0, err
	}
	if state == nil {
		return nil, 0, nil
	}
	return state.Positions, state.AsOfSequence, nil
}

// GetEvents returns applied events for a basket, newest first, with
// cursor-based pagination on sequence.
func (qs *QueryService) GetEvents(
	ctx context.Context,
	basketID uuid.UUID,
	limit int,
	beforeSequence *int64,
) ([]EventResponse, error) {
	query := `
		SELECT sequence, event_type, idempotency_key, basket_id,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM basket_log.events
		WHERE basket_id = $1
	`
	args := []interface{}{basketID}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		var stateHash, prevHash []byte
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.BasketID,
			&stateHash, &prevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		e.StateHash = hex.EncodeToString(stateHash)
		e.PrevHash = hex.EncodeToString(prevHash)
		events = append(events, e)
	}

	return events, rows.Err()
}

// VerifyIntegrity checks hash chain continuity across the event log.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM basket_log.events e1
		JOIN basket_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := qs.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM basket_log.events
	`).Scan(&report.EventCount); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}
