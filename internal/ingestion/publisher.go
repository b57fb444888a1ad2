package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"BasketCore/internal/core"
)

// OutboundPublisher publishes applied events to NATS for downstream
// consumers. Outbound delivery is best-effort: the event log is the source
// of truth and consumers can always catch up from it.
// Subjects follow the pattern: basket.ledger.events.{event_type}.{basket_id}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.CoreOutput
}

// publishedEvent is the outbound JSON wire format.
type publishedEvent struct {
	Sequence       int64               `json:"sequence"`
	EventType      string              `json:"event_type"`
	IdempotencyKey string              `json:"idempotency_key"`
	BasketID       string              `json:"basket_id"`
	Symbol         string              `json:"symbol"`
	Supply         string              `json:"supply"`
	Multiplier     string              `json:"position_multiplier"`
	Positions      []publishedPosition `json:"positions"`
	StateHash      string              `json:"state_hash"`
	PrevHash       string              `json:"prev_hash"`
	Timestamp      time.Time           `json:"timestamp"`
}

type publishedPosition struct {
	Component string `json:"component"`
	Module    string `json:"module,omitempty"`
	Unit      string `json:"unit"`
	Data      []byte `json:"data,omitempty"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.CoreOutput) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", out.Envelope.Sequence, err)
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.CoreOutput) error {
	env := out.Envelope

	positions := make([]publishedPosition, 0, len(out.Positions))
	for _, p := range out.Positions {
		positions = append(positions, publishedPosition{
			Component: string(p.Component),
			Module:    string(p.Module),
			Unit:      p.Unit.String(),
			Data:      p.Data,
		})
	}

	data, err := json.Marshal(publishedEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		BasketID:       env.BasketID.String(),
		Symbol:         out.Symbol,
		Supply:         out.Supply.String(),
		Multiplier:     out.Multiplier.String(),
		Positions:      positions,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		PrevHash:       hex.EncodeToString(env.PrevHash[:]),
		Timestamp:      env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("basket.ledger.events.%s.%s", env.EventType, env.BasketID)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "BASKET_LEDGER_EVENTS",
		Subjects:  []string{"basket.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream BASKET_LEDGER_EVENTS")
	return nil
}
