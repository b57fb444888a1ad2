package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"BasketCore/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "IssueRequest":
		return parseIssueRequest(raw.Data)
	case "RedeemRequest":
		return parseRedeemRequest(raw.Data)
	case "BalanceSync":
		return parseBalanceSync(raw.Data)
	case "FeeAccrual":
		return parseFeeAccrual(raw.Data)
	case "ModuleUpdate":
		return parseModuleUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Quantities are
// decimal strings because they routinely exceed int64.

type issueRequestJSON struct {
	RequestID       string `json:"request_id"`
	BasketID        string `json:"basket_id"`
	ReserveAsset    string `json:"reserve_asset"`
	ReserveQuantity string `json:"reserve_quantity"`
	ReserveDecimals int64  `json:"reserve_decimals"`
	MinBasketOut    string `json:"min_basket_out,omitempty"`
	Sequence        int64  `json:"sequence"`
	Ts              int64  `json:"ts"`
}

func parseIssueRequest(data []byte) (*event.IssueRequest, error) {
	var j issueRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse IssueRequest: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	basketID, err := uuid.Parse(j.BasketID)
	if err != nil {
		return nil, fmt.Errorf("parse basket_id: %w", err)
	}
	quantity, err := parseQuantity(j.ReserveQuantity, "reserve_quantity")
	if err != nil {
		return nil, err
	}
	scale, err := scaleFromDecimals(j.ReserveDecimals)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalQuantity(j.MinBasketOut, "min_basket_out")
	if err != nil {
		return nil, err
	}

	return &event.IssueRequest{
		RequestID:       requestID,
		BasketID:        basketID,
		ReserveAsset:    j.ReserveAsset,
		ReserveQuantity: quantity,
		ReserveScale:    scale,
		MinBasketOut:    minOut,
		Sequence:        j.Sequence,
		Ts:              j.Ts,
	}, nil
}

type redeemRequestJSON struct {
	RequestID       string `json:"request_id"`
	BasketID        string `json:"basket_id"`
	ReserveAsset    string `json:"reserve_asset"`
	BasketQuantity  string `json:"basket_quantity"`
	ReserveDecimals int64  `json:"reserve_decimals"`
	MinReserveOut   string `json:"min_reserve_out,omitempty"`
	Sequence        int64  `json:"sequence"`
	Ts              int64  `json:"ts"`
}

func parseRedeemRequest(data []byte) (*event.RedeemRequest, error) {
	var j redeemRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RedeemRequest: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	basketID, err := uuid.Parse(j.BasketID)
	if err != nil {
		return nil, fmt.Errorf("parse basket_id: %w", err)
	}
	quantity, err := parseQuantity(j.BasketQuantity, "basket_quantity")
	if err != nil {
		return nil, err
	}
	scale, err := scaleFromDecimals(j.ReserveDecimals)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalQuantity(j.MinReserveOut, "min_reserve_out")
	if err != nil {
		return nil, err
	}

	return &event.RedeemRequest{
		RequestID:      requestID,
		BasketID:       basketID,
		ReserveAsset:   j.ReserveAsset,
		BasketQuantity: quantity,
		ReserveScale:   scale,
		MinReserveOut:  minOut,
		Sequence:       j.Sequence,
		Ts:             j.Ts,
	}, nil
}

type balanceSyncJSON struct {
	BasketID  string `json:"basket_id"`
	Component string `json:"component"`
	Sequence  int64  `json:"sequence"`
	Ts        int64  `json:"ts"`
}

func parseBalanceSync(data []byte) (*event.BalanceSync, error) {
	var j balanceSyncJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BalanceSync: %w", err)
	}
	basketID, err := uuid.Parse(j.BasketID)
	if err != nil {
		return nil, fmt.Errorf("parse basket_id: %w", err)
	}
	if j.Component == "" {
		return nil, fmt.Errorf("parse BalanceSync: empty component")
	}
	return &event.BalanceSync{
		BasketID:  basketID,
		Component: j.Component,
		Sequence:  j.Sequence,
		Ts:        j.Ts,
	}, nil
}

type feeAccrualJSON struct {
	BasketID string `json:"basket_id"`
	Sequence int64  `json:"sequence"`
	Ts       int64  `json:"ts"`
}

func parseFeeAccrual(data []byte) (*event.FeeAccrual, error) {
	var j feeAccrualJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FeeAccrual: %w", err)
	}
	basketID, err := uuid.Parse(j.BasketID)
	if err != nil {
		return nil, fmt.Errorf("parse basket_id: %w", err)
	}
	return &event.FeeAccrual{
		BasketID: basketID,
		Sequence: j.Sequence,
		Ts:       j.Ts,
	}, nil
}

type moduleUpdateJSON struct {
	BasketID string `json:"basket_id"`
	Module   string `json:"module"`
	Enable   bool   `json:"enable"`
	Sequence int64  `json:"sequence"`
	Ts       int64  `json:"ts"`
}

func parseModuleUpdate(data []byte) (*event.ModuleUpdate, error) {
	var j moduleUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ModuleUpdate: %w", err)
	}
	basketID, err := uuid.Parse(j.BasketID)
	if err != nil {
		return nil, fmt.Errorf("parse basket_id: %w", err)
	}
	if j.Module == "" {
		return nil, fmt.Errorf("parse ModuleUpdate: empty module")
	}
	return &event.ModuleUpdate{
		BasketID: basketID,
		Module:   j.Module,
		Enable:   j.Enable,
		Sequence: j.Sequence,
		Ts:       j.Ts,
	}, nil
}

// --- quantity helpers ---

func parseQuantity(s, field string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("parse %s: empty", field)
	}
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: invalid decimal %q", field, s)
	}
	return x, nil
}

func parseOptionalQuantity(s, field string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseQuantity(s, field)
}

// scaleFromDecimals converts a token decimal count into the base-unit scale
// 10^decimals. 77 caps the exponent well above any real token while bounding
// allocation on hostile input.
func scaleFromDecimals(decimals int64) (*big.Int, error) {
	if decimals < 0 || decimals > 77 {
		return nil, fmt.Errorf("parse reserve_decimals: %d out of range", decimals)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil), nil
}
