package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"BasketCore/internal/event"
)

// MarshalEvent serializes a typed event back into its inbound wire format.
// The event log stores payloads in wire form so recovery can replay them
// through ParseRawEvent, the same path live events take.
func MarshalEvent(evt event.Event) ([]byte, error) {
	switch ev := evt.(type) {
	case *event.IssueRequest:
		return json.Marshal(issueRequestJSON{
			RequestID:       ev.RequestID.String(),
			BasketID:        ev.BasketID.String(),
			ReserveAsset:    ev.ReserveAsset,
			ReserveQuantity: ev.ReserveQuantity.String(),
			ReserveDecimals: decimalsFromScale(ev.ReserveScale),
			MinBasketOut:    optionalString(ev.MinBasketOut),
			Sequence:        ev.Sequence,
			Ts:              ev.Ts,
		})
	case *event.RedeemRequest:
		return json.Marshal(redeemRequestJSON{
			RequestID:       ev.RequestID.String(),
			BasketID:        ev.BasketID.String(),
			ReserveAsset:    ev.ReserveAsset,
			BasketQuantity:  ev.BasketQuantity.String(),
			ReserveDecimals: decimalsFromScale(ev.ReserveScale),
			MinReserveOut:   optionalString(ev.MinReserveOut),
			Sequence:        ev.Sequence,
			Ts:              ev.Ts,
		})
	case *event.BalanceSync:
		return json.Marshal(balanceSyncJSON{
			BasketID:  ev.BasketID.String(),
			Component: ev.Component,
			Sequence:  ev.Sequence,
			Ts:        ev.Ts,
		})
	case *event.FeeAccrual:
		return json.Marshal(feeAccrualJSON{
			BasketID: ev.BasketID.String(),
			Sequence: ev.Sequence,
			Ts:       ev.Ts,
		})
	case *event.ModuleUpdate:
		return json.Marshal(moduleUpdateJSON{
			BasketID: ev.BasketID.String(),
			Module:   ev.Module,
			Enable:   ev.Enable,
			Sequence: ev.Sequence,
			Ts:       ev.Ts,
		})
	default:
		return nil, fmt.Errorf("unknown event type %T", evt)
	}
}

// decimalsFromScale inverts scaleFromDecimals. Scales always come in as
// powers of ten, so the decimal count is the digit count minus one.
func decimalsFromScale(scale *big.Int) int64 {
	if scale == nil || scale.Sign() <= 0 {
		return 0
	}
	return int64(len(scale.String()) - 1)
}

func optionalString(x *big.Int) string {
	if x == nil {
		return ""
	}
	return x.String()
}
