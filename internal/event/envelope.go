// Package event defines the outbound domain events emitted after each
// committed state change. Events are serialized to JSON and published on a
// per-type subject; WAD quantities travel as decimal integer strings so no
// precision is lost in transit.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDeposit
	EventTypeWithdrawal
	EventTypePoolTrade
	EventTypeLiquidation
	EventTypeFundingAccrual
	EventTypeMarkPriceUpdate
	EventTypeParamUpdate
	EventTypeStatusChange
	EventTypeSharesMinted
	EventTypeSharesRedeemed
	EventTypeSharesSettled
)

func (et EventType) String() string {
	switch et {
	case EventTypeDeposit:
		return "Deposit"
	case EventTypeWithdrawal:
		return "Withdrawal"
	case EventTypePoolTrade:
		return "PoolTrade"
	case EventTypeLiquidation:
		return "Liquidation"
	case EventTypeFundingAccrual:
		return "FundingAccrual"
	case EventTypeMarkPriceUpdate:
		return "MarkPriceUpdate"
	case EventTypeParamUpdate:
		return "ParamUpdate"
	case EventTypeStatusChange:
		return "StatusChange"
	case EventTypeSharesMinted:
		return "SharesMinted"
	case EventTypeSharesRedeemed:
		return "SharesRedeemed"
	case EventTypeSharesSettled:
		return "SharesSettled"
	default:
		return "Unknown"
	}
}

// Subject is the publish subject suffix for this event type.
func (et EventType) Subject() string {
	switch et {
	case EventTypeDeposit:
		return "deposit"
	case EventTypeWithdrawal:
		return "withdrawal"
	case EventTypePoolTrade:
		return "trade"
	case EventTypeLiquidation:
		return "liquidation"
	case EventTypeFundingAccrual:
		return "funding"
	case EventTypeMarkPriceUpdate:
		return "markprice"
	case EventTypeParamUpdate:
		return "params"
	case EventTypeStatusChange:
		return "status"
	case EventTypeSharesMinted:
		return "minted"
	case EventTypeSharesRedeemed:
		return "redeemed"
	case EventTypeSharesSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Event is the interface all event payloads implement
type Event interface {
	EventType() EventType
}

// Envelope wraps every published event
type Envelope struct {
	// Unique event id, doubles as the dedup key downstream
	EventID uuid.UUID `json:"event_id"`

	// Monotonic sequence assigned at publish time
	Sequence int64 `json:"sequence"`

	Type EventType `json:"type"`

	// Wall-clock time the state change committed
	Timestamp time.Time `json:"timestamp"`

	// JSON-encoded event-specific data
	Payload json.RawMessage `json:"payload"`
}

// Wrap builds an envelope around an event payload.
func Wrap(seq int64, ev Event, now time.Time) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventID:   uuid.New(),
		Sequence:  seq,
		Type:      ev.EventType(),
		Timestamp: now.UTC(),
		Payload:   payload,
	}, nil
}
