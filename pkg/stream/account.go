package stream

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

// Account channel stream names.
const (
	AccountStreamAuthorization = "authorization"
	AccountStreamListening     = "listening"
	AccountStreamTradeUpdates  = "trade_updates"
)

// AccountEvent is one message of the account channel. It is not discriminated by "T";
// the stream field names the kind of event and data carries its payload.
type AccountEvent struct {
	Stream string            `json:"stream"`
	Action string            `json:"action,omitempty"`
	Data   *AccountEventData `json:"data,omitempty"`
}

// AccountEventData is the payload of an AccountEvent.
type AccountEventData struct {
	Streams     []string                         `json:"streams,omitempty"`
	Status      string                           `json:"status,omitempty"`
	Action      string                           `json:"action,omitempty"`
	At          optional.Option[time.Time]       `json:"at,omitempty"`
	EventID     string                           `json:"event_id,omitempty"`
	Event       string                           `json:"event,omitempty"`
	Timestamp   optional.Option[time.Time]       `json:"timestamp,omitempty"`
	Order       *models.Order                    `json:"order,omitempty"`
	ExecutionID string                           `json:"execution_id,omitempty"`
	Price       optional.Option[decimal.Decimal] `json:"price,omitempty"`
	Qty         optional.Option[decimal.Decimal] `json:"qty,omitempty"`
	PositionQty optional.Option[decimal.Decimal] `json:"position_qty,omitempty"`
}

func (e AccountEvent) IsAuthorization() bool {
	return e.Stream == AccountStreamAuthorization
}

func (e AccountEvent) IsListening() bool {
	return e.Stream == AccountStreamListening
}

func (e AccountEvent) IsTradeUpdate() bool {
	return e.Stream == AccountStreamTradeUpdates
}

// Authorized reports whether the event is a successful authorization reply.
func (e AccountEvent) Authorized() bool {
	return e.IsAuthorization() && e.Data != nil && e.Data.Status == "authorized"
}

// TradeUpdate converts a trade_updates event into the TradeUpdate message variant.
func (e AccountEvent) TradeUpdate() (TradeUpdate, bool) {
	if !e.IsTradeUpdate() || e.Data == nil {
		return TradeUpdate{}, false
	}

	return TradeUpdate{
		Type:  MessageTypeTradeUpdates,
		Event: e.Data.Event,
		Order: e.Data.Order,
	}, true
}
