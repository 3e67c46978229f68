// Package stream implements the push channels of the brokerage API: the message
// model, the discriminated decoder, the control frame encoder and the session that
// drives one WebSocket connection.
package stream

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

// MessageType is the value of the "T" discriminator field.
type MessageType string

const (
	MessageTypeSuccess      MessageType = "success"
	MessageTypeError        MessageType = "error"
	MessageTypeSubscription MessageType = "subscription"
	MessageTypeTrade        MessageType = "t"
	MessageTypeQuote        MessageType = "q"
	MessageTypeBar          MessageType = "b"
	MessageTypeTradeUpdates MessageType = "trade_updates"
	MessageTypeNews         MessageType = "n"
)

// Message is one decoded inbound push message. The set of implementations is closed:
// Success, ErrorMessage, SubscriptionAck, Trade, Quote, Bar, TradeUpdate and News.
type Message interface {
	MessageType() MessageType
	message()
}

// Success is sent after connecting and after a successful authentication.
type Success struct {
	Type    MessageType `json:"T"`
	Message string      `json:"msg"`
}

// ErrorMessage is an in-band error reported by the server.
type ErrorMessage struct {
	Type    MessageType `json:"T"`
	Code    int         `json:"code"`
	Message string      `json:"msg"`
}

// SubscriptionAck echoes the active subscription after every subscribe or unsubscribe.
type SubscriptionAck struct {
	Type         MessageType `json:"T"`
	Trades       []string    `json:"trades"`
	Quotes       []string    `json:"quotes"`
	Bars         []string    `json:"bars"`
	Corrections  []string    `json:"corrections,omitempty"`
	CancelErrors []string    `json:"cancelErrors,omitempty"`
	News         []string    `json:"news,omitempty"`
}

type Trade struct {
	Type       MessageType `json:"T"`
	Symbol     string      `json:"S"`
	ID         int64       `json:"i"`
	Exchange   string      `json:"x"`
	Price      float64     `json:"p"`
	Size       uint32      `json:"s"`
	Timestamp  time.Time   `json:"t"`
	Conditions []string    `json:"c"`
	Tape       string      `json:"z"`
}

type Quote struct {
	Type        MessageType `json:"T"`
	Symbol      string      `json:"S"`
	AskExchange string      `json:"ax"`
	AskPrice    float64     `json:"ap"`
	AskSize     uint32      `json:"as"`
	BidExchange string      `json:"bx"`
	BidPrice    float64     `json:"bp"`
	BidSize     uint32      `json:"bs"`
	Timestamp   time.Time   `json:"t"`
	Conditions  []string    `json:"c"`
	Tape        string      `json:"z"`
}

// Bar is a minute (or updated/daily) aggregate.
type Bar struct {
	Type       MessageType              `json:"T"`
	Symbol     string                   `json:"S"`
	Open       float64                  `json:"o"`
	High       float64                  `json:"h"`
	Low        float64                  `json:"l"`
	Close      float64                  `json:"c"`
	Volume     uint64                   `json:"v"`
	Timestamp  time.Time                `json:"t"`
	TradeCount optional.Option[uint64]  `json:"n,omitempty"`
	VWAP       optional.Option[float64] `json:"vw,omitempty"`
}

// TradeUpdate is an order lifecycle event.
type TradeUpdate struct {
	Type  MessageType   `json:"T"`
	Event string        `json:"event,omitempty"`
	Order *models.Order `json:"order,omitempty"`
}

// News is a real-time news article pushed on the news channel.
type News struct {
	Type      MessageType `json:"T"`
	ID        int64       `json:"id"`
	Headline  string      `json:"headline"`
	Summary   string      `json:"summary"`
	Author    string      `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	URL       string      `json:"url"`
	Content   string      `json:"content"`
	Symbols   []string    `json:"symbols"`
	Source    string      `json:"source"`
}

func (Success) MessageType() MessageType         { return MessageTypeSuccess }
func (ErrorMessage) MessageType() MessageType    { return MessageTypeError }
func (SubscriptionAck) MessageType() MessageType { return MessageTypeSubscription }
func (Trade) MessageType() MessageType           { return MessageTypeTrade }
func (Quote) MessageType() MessageType           { return MessageTypeQuote }
func (Bar) MessageType() MessageType             { return MessageTypeBar }
func (TradeUpdate) MessageType() MessageType     { return MessageTypeTradeUpdates }
func (News) MessageType() MessageType            { return MessageTypeNews }

func (Success) message()         {}
func (ErrorMessage) message()    {}
func (SubscriptionAck) message() {}
func (Trade) message()           {}
func (Quote) message()           {}
func (Bar) message()             {}
func (TradeUpdate) message()     {}
func (News) message()            {}

// Error implements the error interface so server errors can be returned directly.
func (e ErrorMessage) Error() string {
	return e.Message
}

// IsControl reports whether m is a control message rather than market data.
func IsControl(m Message) bool {
	switch m.(type) {
	case Success, ErrorMessage, SubscriptionAck:
		return true
	default:
		return false
	}
}

// Symbol returns the symbol a data message refers to, or "" for control messages.
func Symbol(m Message) string {
	switch v := m.(type) {
	case Trade:
		return v.Symbol
	case Quote:
		return v.Symbol
	case Bar:
		return v.Symbol
	case TradeUpdate:
		if v.Order != nil {
			return v.Order.Symbol
		}
	}

	return ""
}
