package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

type OrderSide string

type OrderType string

type TimeInForce string

type OrderClass string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceOPG TimeInForce = "opg"
	TimeInForceCLS TimeInForce = "cls"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

const (
	OrderClassSimple  OrderClass = "simple"
	OrderClassBracket OrderClass = "bracket"
	OrderClassOCO     OrderClass = "oco"
	OrderClassOTO     OrderClass = "oto"
)

// TakeProfit is the take profit leg of an advanced order.
type TakeProfit struct {
	LimitPrice decimal.Decimal `json:"limit_price" yaml:"limit_price"`
}

// StopLoss is the stop loss leg of an advanced order.
type StopLoss struct {
	StopPrice  decimal.Decimal                  `json:"stop_price" yaml:"stop_price"`
	LimitPrice optional.Option[decimal.Decimal] `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
}

// OrderRequest is the body of POST /v2/orders.
type OrderRequest struct {
	Symbol        string                           `json:"symbol" yaml:"symbol" validate:"required"`
	Qty           optional.Option[decimal.Decimal] `json:"qty,omitempty" yaml:"qty,omitempty"`
	Notional      optional.Option[decimal.Decimal] `json:"notional,omitempty" yaml:"notional,omitempty"`
	Side          OrderSide                        `json:"side" yaml:"side" validate:"required,oneof=buy sell"`
	Type          OrderType                        `json:"type" yaml:"type" validate:"required,oneof=market limit stop stop_limit trailing_stop"`
	TimeInForce   TimeInForce                      `json:"time_in_force" yaml:"time_in_force" validate:"required,oneof=day gtc opg cls ioc fok"`
	LimitPrice    optional.Option[decimal.Decimal] `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	StopPrice     optional.Option[decimal.Decimal] `json:"stop_price,omitempty" yaml:"stop_price,omitempty"`
	ClientOrderID string                           `json:"client_order_id,omitempty" yaml:"client_order_id,omitempty" validate:"max=128"`
	ExtendedHours bool                             `json:"extended_hours,omitempty" yaml:"extended_hours,omitempty"`
	OrderClass    OrderClass                       `json:"order_class,omitempty" yaml:"order_class,omitempty" validate:"omitempty,oneof=simple bracket oco oto"`
	TakeProfit    *TakeProfit                      `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	StopLoss      *StopLoss                        `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	TrailPrice    optional.Option[decimal.Decimal] `json:"trail_price,omitempty" yaml:"trail_price,omitempty"`
	TrailPercent  optional.Option[decimal.Decimal] `json:"trail_percent,omitempty" yaml:"trail_percent,omitempty"`
}

// Validate validates the OrderRequest struct.
func (r *OrderRequest) Validate() error {
	validate := validator.New()

	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	if r.Qty.IsSome() == r.Notional.IsSome() {
		return errors.New(errors.ErrCodeInvalidOrder, "exactly one of qty or notional must be set")
	}

	if r.Qty.IsSome() && !r.Qty.Unwrap().IsPositive() {
		return errors.New(errors.ErrCodeInvalidOrder, "qty must be greater than zero")
	}

	if r.Notional.IsSome() && !r.Notional.Unwrap().IsPositive() {
		return errors.New(errors.ErrCodeInvalidOrder, "notional must be greater than zero")
	}

	switch r.Type {
	case OrderTypeLimit:
		if r.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "limit orders require limit_price")
		}
	case OrderTypeStop:
		if r.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "stop orders require stop_price")
		}
	case OrderTypeStopLimit:
		if r.LimitPrice.IsNone() || r.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "stop_limit orders require limit_price and stop_price")
		}
	case OrderTypeTrailingStop:
		if r.TrailPrice.IsSome() == r.TrailPercent.IsSome() {
			return errors.New(errors.ErrCodeInvalidOrder, "trailing_stop orders require exactly one of trail_price or trail_percent")
		}
	}

	if r.OrderClass == OrderClassBracket && (r.TakeProfit == nil || r.StopLoss == nil) {
		return errors.New(errors.ErrCodeInvalidOrder, "bracket orders require take_profit and stop_loss")
	}

	return nil
}

// ReplaceOrderRequest is the body of PATCH /v2/orders/{id}.
type ReplaceOrderRequest struct {
	Qty           optional.Option[decimal.Decimal] `json:"qty,omitempty" yaml:"qty,omitempty"`
	TimeInForce   TimeInForce                      `json:"time_in_force,omitempty" yaml:"time_in_force,omitempty" validate:"omitempty,oneof=day gtc opg cls ioc fok"`
	LimitPrice    optional.Option[decimal.Decimal] `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	StopPrice     optional.Option[decimal.Decimal] `json:"stop_price,omitempty" yaml:"stop_price,omitempty"`
	Trail         optional.Option[decimal.Decimal] `json:"trail,omitempty" yaml:"trail,omitempty"`
	ClientOrderID string                           `json:"client_order_id,omitempty" yaml:"client_order_id,omitempty" validate:"max=128"`
}

// Validate validates the ReplaceOrderRequest struct.
func (r *ReplaceOrderRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid replace order request", err)
	}

	if r.Qty.IsNone() && r.TimeInForce == "" && r.LimitPrice.IsNone() &&
		r.StopPrice.IsNone() && r.Trail.IsNone() && r.ClientOrderID == "" {
		return errors.New(errors.ErrCodeInvalidOrder, "replace order request changes nothing")
	}

	return nil
}

// Order is an order as returned by the orders endpoints and carried in trade updates.
type Order struct {
	ID                string                           `json:"id" yaml:"id"`
	ClientOrderID     string                           `json:"client_order_id" yaml:"client_order_id"`
	CreatedAt         time.Time                        `json:"created_at" yaml:"created_at"`
	UpdatedAt         optional.Option[time.Time]       `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	SubmittedAt       optional.Option[time.Time]       `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	FilledAt          optional.Option[time.Time]       `json:"filled_at,omitempty" yaml:"filled_at,omitempty"`
	ExpiredAt         optional.Option[time.Time]       `json:"expired_at,omitempty" yaml:"expired_at,omitempty"`
	CanceledAt        optional.Option[time.Time]       `json:"canceled_at,omitempty" yaml:"canceled_at,omitempty"`
	FailedAt          optional.Option[time.Time]       `json:"failed_at,omitempty" yaml:"failed_at,omitempty"`
	ReplacedAt        optional.Option[time.Time]       `json:"replaced_at,omitempty" yaml:"replaced_at,omitempty"`
	ReplacedBy        optional.Option[string]          `json:"replaced_by,omitempty" yaml:"replaced_by,omitempty"`
	Replaces          optional.Option[string]          `json:"replaces,omitempty" yaml:"replaces,omitempty"`
	AssetID           string                           `json:"asset_id" yaml:"asset_id"`
	Symbol            string                           `json:"symbol" yaml:"symbol"`
	AssetClass        string                           `json:"asset_class" yaml:"asset_class"`
	Notional          optional.Option[decimal.Decimal] `json:"notional,omitempty" yaml:"notional,omitempty"`
	Qty               optional.Option[decimal.Decimal] `json:"qty,omitempty" yaml:"qty,omitempty"`
	FilledQty         optional.Option[decimal.Decimal] `json:"filled_qty,omitempty" yaml:"filled_qty,omitempty"`
	Type              OrderType                        `json:"type" yaml:"type"`
	Side              OrderSide                        `json:"side" yaml:"side"`
	TimeInForce       TimeInForce                      `json:"time_in_force" yaml:"time_in_force"`
	LimitPrice        optional.Option[decimal.Decimal] `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	StopPrice         optional.Option[decimal.Decimal] `json:"stop_price,omitempty" yaml:"stop_price,omitempty"`
	FilledAvgPrice    optional.Option[decimal.Decimal] `json:"filled_avg_price,omitempty" yaml:"filled_avg_price,omitempty"`
	OrderClass        OrderClass                       `json:"order_class,omitempty" yaml:"order_class,omitempty"`
	OrderType         OrderType                        `json:"order_type,omitempty" yaml:"order_type,omitempty"`
	Status            string                           `json:"status" yaml:"status"`
	ExtendedHours     bool                             `json:"extended_hours,omitempty" yaml:"extended_hours,omitempty"`
	Legs              []Order                          `json:"legs,omitempty" yaml:"legs,omitempty"`
	TrailPrice        optional.Option[decimal.Decimal] `json:"trail_price,omitempty" yaml:"trail_price,omitempty"`
	TrailPercent      optional.Option[decimal.Decimal] `json:"trail_percent,omitempty" yaml:"trail_percent,omitempty"`
	HWM               optional.Option[decimal.Decimal] `json:"hwm,omitempty" yaml:"hwm,omitempty"`
	PositionIntent    string                           `json:"position_intent,omitempty" yaml:"position_intent,omitempty"`
	Subtag            string                           `json:"subtag,omitempty" yaml:"subtag,omitempty"`
	Source            string                           `json:"source,omitempty" yaml:"source,omitempty"`
	ExpiresAt         optional.Option[time.Time]       `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	CancelRequestedAt optional.Option[time.Time]       `json:"cancel_requested_at,omitempty" yaml:"cancel_requested_at,omitempty"`
}

// IsTerminal reports whether the order can no longer change.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case "filled", "canceled", "expired", "replaced", "rejected", "done_for_day":
		return true
	default:
		return false
	}
}

// OrderIDStatus is one entry of the DELETE /v2/orders response.
type OrderIDStatus struct {
	ID     string `json:"id" yaml:"id"`
	Status int    `json:"status" yaml:"status"`
	Body   *Order `json:"body,omitempty" yaml:"body,omitempty"`
}
