package mockserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

var errInvalidPageToken = errors.New("invalid page token")

// fill carries what a trade_updates fill event reports besides the order.
type fill struct {
	price       decimal.Decimal
	qty         decimal.Decimal
	positionQty decimal.Decimal
}

// submitOrder books an order. Market orders and marketable limit orders fill
// immediately at the current price; everything else rests as new.
func (s *MockAlpacaServer) submitOrder(request models.OrderRequest) (*models.Order, error) {
	s.mu.Lock()

	price, ok := s.currentPrices[request.Symbol]
	if !ok || price <= 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("asset %q not found", request.Symbol)
	}

	current := decimal.NewFromFloat(price)

	qty := request.Qty.TakeOr(decimal.Zero)
	if request.Notional.IsSome() {
		qty = request.Notional.Unwrap().DivRound(current, 9)
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:            s.nextOrderID(),
		ClientOrderID: request.ClientOrderID,
		CreatedAt:     now,
		UpdatedAt:     optional.Some(now),
		SubmittedAt:   optional.Some(now),
		AssetID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(request.Symbol)).String(),
		Symbol:        request.Symbol,
		AssetClass:    "us_equity",
		Notional:      request.Notional,
		Qty:           optional.Some(qty),
		FilledQty:     optional.Some(decimal.Zero),
		Type:          request.Type,
		Side:          request.Side,
		TimeInForce:   request.TimeInForce,
		LimitPrice:    request.LimitPrice,
		StopPrice:     request.StopPrice,
		OrderClass:    request.OrderClass,
		OrderType:     request.Type,
		Status:        "new",
		ExtendedHours: request.ExtendedHours,
		TrailPrice:    request.TrailPrice,
		TrailPercent:  request.TrailPercent,
	}

	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}

	if order.OrderClass == "" {
		order.OrderClass = models.OrderClassSimple
	}

	var filled *fill

	if marketable(order, current) {
		var err error

		filled, err = s.fillLocked(order, qty, current)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	s.orders[order.ID] = order
	s.orderIDs = append(s.orderIDs, order.ID)
	copied := *order
	s.mu.Unlock()

	s.publishTradeUpdate("new", &copied)

	if filled != nil {
		s.publishFill(&copied, *filled)
	}

	return &copied, nil
}

func marketable(order *models.Order, price decimal.Decimal) bool {
	switch order.Type {
	case models.OrderTypeMarket:
		return true
	case models.OrderTypeLimit:
		limit := order.LimitPrice.TakeOr(decimal.Zero)
		if order.Side == models.OrderSideBuy {
			return limit.GreaterThanOrEqual(price)
		}

		return limit.LessThanOrEqual(price)
	default:
		return false
	}
}

// fillLocked fills order completely at price and updates cash and positions.
// The caller must hold s.mu.
func (s *MockAlpacaServer) fillLocked(order *models.Order, qty, price decimal.Decimal) (*fill, error) {
	cost := qty.Mul(price)
	position := s.positions[order.Symbol]

	switch order.Side {
	case models.OrderSideBuy:
		if cost.GreaterThan(s.cash) {
			return nil, errors.New("insufficient buying power")
		}

		s.cash = s.cash.Sub(cost)

		if position == nil {
			position = &models.Position{
				AssetID:    order.AssetID,
				Symbol:     order.Symbol,
				Exchange:   "NASDAQ",
				AssetClass: order.AssetClass,
				Side:       "long",
			}
			s.positions[order.Symbol] = position
		}

		total := position.Qty.Add(qty)
		position.AvgEntryPrice = position.AvgEntryPrice.Mul(position.Qty).Add(cost).DivRound(total, 4)
		position.Qty = total
	case models.OrderSideSell:
		if position == nil || position.Qty.LessThan(qty) {
			return nil, errors.New("insufficient qty available for order")
		}

		s.cash = s.cash.Add(cost)
		position.Qty = position.Qty.Sub(qty)
	}

	positionQty := position.Qty
	if position.Qty.IsZero() {
		delete(s.positions, order.Symbol)
	} else {
		position.CurrentPrice = price
		position.MarketValue = position.Qty.Mul(price)
		position.CostBasis = position.Qty.Mul(position.AvgEntryPrice)
		position.UnrealizedPL = position.MarketValue.Sub(position.CostBasis)
		position.QtyAvailable = optional.Some(position.Qty)
	}

	now := time.Now().UTC()
	order.Status = "filled"
	order.FilledQty = optional.Some(qty)
	order.FilledAvgPrice = optional.Some(price)
	order.FilledAt = optional.Some(now)
	order.UpdatedAt = optional.Some(now)

	return &fill{price: price, qty: qty, positionQty: positionQty}, nil
}

// closePosition sells qty of the position with a market order. Zero sells everything.
func (s *MockAlpacaServer) closePosition(symbol string, qty decimal.Decimal) (*models.Order, error) {
	s.mu.RLock()
	position, ok := s.positions[symbol]
	if ok && (qty.IsZero() || qty.GreaterThan(position.Qty)) {
		qty = position.Qty
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("position %q does not exist", symbol)
	}

	return s.submitOrder(models.OrderRequest{
		Symbol:      symbol,
		Qty:         optional.Some(qty),
		Side:        models.OrderSideSell,
		Type:        models.OrderTypeMarket,
		TimeInForce: models.TimeInForceDay,
	})
}

// replaceOrder books a replacement of an open order and marks the original replaced.
func (s *MockAlpacaServer) replaceOrder(id string, request models.ReplaceOrderRequest) (*models.Order, int, error) {
	s.mu.Lock()

	original, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, http.StatusNotFound, errors.New("order not found")
	}

	if original.IsTerminal() {
		s.mu.Unlock()
		return nil, http.StatusUnprocessableEntity, errors.New("order is not replaceable")
	}

	now := time.Now().UTC()
	replacement := *original
	replacement.ID = s.nextOrderID()
	replacement.CreatedAt = now
	replacement.UpdatedAt = optional.Some(now)
	replacement.SubmittedAt = optional.Some(now)
	replacement.Replaces = optional.Some(original.ID)
	replacement.ClientOrderID = uuid.NewString()

	if request.Qty.IsSome() {
		replacement.Qty = request.Qty
	}

	if request.LimitPrice.IsSome() {
		replacement.LimitPrice = request.LimitPrice
	}

	if request.StopPrice.IsSome() {
		replacement.StopPrice = request.StopPrice
	}

	if request.TimeInForce != "" {
		replacement.TimeInForce = request.TimeInForce
	}

	if request.ClientOrderID != "" {
		replacement.ClientOrderID = request.ClientOrderID
	}

	original.Status = "replaced"
	original.ReplacedAt = optional.Some(now)
	original.ReplacedBy = optional.Some(replacement.ID)
	original.UpdatedAt = optional.Some(now)

	s.orders[replacement.ID] = &replacement
	s.orderIDs = append(s.orderIDs, replacement.ID)
	copied := replacement
	s.mu.Unlock()

	s.publishTradeUpdate("replaced", &copied)

	return &copied, http.StatusOK, nil
}

// cancelOpenOrders cancels every open order and returns copies of them.
func (s *MockAlpacaServer) cancelOpenOrders() []*models.Order {
	s.mu.Lock()

	var canceled []*models.Order

	for _, id := range s.orderIDs {
		order := s.orders[id]
		if order.IsTerminal() {
			continue
		}

		cancelLocked(order)
		copied := *order
		canceled = append(canceled, &copied)
	}
	s.mu.Unlock()

	for _, order := range canceled {
		s.publishTradeUpdate("canceled", order)
	}

	return canceled
}

func cancelLocked(order *models.Order) {
	now := time.Now().UTC()
	order.Status = "canceled"
	order.CanceledAt = optional.Some(now)
	order.UpdatedAt = optional.Some(now)
}
