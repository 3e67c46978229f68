package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

type ModelsTestSuite struct {
	suite.Suite
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsTestSuite))
}

func (suite *ModelsTestSuite) marketOrder() OrderRequest {
	return OrderRequest{
		Symbol:      "AAPL",
		Qty:         optional.Some(decimal.NewFromInt(1)),
		Side:        OrderSideBuy,
		Type:        OrderTypeMarket,
		TimeInForce: TimeInForceDay,
	}
}

func (suite *ModelsTestSuite) TestOrderRequestValidate() {
	tests := []struct {
		name    string
		mutate  func(r *OrderRequest)
		wantErr bool
	}{
		{name: "valid market order", mutate: func(r *OrderRequest) {}},
		{name: "missing symbol", mutate: func(r *OrderRequest) { r.Symbol = "" }, wantErr: true},
		{name: "bad side", mutate: func(r *OrderRequest) { r.Side = "hold" }, wantErr: true},
		{name: "bad time in force", mutate: func(r *OrderRequest) { r.TimeInForce = "forever" }, wantErr: true},
		{
			name:    "qty and notional",
			mutate:  func(r *OrderRequest) { r.Notional = optional.Some(decimal.NewFromInt(100)) },
			wantErr: true,
		},
		{name: "neither qty nor notional", mutate: func(r *OrderRequest) { r.Qty = optional.None[decimal.Decimal]() }, wantErr: true},
		{
			name: "notional only",
			mutate: func(r *OrderRequest) {
				r.Qty = optional.None[decimal.Decimal]()
				r.Notional = optional.Some(decimal.RequireFromString("250.50"))
			},
		},
		{name: "zero qty", mutate: func(r *OrderRequest) { r.Qty = optional.Some(decimal.Zero) }, wantErr: true},
		{name: "limit without price", mutate: func(r *OrderRequest) { r.Type = OrderTypeLimit }, wantErr: true},
		{
			name: "limit with price",
			mutate: func(r *OrderRequest) {
				r.Type = OrderTypeLimit
				r.LimitPrice = optional.Some(decimal.RequireFromString("187.25"))
			},
		},
		{
			name: "stop limit missing stop",
			mutate: func(r *OrderRequest) {
				r.Type = OrderTypeStopLimit
				r.LimitPrice = optional.Some(decimal.NewFromInt(10))
			},
			wantErr: true,
		},
		{name: "trailing stop without trail", mutate: func(r *OrderRequest) { r.Type = OrderTypeTrailingStop }, wantErr: true},
		{
			name: "bracket without legs",
			mutate: func(r *OrderRequest) {
				r.OrderClass = OrderClassBracket
				r.TakeProfit = &TakeProfit{LimitPrice: decimal.NewFromInt(200)}
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			req := suite.marketOrder()
			tc.mutate(&req)

			err := req.Validate()
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *ModelsTestSuite) TestOrderRequestJSONOmitsUnsetOptionals() {
	req := suite.marketOrder()

	data, err := json.Marshal(req)
	suite.Require().NoError(err)

	var fields map[string]any
	suite.Require().NoError(json.Unmarshal(data, &fields))
	suite.Equal("1", fields["qty"])
	suite.NotContains(fields, "notional")
	suite.NotContains(fields, "limit_price")
	suite.NotContains(fields, "take_profit")
}

func (suite *ModelsTestSuite) TestReplaceOrderRequestValidate() {
	empty := ReplaceOrderRequest{}
	suite.Error(empty.Validate())

	req := ReplaceOrderRequest{LimitPrice: optional.Some(decimal.NewFromInt(12))}
	suite.NoError(req.Validate())

	bad := ReplaceOrderRequest{TimeInForce: "week"}
	suite.Error(bad.Validate())
}

func (suite *ModelsTestSuite) TestDecodeOrder() {
	payload := `{
		"id": "61e69015-8549-4bfd-b9c3-01e75843f47d",
		"client_order_id": "eb9e2aaa-f71a-4f51-b5b4-52a6c565dad4",
		"created_at": "2021-03-16T18:38:01.942282Z",
		"filled_at": null,
		"asset_id": "b0b6dd9d-8b9b-48a9-ba46-b9d54906e415",
		"symbol": "AAPL",
		"asset_class": "us_equity",
		"qty": "1",
		"filled_qty": "0",
		"filled_avg_price": null,
		"type": "market",
		"side": "buy",
		"time_in_force": "day",
		"status": "accepted",
		"legs": null
	}`

	var order Order
	suite.Require().NoError(json.Unmarshal([]byte(payload), &order))
	suite.Equal("AAPL", order.Symbol)
	suite.True(order.Qty.IsSome())
	suite.True(order.Qty.Unwrap().Equal(decimal.NewFromInt(1)))
	suite.True(order.FilledAt.IsNone())
	suite.True(order.FilledAvgPrice.IsNone())
	suite.Equal(OrderTypeMarket, order.Type)
	suite.False(order.IsTerminal())

	order.Status = "filled"
	suite.True(order.IsTerminal())
}

func (suite *ModelsTestSuite) TestDecodePosition() {
	payload := `{
		"asset_id": "904837e3-3b76-47ec-b432-046db621571b",
		"symbol": "AAPL",
		"exchange": "NASDAQ",
		"asset_class": "us_equity",
		"avg_entry_price": "100.0",
		"qty": "5",
		"side": "long",
		"market_value": "600.0",
		"cost_basis": "500.0",
		"unrealized_pl": "100.0",
		"unrealized_plpc": "0.20",
		"unrealized_intraday_pl": "10.0",
		"unrealized_intraday_plpc": "0.0084",
		"current_price": "120.0",
		"lastday_price": "119.0",
		"change_today": "0.0084",
		"qty_available": "5"
	}`

	var position Position
	suite.Require().NoError(json.Unmarshal([]byte(payload), &position))
	suite.True(position.IsLong())
	suite.Equal("600", position.MarketValue.String())
	suite.True(position.QtyAvailable.IsSome())
	suite.True(position.AssetMarginable.IsNone())
}

func (suite *ModelsTestSuite) TestAccountStatus() {
	suite.True(AccountStatusActive.CanTrade())
	suite.False(AccountStatusApprovalPending.CanTrade())

	var account Account
	suite.Require().NoError(json.Unmarshal([]byte(`{"id":"a","status":"ACTIVE","cash":"1000.5","buying_power":"2001"}`), &account))
	suite.Equal(AccountStatusActive, account.Status)
	suite.Equal("1000.5", account.Cash.String())
}

func (suite *ModelsTestSuite) TestTradesPage() {
	var page TradesPage
	payload := `{"trades":[{"t":"2021-02-06T13:04:56.334320128Z","x":"C","p":387.62,"s":100,"c":[" ","T"],"i":52983525029461,"z":"B"}],"symbol":"SPY","next_page_token":"MjAyMQ=="}`
	suite.Require().NoError(json.Unmarshal([]byte(payload), &page))
	suite.Require().Len(page.Trades, 1)
	suite.Equal(334320128, page.Trades[0].Timestamp.Nanosecond())
	suite.Equal(int64(52983525029461), page.Trades[0].ID)
	suite.True(page.HasNextPage())

	var last TradesPage
	suite.Require().NoError(json.Unmarshal([]byte(`{"trades":null,"symbol":"SPY","next_page_token":null}`), &last))
	suite.False(last.HasNextPage())
}

func (suite *ModelsTestSuite) TestClock() {
	var clock Clock
	payload := `{"is_open":false,"next_open":"2025-08-25T09:30:00-04:00","next_close":"2025-08-25T16:00:00-04:00","timestamp":"2025-08-23T22:23:50.659466386-04:00"}`
	suite.Require().NoError(json.Unmarshal([]byte(payload), &clock))
	suite.True(clock.Timestamp.IsSome())

	now := clock.Timestamp.Unwrap()
	suite.Equal(clock.NextOpen.Sub(now), clock.UntilNextChange(now))

	clock.IsOpen = true
	suite.Equal(clock.NextClose.Sub(now), clock.UntilNextChange(now))
}

func (suite *ModelsTestSuite) TestParseTimestampMillis() {
	millis, err := ParseTimestampMillis("2024-01-02T03:04:05.678901Z")
	suite.NoError(err)
	suite.Equal(time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC).UnixMilli(), millis)

	millis, err = ParseTimestampMillis("2024-01-02T03:04:05Z")
	suite.NoError(err)
	suite.Equal(int64(1704164645000), millis)

	_, err = ParseTimestampMillis("yesterday")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
