package models

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// Position is an open position as returned by the positions endpoints.
// Quantities and prices are carried as decimals because the API sends them as strings.
type Position struct {
	AssetID                string                           `json:"asset_id" yaml:"asset_id"`
	Symbol                 string                           `json:"symbol" yaml:"symbol"`
	Exchange               string                           `json:"exchange" yaml:"exchange"`
	AssetClass             string                           `json:"asset_class" yaml:"asset_class"`
	AvgEntryPrice          decimal.Decimal                  `json:"avg_entry_price" yaml:"avg_entry_price"`
	Qty                    decimal.Decimal                  `json:"qty" yaml:"qty"`
	Side                   string                           `json:"side" yaml:"side"`
	MarketValue            decimal.Decimal                  `json:"market_value" yaml:"market_value"`
	CostBasis              decimal.Decimal                  `json:"cost_basis" yaml:"cost_basis"`
	UnrealizedPL           decimal.Decimal                  `json:"unrealized_pl" yaml:"unrealized_pl"`
	UnrealizedPLPC         decimal.Decimal                  `json:"unrealized_plpc" yaml:"unrealized_plpc"`
	UnrealizedIntradayPL   decimal.Decimal                  `json:"unrealized_intraday_pl" yaml:"unrealized_intraday_pl"`
	UnrealizedIntradayPLPC decimal.Decimal                  `json:"unrealized_intraday_plpc" yaml:"unrealized_intraday_plpc"`
	CurrentPrice           decimal.Decimal                  `json:"current_price" yaml:"current_price"`
	LastdayPrice           decimal.Decimal                  `json:"lastday_price" yaml:"lastday_price"`
	ChangeToday            decimal.Decimal                  `json:"change_today" yaml:"change_today"`
	AssetMarginable        optional.Option[bool]            `json:"asset_marginable,omitempty" yaml:"asset_marginable,omitempty"`
	QtyAvailable           optional.Option[decimal.Decimal] `json:"qty_available,omitempty" yaml:"qty_available,omitempty"`
}

// IsLong reports whether the position is long.
func (p Position) IsLong() bool {
	return p.Side == "long"
}

// ClosePositionResult is one entry of the DELETE /v2/positions response.
type ClosePositionResult struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Status int    `json:"status" yaml:"status"`
	Body   *Order `json:"body,omitempty" yaml:"body,omitempty"`
}
