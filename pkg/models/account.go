// Package models holds the REST data types of the brokerage API.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle status of a brokerage account.
type AccountStatus string

const (
	AccountStatusOnboarding       AccountStatus = "ONBOARDING"
	AccountStatusSubmissionFailed AccountStatus = "SUBMISSION_FAILED"
	AccountStatusSubmitted        AccountStatus = "SUBMITTED"
	AccountStatusAccountUpdated   AccountStatus = "ACCOUNT_UPDATED"
	AccountStatusApprovalPending  AccountStatus = "APPROVAL_PENDING"
	AccountStatusActive           AccountStatus = "ACTIVE"
	AccountStatusRejected         AccountStatus = "REJECTED"
)

// CanTrade reports whether orders may be submitted for an account in this status.
func (s AccountStatus) CanTrade() bool {
	return s == AccountStatusActive
}

// Account is the trading account returned by GET /v2/account.
type Account struct {
	ID                   string          `json:"id" yaml:"id"`
	AccountNumber        string          `json:"account_number" yaml:"account_number"`
	Status               AccountStatus   `json:"status" yaml:"status"`
	Currency             string          `json:"currency" yaml:"currency"`
	Cash                 decimal.Decimal `json:"cash" yaml:"cash"`
	PortfolioValue       decimal.Decimal `json:"portfolio_value" yaml:"portfolio_value"`
	Equity               decimal.Decimal `json:"equity" yaml:"equity"`
	LastEquity           decimal.Decimal `json:"last_equity" yaml:"last_equity"`
	BuyingPower          decimal.Decimal `json:"buying_power" yaml:"buying_power"`
	LongMarketValue      decimal.Decimal `json:"long_market_value" yaml:"long_market_value"`
	ShortMarketValue     decimal.Decimal `json:"short_market_value" yaml:"short_market_value"`
	InitialMargin        decimal.Decimal `json:"initial_margin" yaml:"initial_margin"`
	MaintenanceMargin    decimal.Decimal `json:"maintenance_margin" yaml:"maintenance_margin"`
	Multiplier           decimal.Decimal `json:"multiplier" yaml:"multiplier"`
	DaytradeCount        int             `json:"daytrade_count" yaml:"daytrade_count"`
	PatternDayTrader     bool            `json:"pattern_day_trader" yaml:"pattern_day_trader"`
	TradingBlocked       bool            `json:"trading_blocked" yaml:"trading_blocked"`
	TransfersBlocked     bool            `json:"transfers_blocked" yaml:"transfers_blocked"`
	AccountBlocked       bool            `json:"account_blocked" yaml:"account_blocked"`
	ShortingEnabled      bool            `json:"shorting_enabled" yaml:"shorting_enabled"`
	TradeSuspendedByUser bool            `json:"trade_suspended_by_user" yaml:"trade_suspended_by_user"`
	CreatedAt            time.Time       `json:"created_at" yaml:"created_at"`
}
