package alpaca

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// Query defaults of the REST endpoints.
const (
	DefaultOrdersLimit = 500
	MaxTradesLimit     = 10000
	DefaultNewsLimit   = 50
)

// ClosePositionParams selects how much of a position to liquidate.
// Qty and Percentage are mutually exclusive; neither closes the whole position.
type ClosePositionParams struct {
	CancelOrders bool
	Qty          optional.Option[decimal.Decimal]
	Percentage   optional.Option[decimal.Decimal]
}

func (p ClosePositionParams) Validate() error {
	if p.Qty.IsSome() && p.Percentage.IsSome() {
		return errors.New(errors.ErrCodeInvalidParameter, "qty and percentage cannot both be set")
	}

	if p.Percentage.IsSome() {
		pct := p.Percentage.Unwrap()
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Newf(errors.ErrCodeInvalidParameter, "percentage must be between 0 and 100, got %s", pct)
		}
	}

	return nil
}

func (p ClosePositionParams) query() map[string]string {
	query := map[string]string{"cancel_orders": strconv.FormatBool(p.CancelOrders)}
	if p.Qty.IsSome() {
		query["qty"] = p.Qty.Unwrap().String()
	}

	if p.Percentage.IsSome() {
		query["percentage"] = p.Percentage.Unwrap().String()
	}

	return query
}

// GetOrdersParams filters GET /v2/orders. Zero values take the API defaults
// (open orders, newest first, up to DefaultOrdersLimit).
type GetOrdersParams struct {
	Status    string `validate:"omitempty,oneof=open closed all"`
	Limit     int    `validate:"gte=0,lte=500"`
	After     time.Time
	Until     time.Time
	Direction string `validate:"omitempty,oneof=asc desc"`
	Nested    optional.Option[bool]
	Symbols   []string
}

func (p GetOrdersParams) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order query", err)
	}

	return nil
}

func (p GetOrdersParams) query() map[string]string {
	query := map[string]string{
		"status":    valueOr(p.Status, "open"),
		"limit":     strconv.Itoa(intOr(p.Limit, DefaultOrdersLimit)),
		"direction": valueOr(p.Direction, "desc"),
	}
	setTime(query, "after", p.After)
	setTime(query, "until", p.Until)

	if p.Nested.IsSome() {
		query["nested"] = strconv.FormatBool(p.Nested.Unwrap())
	}

	if len(p.Symbols) > 0 {
		query["symbols"] = strings.Join(p.Symbols, ",")
	}

	return query
}

// GetTradesParams pages through historical trades. Start and End are sent
// with second precision because the endpoint rejects fractional seconds.
type GetTradesParams struct {
	Start     time.Time
	End       time.Time
	Limit     int `validate:"gte=0,lte=10000"`
	PageToken string
}

func (p GetTradesParams) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid trades query", err)
	}

	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return errors.New(errors.ErrCodeInvalidParameter, "end must not be before start")
	}

	return nil
}

func (p GetTradesParams) query() map[string]string {
	query := map[string]string{"limit": strconv.Itoa(intOr(p.Limit, MaxTradesLimit))}
	setTime(query, "start", p.Start)
	setTime(query, "end", p.End)

	if p.PageToken != "" {
		query["page_token"] = p.PageToken
	}

	return query
}

// GetNewsParams filters GET /v1beta1/news.
type GetNewsParams struct {
	Symbols   []string
	Start     time.Time
	End       time.Time
	SortAsc   bool
	Limit     int `validate:"gte=0,lte=50"`
	PageToken string
}

func (p GetNewsParams) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid news query", err)
	}

	return nil
}

func (p GetNewsParams) query() map[string]string {
	sort := "desc"
	if p.SortAsc {
		sort = "asc"
	}

	query := map[string]string{
		"sort":  sort,
		"limit": strconv.Itoa(intOr(p.Limit, DefaultNewsLimit)),
	}
	setTime(query, "start", p.Start)
	setTime(query, "end", p.End)

	if len(p.Symbols) > 0 {
		query["symbols"] = strings.Join(p.Symbols, ",")
	}

	if p.PageToken != "" {
		query["page_token"] = p.PageToken
	}

	return query
}

func setTime(query map[string]string, key string, t time.Time) {
	if !t.IsZero() {
		query[key] = t.UTC().Truncate(time.Second).Format(time.RFC3339)
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

func intOr(value, fallback int) int {
	if value == 0 {
		return fallback
	}

	return value
}
