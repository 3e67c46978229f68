package alpaca

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

// OnTradesPage is called for every page fetched by GetAllTrades.
// Returning false stops the pagination.
type OnTradesPage func(page models.TradesPage) bool

// do executes one request and maps transport failures and non-2xx responses to coded errors.
func (c *Client) do(ctx context.Context, client *resty.Client, method, path string, result any, configure func(*resty.Request)) error {
	apiErr := &errors.APIError{}

	req := client.R().SetContext(ctx).SetError(apiErr)
	if result != nil {
		req.SetResult(result)
	}

	if configure != nil {
		configure(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.currentMetrics().observeRequest(method, 0)

		return errors.Wrapf(errors.ErrCodeRequestFailed, err, "%s %s failed", method, path)
	}

	c.currentMetrics().observeRequest(method, resp.StatusCode())

	if !resp.IsError() {
		return nil
	}

	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}

	code := errors.ErrCodeUnexpectedStatus

	switch resp.StatusCode() {
	case http.StatusNotFound:
		code = errors.ErrCodeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		code = errors.ErrCodeUnauthorized
	}

	c.log.Debug("request rejected",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()))

	return errors.Wrapf(code, apiErr, "%s %s returned %d", method, path, resp.StatusCode())
}

func requireValue(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Newf(errors.ErrCodeMissingParameter, "%s is required", name)
	}

	return nil
}

// GetAccount returns the trading account.
func (c *Client) GetAccount(ctx context.Context) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, c.trading, http.MethodGet, "/v2/account", &account, nil); err != nil {
		return nil, err
	}

	return &account, nil
}

// GetClock returns the market clock.
func (c *Client) GetClock(ctx context.Context) (*models.Clock, error) {
	var clock models.Clock
	if err := c.do(ctx, c.trading, http.MethodGet, "/v2/clock", &clock, nil); err != nil {
		return nil, err
	}

	return &clock, nil
}

// GetPositions returns every open position.
func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := c.do(ctx, c.trading, http.MethodGet, "/v2/positions", &positions, nil); err != nil {
		return nil, err
	}

	return positions, nil
}

// GetPosition returns the open position for symbol (or asset id).
func (c *Client) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	if err := requireValue("symbol", symbol); err != nil {
		return nil, err
	}

	var position models.Position

	err := c.do(ctx, c.trading, http.MethodGet, "/v2/positions/{symbol}", &position, func(r *resty.Request) {
		r.SetPathParam("symbol", symbol)
	})
	if err != nil {
		return nil, err
	}

	return &position, nil
}

// CloseAllPositions liquidates every open position, optionally cancelling open orders first.
func (c *Client) CloseAllPositions(ctx context.Context, cancelOrders bool) ([]models.ClosePositionResult, error) {
	var results []models.ClosePositionResult

	err := c.do(ctx, c.trading, http.MethodDelete, "/v2/positions", &results, func(r *resty.Request) {
		r.SetQueryParams(ClosePositionParams{CancelOrders: cancelOrders}.query())
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// ClosePosition liquidates all or part of the position for symbol and returns the closing order.
func (c *Client) ClosePosition(ctx context.Context, symbol string, params ClosePositionParams) (*models.Order, error) {
	if err := requireValue("symbol", symbol); err != nil {
		return nil, err
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	var order models.Order

	err := c.do(ctx, c.trading, http.MethodDelete, "/v2/positions/{symbol}", &order, func(r *resty.Request) {
		r.SetPathParam("symbol", symbol).SetQueryParams(params.query())
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// PlaceOrder validates and submits an order. An empty ClientOrderID is filled with a UUID
// so the order can be looked up with GetOrderByClientID even if the response is lost.
func (c *Client) PlaceOrder(ctx context.Context, request models.OrderRequest) (*models.Order, error) {
	if request.ClientOrderID == "" {
		request.ClientOrderID = uuid.New().String()
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	var order models.Order

	err := c.do(ctx, c.trading, http.MethodPost, "/v2/orders", &order, func(r *resty.Request) {
		r.SetBody(request)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("order placed",
		zap.String("id", order.ID),
		zap.String("client_order_id", order.ClientOrderID),
		zap.String("symbol", order.Symbol))

	return &order, nil
}

// GetOrders lists orders matching params.
func (c *Client) GetOrders(ctx context.Context, params GetOrdersParams) ([]models.Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var orders []models.Order

	err := c.do(ctx, c.trading, http.MethodGet, "/v2/orders", &orders, func(r *resty.Request) {
		r.SetQueryParams(params.query())
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if err := requireValue("order id", orderID); err != nil {
		return nil, err
	}

	var order models.Order

	err := c.do(ctx, c.trading, http.MethodGet, "/v2/orders/{id}", &order, func(r *resty.Request) {
		r.SetPathParam("id", orderID)
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (c *Client) GetOrderByClientID(ctx context.Context, clientOrderID string) (*models.Order, error) {
	if err := requireValue("client order id", clientOrderID); err != nil {
		return nil, err
	}

	var order models.Order

	err := c.do(ctx, c.trading, http.MethodGet, "/v2/orders:by_client_order_id", &order, func(r *resty.Request) {
		r.SetQueryParam("client_order_id", clientOrderID)
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ReplaceOrder replaces an open order and returns the new order.
func (c *Client) ReplaceOrder(ctx context.Context, orderID string, request models.ReplaceOrderRequest) (*models.Order, error) {
	if err := requireValue("order id", orderID); err != nil {
		return nil, err
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	var order models.Order

	err := c.do(ctx, c.trading, http.MethodPatch, "/v2/orders/{id}", &order, func(r *resty.Request) {
		r.SetPathParam("id", orderID).SetBody(request)
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// CancelAllOrders attempts to cancel every open order and reports the outcome per order.
func (c *Client) CancelAllOrders(ctx context.Context) ([]models.OrderIDStatus, error) {
	var statuses []models.OrderIDStatus
	if err := c.do(ctx, c.trading, http.MethodDelete, "/v2/orders", &statuses, nil); err != nil {
		return nil, err
	}

	return statuses, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := requireValue("order id", orderID); err != nil {
		return err
	}

	return c.do(ctx, c.trading, http.MethodDelete, "/v2/orders/{id}", nil, func(r *resty.Request) {
		r.SetPathParam("id", orderID)
	})
}

// GetTrades returns one page of historical trades for symbol.
func (c *Client) GetTrades(ctx context.Context, symbol string, params GetTradesParams) (*models.TradesPage, error) {
	if err := requireValue("symbol", symbol); err != nil {
		return nil, err
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	var page models.TradesPage

	err := c.do(ctx, c.data, http.MethodGet, "/v2/stocks/{symbol}/trades", &page, func(r *resty.Request) {
		r.SetPathParam("symbol", symbol).SetQueryParams(params.query())
	})
	if err != nil {
		return nil, err
	}

	return &page, nil
}

// GetAllTrades follows next_page_token from params.PageToken until the last page,
// handing every page to onPage. It returns the number of trades fetched.
func (c *Client) GetAllTrades(ctx context.Context, symbol string, params GetTradesParams, onPage OnTradesPage) (int, error) {
	total := 0

	for {
		page, err := c.GetTrades(ctx, symbol, params)
		if err != nil {
			return total, err
		}

		total += len(page.Trades)

		if onPage != nil && !onPage(*page) {
			return total, nil
		}

		if !page.HasNextPage() {
			return total, nil
		}

		params.PageToken = *page.NextPageToken
	}
}

// GetNews returns one page of news articles.
func (c *Client) GetNews(ctx context.Context, params GetNewsParams) (*models.NewsPage, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var page models.NewsPage

	err := c.do(ctx, c.data, http.MethodGet, "/v1beta1/news", &page, func(r *resty.Request) {
		r.SetQueryParams(params.query())
	})
	if err != nil {
		return nil, err
	}

	return &page, nil
}
