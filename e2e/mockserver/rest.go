package mockserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

// Error codes the API puts in its error bodies.
const (
	codeUnauthorized   = 40110000
	codeNotFound       = 40410000
	codeUnprocessable  = 42210000
	codeInvalidRequest = 40010001
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// authenticate rejects requests that do not carry the configured credential headers.
func (s *MockAlpacaServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r.Header.Get("APCA-API-KEY-ID"), r.Header.Get("APCA-API-SECRET-KEY")) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "request is not authorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *MockAlpacaServer) authorized(key, secret string) bool {
	return key == s.config.APIKey && secret == s.config.APISecret
}

// handleAccount handles GET /v2/account
func (s *MockAlpacaServer) handleAccount(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	longValue := decimal.Zero
	for _, position := range s.positions {
		longValue = longValue.Add(position.MarketValue)
	}

	equity := s.cash.Add(longValue)

	writeJSON(w, http.StatusOK, models.Account{
		ID:              "3f1c6a6e-4f54-4d1e-9d2f-9a3b5b8f0c11",
		AccountNumber:   "PA3MOCK00001",
		Status:          models.AccountStatusActive,
		Currency:        "USD",
		Cash:            s.cash,
		PortfolioValue:  equity,
		Equity:          equity,
		LastEquity:      decimal.NewFromFloat(s.config.InitialCash),
		BuyingPower:     s.cash.Mul(decimal.NewFromInt(2)),
		LongMarketValue: longValue,
		Multiplier:      decimal.NewFromInt(2),
		ShortingEnabled: true,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

// handleClock handles GET /v2/clock
func (s *MockAlpacaServer) handleClock(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()

	clock.Timestamp = optional.Some(time.Now().UTC())
	writeJSON(w, http.StatusOK, clock)
}

// handlePositions handles GET /v2/positions
func (s *MockAlpacaServer) handlePositions(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]models.Position, 0, len(s.positions))
	for _, position := range s.positions {
		positions = append(positions, *position)
	}

	slices.SortFunc(positions, func(a, b models.Position) int { return strings.Compare(a.Symbol, b.Symbol) })

	writeJSON(w, http.StatusOK, positions)
}

// handlePosition handles GET /v2/positions/{symbol}
func (s *MockAlpacaServer) handlePosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "position does not exist")
		return
	}

	writeJSON(w, http.StatusOK, position)
}

// handleCloseAllPositions handles DELETE /v2/positions
func (s *MockAlpacaServer) handleCloseAllPositions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cancel_orders") == "true" {
		s.cancelOpenOrders()
	}

	s.mu.RLock()
	symbols := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		symbols = append(symbols, symbol)
	}
	s.mu.RUnlock()

	slices.Sort(symbols)

	results := make([]models.ClosePositionResult, 0, len(symbols))
	for _, symbol := range symbols {
		order, err := s.closePosition(symbol, decimal.Zero)
		if err != nil {
			continue
		}

		results = append(results, models.ClosePositionResult{Symbol: symbol, Status: http.StatusOK, Body: order})
	}

	writeJSON(w, http.StatusMultiStatus, results)
}

// handleClosePosition handles DELETE /v2/positions/{symbol}
func (s *MockAlpacaServer) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	query := r.URL.Query()

	qty := decimal.Zero

	s.mu.RLock()
	position, ok := s.positions[symbol]
	if ok {
		switch {
		case query.Get("qty") != "":
			qty, _ = decimal.NewFromString(query.Get("qty"))
		case query.Get("percentage") != "":
			pct, _ := decimal.NewFromString(query.Get("percentage"))
			qty = position.Qty.Mul(pct).Div(decimal.NewFromInt(100))
		}
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "position does not exist")
		return
	}

	order, err := s.closePosition(symbol, qty)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeUnprocessable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// handleCreateOrder handles POST /v2/orders
func (s *MockAlpacaServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var request models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order body")
		return
	}

	if err := request.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeUnprocessable, err.Error())
		return
	}

	order, err := s.submitOrder(request)
	if err != nil {
		writeError(w, http.StatusForbidden, codeUnprocessable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// handleListOrders handles GET /v2/orders
func (s *MockAlpacaServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := query.Get("status")

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	var symbols []string
	if query.Get("symbols") != "" {
		symbols = strings.Split(query.Get("symbols"), ",")
	}

	s.mu.RLock()
	orders := make([]models.Order, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		order := s.orders[id]

		switch {
		case status == "closed" && !order.IsTerminal():
			continue
		case (status == "" || status == "open") && order.IsTerminal():
			continue
		case len(symbols) > 0 && !slices.Contains(symbols, order.Symbol):
			continue
		}

		orders = append(orders, *order)
	}
	s.mu.RUnlock()

	if query.Get("direction") != "asc" {
		slices.Reverse(orders)
	}

	if len(orders) > limit {
		orders = orders[:limit]
	}

	writeJSON(w, http.StatusOK, orders)
}

// handleGetOrder handles GET /v2/orders/{id}
func (s *MockAlpacaServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order := s.GetOrder(mux.Vars(r)["id"])
	if order == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// handleOrderByClientID handles GET /v2/orders:by_client_order_id
func (s *MockAlpacaServer) handleOrderByClientID(w http.ResponseWriter, r *http.Request) {
	clientOrderID := r.URL.Query().Get("client_order_id")

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, order := range s.orders {
		if order.ClientOrderID == clientOrderID {
			writeJSON(w, http.StatusOK, order)
			return
		}
	}

	writeError(w, http.StatusNotFound, codeNotFound, "order not found")
}

// handleReplaceOrder handles PATCH /v2/orders/{id}
func (s *MockAlpacaServer) handleReplaceOrder(w http.ResponseWriter, r *http.Request) {
	var request models.ReplaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid replace body")
		return
	}

	replacement, status, err := s.replaceOrder(mux.Vars(r)["id"], request)
	if err != nil {
		writeError(w, status, codeUnprocessable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, replacement)
}

// handleCancelAllOrders handles DELETE /v2/orders
func (s *MockAlpacaServer) handleCancelAllOrders(w http.ResponseWriter, _ *http.Request) {
	canceled := s.cancelOpenOrders()

	statuses := make([]models.OrderIDStatus, 0, len(canceled))
	for _, order := range canceled {
		statuses = append(statuses, models.OrderIDStatus{ID: order.ID, Status: http.StatusOK, Body: order})
	}

	writeJSON(w, http.StatusMultiStatus, statuses)
}

// handleCancelOrder handles DELETE /v2/orders/{id}
func (s *MockAlpacaServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, codeNotFound, "order not found")

		return
	}

	if order.IsTerminal() {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, codeUnprocessable, "order is not cancelable")

		return
	}

	cancelLocked(order)
	copied := *order
	s.mu.Unlock()

	s.publishTradeUpdate("canceled", &copied)
	w.WriteHeader(http.StatusNoContent)
}

// handleTrades handles GET /v2/stocks/{symbol}/trades
func (s *MockAlpacaServer) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	query := r.URL.Query()

	s.mu.RLock()
	trades := s.history[symbol]
	s.mu.RUnlock()

	trades = slices.DeleteFunc(slices.Clone(trades), func(t models.HistoricalTrade) bool {
		return !inRange(t.Timestamp, query.Get("start"), query.Get("end"))
	})

	page, next, err := paginate(trades, query.Get("page_token"), query.Get("limit"), 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.TradesPage{
		Trades:        page,
		Symbol:        symbol,
		NextPageToken: next,
	})
}

// handleNews handles GET /v1beta1/news
func (s *MockAlpacaServer) handleNews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var symbols []string
	if query.Get("symbols") != "" {
		symbols = strings.Split(query.Get("symbols"), ",")
	}

	s.mu.RLock()
	articles := slices.Clone(s.news)
	s.mu.RUnlock()

	articles = slices.DeleteFunc(articles, func(a models.NewsArticle) bool {
		if !inRange(a.CreatedAt, query.Get("start"), query.Get("end")) {
			return true
		}

		if len(symbols) == 0 {
			return false
		}

		return !slices.ContainsFunc(a.Symbols, func(symbol string) bool { return slices.Contains(symbols, symbol) })
	})

	slices.SortStableFunc(articles, func(a, b models.NewsArticle) int { return a.CreatedAt.Compare(b.CreatedAt) })

	if query.Get("sort") != "asc" {
		slices.Reverse(articles)
	}

	page, next, err := paginate(articles, query.Get("page_token"), query.Get("limit"), 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.NewsPage{News: page, NextPageToken: next})
}

// paginate slices items using an offset page token.
func paginate[T any](items []T, token, limitParam string, defaultLimit int) ([]T, *string, error) {
	offset := 0

	if token != "" {
		var err error

		offset, err = strconv.Atoi(token)
		if err != nil || offset < 0 || offset > len(items) {
			return nil, nil, errInvalidPageToken
		}
	}

	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	end := min(offset+limit, len(items))
	page := items[offset:end]

	if page == nil {
		page = []T{}
	}

	if end == len(items) {
		return page, nil, nil
	}

	next := strconv.Itoa(end)

	return page, &next, nil
}

func inRange(t time.Time, start, end string) bool {
	if from, err := time.Parse(time.RFC3339, start); err == nil && t.Before(from) {
		return false
	}

	if to, err := time.Parse(time.RFC3339, end); err == nil && t.After(to) {
		return false
	}

	return true
}

func (s *MockAlpacaServer) nextOrderID() string {
	s.orderIDSeq++
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.FormatInt(s.orderIDSeq, 10))).String()
}
