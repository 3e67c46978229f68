// Package mockserver provides a mock brokerage server for testing.
// It implements the REST endpoints and the market data, news and account
// WebSocket channels closely enough for the client to run against it.
package mockserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-alpaca/mocks"
	"github.com/rxtech-lab/argo-alpaca/pkg/models"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// Credentials accepted when ServerConfig leaves them empty.
const (
	DefaultAPIKey    = "test-key"
	DefaultAPISecret = "test-secret"
)

// MockAlpacaServer provides a mock brokerage server for testing.
type MockAlpacaServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	config    ServerConfig
	generator *mocks.DataGenerator

	// State management
	cash          decimal.Decimal
	currentPrices map[string]float64
	orders        map[string]*models.Order
	orderIDs      []string
	positions     map[string]*models.Position
	history       map[string][]models.HistoricalTrade
	news          []models.NewsArticle
	clock         models.Clock
	orderIDSeq    int64

	// WebSocket connections
	wsMu           sync.RWMutex
	wsConnections  map[*wsClient]bool
	newsClients    map[*wsClient]bool
	accountClients map[*wsClient]bool

	stopStreaming chan struct{}
	stopOnce      sync.Once
}

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	APIKey    string
	APISecret string
	// InitialCash is the account cash balance.
	InitialCash float64
	// Prices maps symbol to its starting price. FAKEPACA is always added.
	Prices map[string]float64
	// Generator drives the streamed trades, quotes and bars.
	Generator mocks.GeneratorConfig
	// Seed of the data generator.
	Seed int64
	// StreamInterval is the interval between market data frames.
	StreamInterval time.Duration
	// BarEvery emits a bar every n market data frames.
	BarEvery int
	// HistoryCount is the number of historical trades generated per symbol.
	HistoryCount int
	// News is served by the news endpoint, newest last.
	News []models.NewsArticle
	// SkipWelcome suppresses the connected/authenticated frames of the market data channels.
	SkipWelcome bool
	// SilentAuth suppresses the authorization reply of the account channel.
	SilentAuth bool
}

// NewMockAlpacaServer creates a new mock server.
func NewMockAlpacaServer(config ServerConfig) *MockAlpacaServer {
	if config.APIKey == "" {
		config.APIKey = DefaultAPIKey
	}

	if config.APISecret == "" {
		config.APISecret = DefaultAPISecret
	}

	if config.StreamInterval == 0 {
		config.StreamInterval = 50 * time.Millisecond
	}

	if config.BarEvery == 0 {
		config.BarEvery = 10
	}

	if config.InitialCash == 0 {
		config.InitialCash = 100000
	}

	if config.Generator.Symbol == "" {
		config.Generator = mocks.DefaultConfig()
	}

	server := &MockAlpacaServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		config:         config,
		generator:      mocks.NewDataGenerator(config.Seed),
		cash:           decimal.NewFromFloat(config.InitialCash),
		currentPrices:  map[string]float64{"FAKEPACA": config.Generator.InitialPrice},
		orders:         make(map[string]*models.Order),
		positions:      make(map[string]*models.Position),
		history:        make(map[string][]models.HistoricalTrade),
		news:           append([]models.NewsArticle(nil), config.News...),
		orderIDSeq:     1000,
		wsConnections:  make(map[*wsClient]bool),
		newsClients:    make(map[*wsClient]bool),
		accountClients: make(map[*wsClient]bool),
		stopStreaming:  make(chan struct{}),
	}

	for symbol, price := range config.Prices {
		server.currentPrices[symbol] = price
	}

	for symbol, price := range server.currentPrices {
		server.history[symbol] = server.generateHistory(symbol, price, config.HistoryCount)
	}

	now := time.Now().UTC()
	server.clock = models.Clock{
		IsOpen:    true,
		NextOpen:  now.Add(20 * time.Hour).Truncate(time.Hour),
		NextClose: now.Add(4 * time.Hour).Truncate(time.Hour),
	}

	return server
}

func (s *MockAlpacaServer) generateHistory(symbol string, price float64, count int) []models.HistoricalTrade {
	config := s.config.Generator
	config.Symbol = symbol

	at := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	trades := make([]models.HistoricalTrade, 0, count)

	for range count {
		var trade stream.Trade

		trade, price = s.generator.NextTrade(config, price, at)
		trades = append(trades, models.HistoricalTrade{
			Timestamp:  trade.Timestamp,
			Exchange:   trade.Exchange,
			Price:      trade.Price,
			Size:       trade.Size,
			Conditions: trade.Conditions,
			ID:         trade.ID,
			Tape:       trade.Tape,
		})
		at = at.Add(time.Second)
	}

	return trades
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockAlpacaServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()

	// The news path serves both the news stream and the REST endpoint, so the
	// upgrade route goes first.
	router.HandleFunc("/v1beta1/news", s.handleNewsWebSocket).Headers("Upgrade", "websocket")
	router.HandleFunc("/stream", s.handleAccountWebSocket)

	rest := router.NewRoute().Subrouter()
	rest.Use(s.authenticate)
	rest.HandleFunc("/v2/account", s.handleAccount).Methods(http.MethodGet)
	rest.HandleFunc("/v2/clock", s.handleClock).Methods(http.MethodGet)
	rest.HandleFunc("/v2/positions", s.handlePositions).Methods(http.MethodGet)
	rest.HandleFunc("/v2/positions", s.handleCloseAllPositions).Methods(http.MethodDelete)
	rest.HandleFunc("/v2/positions/{symbol}", s.handlePosition).Methods(http.MethodGet)
	rest.HandleFunc("/v2/positions/{symbol}", s.handleClosePosition).Methods(http.MethodDelete)
	rest.HandleFunc("/v2/orders", s.handleCreateOrder).Methods(http.MethodPost)
	rest.HandleFunc("/v2/orders", s.handleListOrders).Methods(http.MethodGet)
	rest.HandleFunc("/v2/orders", s.handleCancelAllOrders).Methods(http.MethodDelete)
	rest.HandleFunc("/v2/orders:by_client_order_id", s.handleOrderByClientID).Methods(http.MethodGet)
	rest.HandleFunc("/v2/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	rest.HandleFunc("/v2/orders/{id}", s.handleReplaceOrder).Methods(http.MethodPatch)
	rest.HandleFunc("/v2/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	rest.HandleFunc("/v2/stocks/{symbol}/trades", s.handleTrades).Methods(http.MethodGet)
	rest.HandleFunc("/v1beta1/news", s.handleNews).Methods(http.MethodGet)

	router.HandleFunc("/v2/{feed}", s.handleMarketDataWebSocket)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockAlpacaServer) Stop() error {
	s.stopOnce.Do(func() { close(s.stopStreaming) })

	s.wsMu.Lock()
	for client := range s.wsConnections {
		client.conn.Close()
	}

	s.wsConnections = make(map[*wsClient]bool)
	s.newsClients = make(map[*wsClient]bool)
	s.accountClients = make(map[*wsClient]bool)
	s.wsMu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *MockAlpacaServer) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *MockAlpacaServer) BaseURL() string {
	return "http://" + s.Address()
}

// WebSocketURL returns the WebSocket URL for the server.
func (s *MockAlpacaServer) WebSocketURL() string {
	return "ws://" + s.Address()
}

// APIKey returns the accepted key id.
func (s *MockAlpacaServer) APIKey() string {
	return s.config.APIKey
}

// APISecret returns the accepted secret key.
func (s *MockAlpacaServer) APISecret() string {
	return s.config.APISecret
}

// SetPrice sets the current price for a symbol.
func (s *MockAlpacaServer) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentPrices[symbol] = price
}

// GetPrice returns the current price for a symbol.
func (s *MockAlpacaServer) GetPrice(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentPrices[symbol]
}

// SetClock replaces the market clock.
func (s *MockAlpacaServer) SetClock(clock models.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = clock
}

// GetOrder returns a copy of an order by ID.
func (s *MockAlpacaServer) GetOrder(id string) *models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if order, ok := s.orders[id]; ok {
		copied := *order
		return &copied
	}

	return nil
}

// OrderCount returns the number of orders ever placed.
func (s *MockAlpacaServer) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.orderIDs)
}

// AccountClients returns the number of authorized account stream connections.
func (s *MockAlpacaServer) AccountClients() int {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()

	return len(s.accountClients)
}

// Reset resets the trading state.
func (s *MockAlpacaServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cash = decimal.NewFromFloat(s.config.InitialCash)
	s.orders = make(map[string]*models.Order)
	s.orderIDs = nil
	s.positions = make(map[string]*models.Position)
	s.orderIDSeq = 1000
}
