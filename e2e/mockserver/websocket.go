package mockserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-alpaca/mocks"
	"github.com/rxtech-lab/argo-alpaca/pkg/models"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// wsClient serializes writes to one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex

	subMu  sync.RWMutex
	trades []string
	quotes []string
	bars   []string
	news   []string
}

func (c *wsClient) write(messageType int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteMessage(messageType, data)
}

func (c *wsClient) subscriptions() stream.SubscriptionAck {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	return stream.SubscriptionAck{
		Type:   stream.MessageTypeSubscription,
		Trades: slices.Clone(c.trades),
		Quotes: slices.Clone(c.quotes),
		Bars:   slices.Clone(c.bars),
	}
}

func (c *wsClient) apply(request stream.SubscribeRequest) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	switch request.Action {
	case stream.ActionSubscribe:
		c.trades = union(c.trades, request.Trades)
		c.quotes = union(c.quotes, request.Quotes)
		c.bars = union(c.bars, request.Bars)
	case stream.ActionUnsubscribe:
		c.trades = difference(c.trades, request.Trades)
		c.quotes = difference(c.quotes, request.Quotes)
		c.bars = difference(c.bars, request.Bars)
	}
}

// applyAndAck holds the write lock across the update and the ack, so no data
// frame for a new symbol can overtake its ack.
func (c *wsClient) applyAndAck(request stream.SubscribeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apply(request)

	data, err := json.Marshal([]stream.SubscriptionAck{c.subscriptions()})
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func union(current, added []string) []string {
	out := slices.Clone(current)
	if out == nil {
		out = []string{}
	}

	for _, symbol := range added {
		if !slices.Contains(out, symbol) {
			out = append(out, symbol)
		}
	}

	return out
}

func difference(current, removed []string) []string {
	out := slices.DeleteFunc(slices.Clone(current), func(symbol string) bool {
		return slices.Contains(removed, symbol)
	})
	if out == nil {
		out = []string{}
	}

	return out
}

func subscribed(symbols []string, symbol string) bool {
	return slices.Contains(symbols, symbol) || slices.Contains(symbols, stream.AllSymbols)
}

func (s *MockAlpacaServer) track(client *wsClient, group map[*wsClient]bool) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	s.wsConnections[client] = true
	if group != nil {
		group[client] = true
	}
}

func (s *MockAlpacaServer) untrack(client *wsClient) {
	s.wsMu.Lock()
	delete(s.wsConnections, client)
	delete(s.newsClients, client)
	delete(s.accountClients, client)
	s.wsMu.Unlock()

	client.conn.Close()
}

// upgrade authenticates the header credentials and upgrades the connection.
// Bad credentials are reported in-band with error 402 before a normal close.
func (s *MockAlpacaServer) upgrade(w http.ResponseWriter, r *http.Request) (*wsClient, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}

	client := &wsClient{conn: conn}

	if !s.authorized(r.Header.Get("APCA-API-KEY-ID"), r.Header.Get("APCA-API-SECRET-KEY")) {
		_ = client.write(websocket.TextMessage, []stream.ErrorMessage{{Type: stream.MessageTypeError, Code: 402, Message: "auth failed"}})
		rejectAfterNextFrame(client)
		conn.Close()

		return nil, false
	}

	if !s.config.SkipWelcome {
		_ = client.write(websocket.TextMessage, []stream.Success{{Type: stream.MessageTypeSuccess, Message: "connected"}})
		_ = client.write(websocket.TextMessage, []stream.Success{{Type: stream.MessageTypeSuccess, Message: "authenticated"}})
	}

	return client, true
}

// rejectAfterNextFrame waits briefly for the frame the client sends right after
// connecting, then closes normally, so that frame is not written to a dead socket.
func rejectAfterNextFrame(client *wsClient) {
	_ = client.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, _ = client.conn.ReadMessage()

	closeNormally(client)
}

func closeNormally(client *wsClient) {
	client.mu.Lock()
	defer client.mu.Unlock()

	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// handleMarketDataWebSocket handles the /v2/{feed} market data stream.
func (s *MockAlpacaServer) handleMarketDataWebSocket(w http.ResponseWriter, r *http.Request) {
	switch strings.ToLower(mux.Vars(r)["feed"]) {
	case "iex", "sip", "test":
	default:
		http.Error(w, "unknown feed", http.StatusNotFound)
		return
	}

	client, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	s.track(client, nil)
	defer s.untrack(client)

	done := make(chan struct{})
	go s.readSubscriptions(client, done)

	s.streamMarketData(client, done)
}

// readSubscriptions applies subscribe and unsubscribe frames and acknowledges each.
func (s *MockAlpacaServer) readSubscriptions(client *wsClient, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var request stream.SubscribeRequest
		if err := json.Unmarshal(data, &request); err != nil {
			_ = client.write(websocket.TextMessage, []stream.ErrorMessage{{Type: stream.MessageTypeError, Code: 400, Message: "invalid syntax"}})
			continue
		}

		if err := client.applyAndAck(request); err != nil {
			return
		}
	}
}

// streamMarketData pushes a trade and a quote for every subscribed symbol on each tick
// and a bar every BarEvery ticks.
func (s *MockAlpacaServer) streamMarketData(client *wsClient, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.StreamInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-s.stopStreaming:
			return
		case <-done:
			return
		case <-ticker.C:
		}

		subs := client.subscriptions()

		var frame []any

		for _, symbol := range s.symbols() {
			config := s.config.Generator
			config.Symbol = symbol
			now := time.Now().UTC()

			trade, price := s.nextTrade(config, symbol, now)

			if subscribed(subs.Trades, symbol) {
				frame = append(frame, trade)
			}

			if subscribed(subs.Quotes, symbol) {
				frame = append(frame, s.nextQuote(config, price, now))
			}

			if subscribed(subs.Bars, symbol) && tick%s.config.BarEvery == 0 {
				frame = append(frame, s.nextBar(config, price, now))
			}
		}

		if len(frame) == 0 {
			continue
		}

		if err := client.write(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func (s *MockAlpacaServer) symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.currentPrices))
	for symbol := range s.currentPrices {
		symbols = append(symbols, symbol)
	}

	slices.Sort(symbols)

	return symbols
}

func (s *MockAlpacaServer) nextTrade(config mocks.GeneratorConfig, symbol string, at time.Time) (stream.Trade, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, price := s.generator.NextTrade(config, s.currentPrices[symbol], at)
	s.currentPrices[symbol] = price

	return trade, price
}

func (s *MockAlpacaServer) nextQuote(config mocks.GeneratorConfig, price float64, at time.Time) stream.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generator.NextQuote(config, price, at)
}

func (s *MockAlpacaServer) nextBar(config mocks.GeneratorConfig, price float64, at time.Time) stream.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()

	config.Count = 1
	config.InitialPrice = price
	config.StartTime = at.Truncate(time.Minute)

	return s.generator.GenerateBars(config)[0]
}

// handleNewsWebSocket handles the /v1beta1/news stream.
func (s *MockAlpacaServer) handleNewsWebSocket(w http.ResponseWriter, r *http.Request) {
	client, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	defer s.untrack(client)

	_, data, err := client.conn.ReadMessage()
	if err != nil {
		return
	}

	var request stream.NewsSubscribeRequest
	if err := json.Unmarshal(data, &request); err != nil || request.Action != stream.ActionSubscribe {
		_ = client.write(websocket.TextMessage, []stream.ErrorMessage{{Type: stream.MessageTypeError, Code: 400, Message: "invalid syntax"}})
		return
	}

	client.news = request.News

	ack := stream.SubscriptionAck{
		Type:   stream.MessageTypeSubscription,
		Trades: []string{},
		Quotes: []string{},
		Bars:   []string{},
		News:   request.News,
	}
	if err := client.write(websocket.TextMessage, []stream.SubscriptionAck{ack}); err != nil {
		return
	}

	s.track(client, s.newsClients)

	// Block until the client goes away; news is pushed by PublishNews.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishNews stores article and pushes it to every news stream subscribed to one of its symbols.
func (s *MockAlpacaServer) PublishNews(article models.NewsArticle) {
	s.mu.Lock()
	s.news = append(s.news, article)
	s.mu.Unlock()

	message := stream.News{
		Type:      stream.MessageTypeNews,
		ID:        article.ID,
		Headline:  article.Headline,
		Summary:   article.Summary,
		Author:    article.Author,
		CreatedAt: article.CreatedAt,
		UpdatedAt: article.UpdatedAt,
		URL:       article.URL,
		Content:   article.Content,
		Symbols:   article.Symbols,
		Source:    article.Source,
	}

	s.wsMu.RLock()
	defer s.wsMu.RUnlock()

	for client := range s.newsClients {
		if !slices.ContainsFunc(article.Symbols, func(symbol string) bool { return subscribed(client.news, symbol) }) {
			continue
		}

		_ = client.write(websocket.TextMessage, []stream.News{message})
	}
}

// handleAccountWebSocket handles the /stream account channel. Credentials arrive
// in-band and every reply is sent as a binary frame.
func (s *MockAlpacaServer) handleAccountWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}
	s.track(client, nil)
	defer s.untrack(client)

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}

	var auth stream.AuthRequest
	if err := json.Unmarshal(data, &auth); err != nil || auth.Action != stream.ActionAuth {
		return
	}

	if !s.authorized(auth.Key, auth.Secret) {
		_ = client.write(websocket.BinaryMessage, authorizationReply("unauthorized"))
		rejectAfterNextFrame(client)

		return
	}

	if !s.config.SilentAuth {
		if err := client.write(websocket.BinaryMessage, authorizationReply("authorized")); err != nil {
			return
		}
	}

	_, data, err = conn.ReadMessage()
	if err != nil {
		return
	}

	var listen stream.ListenRequest
	if err := json.Unmarshal(data, &listen); err != nil || listen.Action != stream.ActionListen {
		return
	}

	reply := stream.AccountEvent{
		Stream: stream.AccountStreamListening,
		Data:   &stream.AccountEventData{Streams: listen.Data.Streams},
	}
	if err := client.write(websocket.BinaryMessage, reply); err != nil {
		return
	}

	if slices.Contains(listen.Data.Streams, stream.AccountStreamTradeUpdates) {
		s.track(client, s.accountClients)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func authorizationReply(status string) stream.AccountEvent {
	return stream.AccountEvent{
		Stream: stream.AccountStreamAuthorization,
		Data: &stream.AccountEventData{
			Status: status,
			Action: "authenticate",
		},
	}
}

func (s *MockAlpacaServer) publishTradeUpdate(event string, order *models.Order) {
	s.broadcastAccount(stream.AccountEvent{
		Stream: stream.AccountStreamTradeUpdates,
		Data: &stream.AccountEventData{
			Event:     event,
			EventID:   order.ID + ":" + event,
			At:        optional.Some(time.Now().UTC()),
			Timestamp: optional.Some(time.Now().UTC()),
			Order:     order,
		},
	})
}

func (s *MockAlpacaServer) publishFill(order *models.Order, f fill) {
	now := time.Now().UTC()

	s.broadcastAccount(stream.AccountEvent{
		Stream: stream.AccountStreamTradeUpdates,
		Data: &stream.AccountEventData{
			Event:       "fill",
			EventID:     order.ID + ":fill",
			At:          optional.Some(now),
			Timestamp:   optional.Some(now),
			Order:       order,
			ExecutionID: order.ID + ":exec",
			Price:       optional.Some(f.price),
			Qty:         optional.Some(f.qty),
			PositionQty: optional.Some(f.positionQty),
		},
	})
}

func (s *MockAlpacaServer) broadcastAccount(event stream.AccountEvent) {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()

	for client := range s.accountClients {
		_ = client.write(websocket.BinaryMessage, event)
	}
}
