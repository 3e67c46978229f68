package mockserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-alpaca/pkg/models"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

type MockServerTestSuite struct {
	suite.Suite
	server *MockAlpacaServer
}

func TestMockServerSuite(t *testing.T) {
	suite.Run(t, new(MockServerTestSuite))
}

func (suite *MockServerTestSuite) SetupTest() {
	suite.server = NewMockAlpacaServer(ServerConfig{
		Prices:         map[string]float64{"AAPL": 190.0},
		Seed:           42,
		StreamInterval: 20 * time.Millisecond,
		BarEvery:       2,
		HistoryCount:   25,
		News: []models.NewsArticle{
			{ID: 1, Headline: "first", Symbols: []string{"AAPL"}, CreatedAt: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
			{ID: 2, Headline: "second", Symbols: []string{"TSLA"}, CreatedAt: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)},
			{ID: 3, Headline: "third", Symbols: []string{"AAPL"}, CreatedAt: time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)},
		},
	})
	suite.Require().NoError(suite.server.Start(":0"))
}

func (suite *MockServerTestSuite) TearDownTest() {
	if suite.server != nil {
		suite.server.Stop()
	}
}

func (suite *MockServerTestSuite) request(method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().NoError(err)

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, suite.server.BaseURL()+path, reader)
	suite.Require().NoError(err)
	req.Header.Set("APCA-API-KEY-ID", DefaultAPIKey)
	req.Header.Set("APCA-API-SECRET-KEY", DefaultAPISecret)

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)

	return resp, data
}

func (suite *MockServerTestSuite) dial(path string, header http.Header) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(suite.server.WebSocketURL()+path, header)
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { conn.Close() })

	return conn
}

func credentials() http.Header {
	header := http.Header{}
	header.Set("APCA-API-KEY-ID", DefaultAPIKey)
	header.Set("APCA-API-SECRET-KEY", DefaultAPISecret)

	return header
}

func (suite *MockServerTestSuite) readBatch(conn *websocket.Conn) stream.Batch {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	messageType, data, err := conn.ReadMessage()
	suite.Require().NoError(err)
	suite.Equal(websocket.TextMessage, messageType)

	batch, err := stream.DecodeFrame(data)
	suite.Require().NoError(err)
	suite.Empty(batch.Failures)

	return batch
}

func (suite *MockServerTestSuite) readAccountEvent(conn *websocket.Conn) stream.AccountEvent {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	messageType, data, err := conn.ReadMessage()
	suite.Require().NoError(err)
	suite.Equal(websocket.BinaryMessage, messageType)

	event, err := stream.DecodeAccountEvent(data)
	suite.Require().NoError(err)

	return event
}

func (suite *MockServerTestSuite) TestServerStartAndStop() {
	suite.NotEmpty(suite.server.Address())
	suite.Contains(suite.server.BaseURL(), "http://")
	suite.Contains(suite.server.WebSocketURL(), "ws://")
}

func (suite *MockServerTestSuite) TestSetAndGetPrice() {
	suite.server.SetPrice("MSFT", 410.0)
	suite.Equal(410.0, suite.server.GetPrice("MSFT"))
	suite.Equal(0.0, suite.server.GetPrice("NONEXISTENT"))
}

func (suite *MockServerTestSuite) TestRejectsMissingCredentials() {
	resp, err := http.Get(suite.server.BaseURL() + "/v2/account")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusUnauthorized, resp.StatusCode)

	var body apiError
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	suite.Equal(codeUnauthorized, body.Code)
}

func (suite *MockServerTestSuite) TestAccountEndpoint() {
	resp, data := suite.request(http.MethodGet, "/v2/account", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	var account models.Account
	suite.Require().NoError(json.Unmarshal(data, &account))
	suite.Equal(models.AccountStatusActive, account.Status)
	suite.Equal("100000", account.Cash.String())
}

func (suite *MockServerTestSuite) TestMarketBuyFillsAndOpensPosition() {
	resp, data := suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "10", "side": "buy", "type": "market", "time_in_force": "day",
	})
	suite.Require().Equal(http.StatusOK, resp.StatusCode, string(data))

	var order models.Order
	suite.Require().NoError(json.Unmarshal(data, &order))
	suite.Equal("filled", order.Status)
	suite.NotEmpty(order.ClientOrderID)
	suite.Equal("10", order.FilledQty.Unwrap().String())

	resp, data = suite.request(http.MethodGet, "/v2/positions/AAPL", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var position models.Position
	suite.Require().NoError(json.Unmarshal(data, &position))
	suite.Equal("10", position.Qty.String())
	suite.True(position.IsLong())
}

func (suite *MockServerTestSuite) TestLimitOrderRestsAndCancels() {
	resp, data := suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "1", "side": "buy", "type": "limit", "limit_price": "1.00", "time_in_force": "gtc",
	})
	suite.Require().Equal(http.StatusOK, resp.StatusCode, string(data))

	var order models.Order
	suite.Require().NoError(json.Unmarshal(data, &order))
	suite.Equal("new", order.Status)

	resp, data = suite.request(http.MethodGet, "/v2/orders", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	var open []models.Order
	suite.Require().NoError(json.Unmarshal(data, &open))
	suite.Len(open, 1)

	resp, _ = suite.request(http.MethodDelete, "/v2/orders/"+order.ID, nil)
	suite.Equal(http.StatusNoContent, resp.StatusCode)
	suite.Equal("canceled", suite.server.GetOrder(order.ID).Status)

	resp, _ = suite.request(http.MethodDelete, "/v2/orders/"+order.ID, nil)
	suite.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (suite *MockServerTestSuite) TestCancelUnknownOrder() {
	resp, _ := suite.request(http.MethodDelete, "/v2/orders/does-not-exist", nil)
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *MockServerTestSuite) TestSellWithoutPositionIsRejected() {
	resp, _ := suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "1", "side": "sell", "type": "market", "time_in_force": "day",
	})
	suite.Equal(http.StatusForbidden, resp.StatusCode)
}

func (suite *MockServerTestSuite) TestTradesPagination() {
	resp, data := suite.request(http.MethodGet, "/v2/stocks/AAPL/trades?limit=10", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var page models.TradesPage
	suite.Require().NoError(json.Unmarshal(data, &page))
	suite.Len(page.Trades, 10)
	suite.True(page.HasNextPage())

	total := len(page.Trades)
	for page.HasNextPage() {
		resp, data = suite.request(http.MethodGet, "/v2/stocks/AAPL/trades?limit=10&page_token="+*page.NextPageToken, nil)
		suite.Require().Equal(http.StatusOK, resp.StatusCode)

		page = models.TradesPage{}
		suite.Require().NoError(json.Unmarshal(data, &page))
		total += len(page.Trades)
	}

	suite.Equal(25, total)
}

func (suite *MockServerTestSuite) TestNewsFilteringAndSort() {
	resp, data := suite.request(http.MethodGet, "/v1beta1/news?symbols=AAPL", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var page models.NewsPage
	suite.Require().NoError(json.Unmarshal(data, &page))
	suite.Require().Len(page.News, 2)
	suite.Equal(int64(3), page.News[0].ID)
	suite.Equal(int64(1), page.News[1].ID)

	_, data = suite.request(http.MethodGet, "/v1beta1/news?sort=asc&limit=1", nil)
	page = models.NewsPage{}
	suite.Require().NoError(json.Unmarshal(data, &page))
	suite.Require().Len(page.News, 1)
	suite.Equal(int64(1), page.News[0].ID)
	suite.True(page.HasNextPage())
}

func (suite *MockServerTestSuite) TestMarketDataStream() {
	conn := suite.dial("/v2/test", credentials())

	welcome := suite.readBatch(conn)
	suite.Equal(stream.Success{Type: stream.MessageTypeSuccess, Message: "connected"}, welcome.Messages[0])

	authenticated := suite.readBatch(conn)
	suite.Equal(stream.Success{Type: stream.MessageTypeSuccess, Message: "authenticated"}, authenticated.Messages[0])

	frame, err := stream.Encode(stream.BuildMarketDataSubscribe([]string{"FAKEPACA"}))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))

	kinds := map[stream.MessageType]bool{}

	for range 10 {
		for _, message := range suite.readBatch(conn).Messages {
			kinds[message.MessageType()] = true

			if !stream.IsControl(message) {
				suite.Equal("FAKEPACA", stream.Symbol(message))
			}
		}
	}

	suite.True(kinds[stream.MessageTypeSubscription])
	suite.True(kinds[stream.MessageTypeTrade])
	suite.True(kinds[stream.MessageTypeQuote])
	suite.True(kinds[stream.MessageTypeBar])
}

func (suite *MockServerTestSuite) TestMarketDataUnsubscribe() {
	conn := suite.dial("/v2/iex", credentials())
	suite.readBatch(conn)
	suite.readBatch(conn)

	subscribe, err := stream.Encode(stream.BuildMarketDataSubscribe([]string{"AAPL", "FAKEPACA"}))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, subscribe))

	unsubscribe, err := stream.Encode(stream.BuildMarketDataUnsubscribe([]string{"AAPL"}))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, unsubscribe))

	var acks []stream.SubscriptionAck

	for len(acks) < 2 {
		for _, message := range suite.readBatch(conn).Messages {
			if ack, ok := message.(stream.SubscriptionAck); ok {
				acks = append(acks, ack)
			}
		}
	}

	suite.Equal([]string{"AAPL", "FAKEPACA"}, acks[0].Trades)
	suite.Equal([]string{"FAKEPACA"}, acks[1].Trades)
	suite.Equal([]string{"FAKEPACA"}, acks[1].Bars)
}

func (suite *MockServerTestSuite) TestMarketDataBadCredentials() {
	header := http.Header{}
	header.Set("APCA-API-KEY-ID", "wrong")
	header.Set("APCA-API-SECRET-KEY", "wrong")

	conn := suite.dial("/v2/iex", header)

	batch := suite.readBatch(conn)
	suite.Require().Len(batch.Messages, 1)
	suite.Equal(stream.ErrorMessage{Type: stream.MessageTypeError, Code: 402, Message: "auth failed"}, batch.Messages[0])

	_, _, err := conn.ReadMessage()
	suite.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func (suite *MockServerTestSuite) TestUnknownFeed() {
	_, resp, err := websocket.DefaultDialer.Dial(suite.server.WebSocketURL()+"/v2/otc", credentials())
	suite.Require().Error(err)
	suite.Require().NotNil(resp)
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *MockServerTestSuite) TestNewsStream() {
	conn := suite.dial("/v1beta1/news", credentials())
	suite.readBatch(conn)
	suite.readBatch(conn)

	frame, err := stream.Encode(stream.BuildNewsSubscribe([]string{"AAPL"}))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))

	ack := suite.readBatch(conn)
	suite.Equal([]string{"AAPL"}, ack.Messages[0].(stream.SubscriptionAck).News)

	suite.Eventually(func() bool {
		suite.server.wsMu.RLock()
		defer suite.server.wsMu.RUnlock()

		return len(suite.server.newsClients) == 1
	}, time.Second, 10*time.Millisecond)

	suite.server.PublishNews(models.NewsArticle{ID: 9, Headline: "ignored", Symbols: []string{"TSLA"}})
	suite.server.PublishNews(models.NewsArticle{ID: 10, Headline: "delivered", Symbols: []string{"AAPL"}})

	batch := suite.readBatch(conn)
	suite.Require().Len(batch.Messages, 1)

	news, ok := batch.Messages[0].(stream.News)
	suite.Require().True(ok)
	suite.Equal(int64(10), news.ID)
	suite.Equal("delivered", news.Headline)
}

func (suite *MockServerTestSuite) TestAccountStream() {
	conn := suite.dial("/stream", nil)

	auth, err := stream.Encode(stream.BuildAuth(DefaultAPIKey, DefaultAPISecret))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, auth))
	suite.True(suite.readAccountEvent(conn).Authorized())

	listen, err := stream.Encode(stream.BuildListenTradeUpdates())
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, listen))

	listening := suite.readAccountEvent(conn)
	suite.True(listening.IsListening())
	suite.Equal([]string{stream.AccountStreamTradeUpdates}, listening.Data.Streams)

	suite.Eventually(func() bool { return suite.server.AccountClients() == 1 }, time.Second, 10*time.Millisecond)

	resp, data := suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "2", "side": "buy", "type": "market", "time_in_force": "day",
	})
	suite.Require().Equal(http.StatusOK, resp.StatusCode, string(data))

	created := suite.readAccountEvent(conn)
	suite.True(created.IsTradeUpdate())
	suite.Equal("new", created.Data.Event)

	filled := suite.readAccountEvent(conn)
	suite.Equal("fill", filled.Data.Event)
	suite.Equal("2", filled.Data.Qty.Unwrap().String())
	suite.Equal("2", filled.Data.PositionQty.Unwrap().String())

	update, ok := filled.TradeUpdate()
	suite.Require().True(ok)
	suite.Equal("AAPL", update.Order.Symbol)
}

func (suite *MockServerTestSuite) TestAccountStreamUnauthorized() {
	conn := suite.dial("/stream", nil)

	auth, err := stream.Encode(stream.BuildAuth("wrong", "wrong"))
	suite.Require().NoError(err)
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, auth))

	event := suite.readAccountEvent(conn)
	suite.True(event.IsAuthorization())
	suite.False(event.Authorized())
	suite.Equal("unauthorized", event.Data.Status)
}

func (suite *MockServerTestSuite) TestReplaceOrder() {
	_, data := suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "1", "side": "buy", "type": "limit", "limit_price": "1", "time_in_force": "day",
	})

	var order models.Order
	suite.Require().NoError(json.Unmarshal(data, &order))

	resp, data := suite.request(http.MethodPatch, "/v2/orders/"+order.ID, map[string]any{"limit_price": "2"})
	suite.Require().Equal(http.StatusOK, resp.StatusCode, string(data))

	var replacement models.Order
	suite.Require().NoError(json.Unmarshal(data, &replacement))
	suite.Equal(order.ID, replacement.Replaces.Unwrap())
	suite.Equal("2", replacement.LimitPrice.Unwrap().String())

	original := suite.server.GetOrder(order.ID)
	suite.Equal("replaced", original.Status)
	suite.Equal(replacement.ID, original.ReplacedBy.Unwrap())
}

func (suite *MockServerTestSuite) TestReset() {
	suite.request(http.MethodPost, "/v2/orders", map[string]any{
		"symbol": "AAPL", "qty": "1", "side": "buy", "type": "market", "time_in_force": "day",
	})
	suite.Equal(1, suite.server.OrderCount())

	suite.server.Reset()
	suite.Equal(0, suite.server.OrderCount())

	_, data := suite.request(http.MethodGet, "/v2/positions", nil)
	suite.JSONEq(`[]`, string(data))
}
