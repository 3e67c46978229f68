package alpaca

import (
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// Default hosts of the brokerage API.
const (
	PaperTradingURL        = "https://paper-api.alpaca.markets"
	LiveTradingURL         = "https://api.alpaca.markets"
	DataURL                = "https://data.alpaca.markets"
	PaperTradingStreamURL  = "wss://paper-api.alpaca.markets"
	LiveTradingStreamURL   = "wss://api.alpaca.markets"
	MarketDataStreamURL    = "wss://stream.data.alpaca.markets"
	AccountStreamPath      = "/stream"
	NewsStreamPath         = "/v1beta1/news"
	marketDataStreamPrefix = "/v2/"
)

// Credential headers sent on REST requests and on the market data and news handshakes.
const (
	HeaderAPIKeyID     = "APCA-API-KEY-ID"
	HeaderAPISecretKey = "APCA-API-SECRET-KEY"
)

// StockExchange is the market data feed a market data stream connects to.
type StockExchange string

const (
	// IEX is the single-exchange feed available on every plan.
	IEX StockExchange = "IEX"
	// SIP is the consolidated tape of all US exchanges.
	SIP StockExchange = "SIP"
	// TEST is the synthetic feed. It streams the FAKEPACA symbol around the clock.
	TEST StockExchange = "TEST"
)

// TestSymbol is the symbol served by the TEST feed.
const TestSymbol = "FAKEPACA"

// StockExchanges lists every supported feed.
var StockExchanges = []StockExchange{IEX, SIP, TEST}

// ParseStockExchange parses a feed name case-insensitively.
func ParseStockExchange(value string) (StockExchange, error) {
	exchange := StockExchange(strings.ToUpper(strings.TrimSpace(value)))
	if !exchange.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidExchange, "unsupported stock exchange %q", value)
	}

	return exchange, nil
}

func (e StockExchange) IsValid() bool {
	switch e {
	case IEX, SIP, TEST:
		return true
	default:
		return false
	}
}

// Path returns the market data stream path of the feed, e.g. /v2/iex.
func (e StockExchange) Path() string {
	return marketDataStreamPrefix + strings.ToLower(string(e))
}

func (e StockExchange) String() string {
	return string(e)
}

// Channel names a push channel for status reporting.
type Channel string

const (
	ChannelMarketData Channel = "market_data"
	ChannelNews       Channel = "news"
	ChannelAccount    Channel = "account"
)

func joinURL(base, path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(base, "/"), path)
}
