package alpaca

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

func zapChannel(channel Channel) zap.Field {
	return zap.String("channel", string(channel))
}

// MonitorStockPrice streams trades, quotes and bars for symbols from the given feed.
// Every text frame is yielded as one batch in the order it arrived. The connection
// is opened when the sequence is first ranged over and closed when ctx is cancelled
// or the loop stops. The sequence can only be consumed once.
func (c *Client) MonitorStockPrice(ctx context.Context, symbols []string, exchange StockExchange) iter.Seq2[[]stream.Message, error] {
	if !exchange.IsValid() {
		return failed[[]stream.Message](errors.Newf(errors.ErrCodeInvalidExchange, "unsupported stock exchange %q", exchange))
	}

	if len(stream.NormalizeSymbols(symbols)) == 0 {
		return failed[[]stream.Message](errors.New(errors.ErrCodeEmptySymbols, "at least one symbol is required"))
	}

	url := joinURL(c.config.marketDataStreamURL(), exchange.Path())

	session, err := stream.NewMarketDataSession(c.sessionConfig(ChannelMarketData, url, c.credentialHeader()), symbols)
	if err != nil {
		return failed[[]stream.Message](err)
	}

	return c.currentMetrics().countBatches(ChannelMarketData, session.Stream(ctx))
}

// StreamNews streams news articles for symbols. No symbols means every symbol.
func (c *Client) StreamNews(ctx context.Context, symbols []string) iter.Seq2[[]stream.Message, error] {
	url := joinURL(c.config.marketDataStreamURL(), NewsStreamPath)

	session, err := stream.NewNewsSession(c.sessionConfig(ChannelNews, url, c.credentialHeader()), symbols)
	if err != nil {
		return failed[[]stream.Message](err)
	}

	return c.currentMetrics().countBatches(ChannelNews, session.Stream(ctx))
}

// StreamAccount streams order updates of the account. The credentials are sent in-band
// and the server's authorization reply is yielded like any other event.
func (c *Client) StreamAccount(ctx context.Context) iter.Seq2[stream.AccountEvent, error] {
	url := joinURL(c.config.tradingStreamURL(), AccountStreamPath)

	session, err := stream.NewAccountSession(c.sessionConfig(ChannelAccount, url, nil), c.config.APIKey, c.config.APISecret)
	if err != nil {
		return failed[stream.AccountEvent](err)
	}

	return c.currentMetrics().countEvents(session.Stream(ctx))
}

// failed returns a sequence that yields err once.
func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
