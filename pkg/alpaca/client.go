// Package alpaca is the client of the brokerage API. It exposes the REST
// operations and the three push channels (market data, news and account updates)
// as lazily started, cancellable sequences.
package alpaca

import (
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// OnStatusChange is called whenever a stream session started by the client changes state.
type OnStatusChange func(channel Channel, state stream.State)

// Client talks to the brokerage API. It is safe for concurrent use; every stream
// gets its own connection and REST calls share nothing but the HTTP client.
type Client struct {
	config  ClientConfig
	log     *logger.Logger
	dialer  stream.Dialer
	trading *resty.Client
	data    *resty.Client

	mu             sync.RWMutex
	onStatusChange OnStatusChange
	metrics        *Metrics
}

// NewClient creates a client after validating config. A nil log discards output.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	return NewClientWithDialer(config, log, stream.NewWebSocketDialer(config.Timeout()))
}

// NewClientWithDialer creates a client whose streams dial through dialer.
func NewClientWithDialer(config ClientConfig, log *logger.Logger, dialer stream.Dialer) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Client{
		config: config,
		log:    log.Named("alpaca"),
		dialer: dialer,
	}
	c.trading = c.newRestClient(config.tradingURL())
	c.data = c.newRestClient(config.dataURL())

	return c, nil
}

func (c *Client) newRestClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.config.Timeout()).
		SetHeader(HeaderAPIKeyID, c.config.APIKey).
		SetHeader(HeaderAPISecretKey, c.config.APISecret).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
}

// SetOnStatusChange registers the stream state callback.
func (c *Client) SetOnStatusChange(callback OnStatusChange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onStatusChange = callback
}

// SetMetrics makes the client record REST calls and stream traffic into metrics.
// Streams started before the call are not counted.
func (c *Client) SetMetrics(metrics *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = metrics
}

func (c *Client) currentMetrics() *Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.metrics
}

// Config returns a copy of the client configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

func (c *Client) credentialHeader() http.Header {
	header := http.Header{}
	header.Set(HeaderAPIKeyID, c.config.APIKey)
	header.Set(HeaderAPISecretKey, c.config.APISecret)

	return header
}

func (c *Client) sessionConfig(channel Channel, url string, header http.Header) stream.SessionConfig {
	metrics := c.currentMetrics()

	return stream.SessionConfig{
		URL:        url,
		Header:     header,
		Dialer:     c.dialer,
		Logger:     &logger.Logger{Logger: c.log.With(zapChannel(channel))},
		BufferSize: c.config.StreamBufferSize,
		OnStateChange: func(state stream.State) {
			c.mu.RLock()
			callback := c.onStatusChange
			c.mu.RUnlock()

			metrics.observeState(channel, state)

			if callback != nil {
				callback(channel, state)
			}
		},
	}
}
