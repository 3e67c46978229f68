package alpaca_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-alpaca/e2e/mockserver"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
)

// startMockServer starts a mock brokerage server that is stopped with the test.
func startMockServer(t *testing.T, config mockserver.ServerConfig) *mockserver.MockAlpacaServer {
	t.Helper()

	if config.StreamInterval == 0 {
		config.StreamInterval = 20 * time.Millisecond
	}

	server := mockserver.NewMockAlpacaServer(config)
	require.NoError(t, server.Start(":0"))
	t.Cleanup(func() { server.Stop() })

	return server
}

// newClient returns a client pointed at every endpoint of server.
func newClient(t *testing.T, server *mockserver.MockAlpacaServer) *alpaca.Client {
	t.Helper()

	client, err := alpaca.NewClient(alpaca.ClientConfig{
		APIKey:              server.APIKey(),
		APISecret:           server.APISecret(),
		Paper:               true,
		TradingURL:          server.BaseURL(),
		DataURL:             server.BaseURL(),
		TradingStreamURL:    server.WebSocketURL(),
		MarketDataStreamURL: server.WebSocketURL(),
		TimeoutSeconds:      5,
	}, nil)
	require.NoError(t, err)

	return client
}
