package alpaca

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestValidate() {
	tests := []struct {
		name    string
		config  ClientConfig
		code    errors.ErrorCode
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig("key", "secret")},
		{name: "missing key", config: DefaultConfig("", "secret"), code: errors.ErrCodeInvalidConfiguration, wantErr: true},
		{name: "missing secret", config: DefaultConfig("key", ""), code: errors.ErrCodeInvalidConfiguration, wantErr: true},
		{
			name:    "bad url",
			config:  ClientConfig{APIKey: "key", APISecret: "secret", TradingURL: "not a url"},
			code:    errors.ErrCodeInvalidConfiguration,
			wantErr: true,
		},
		{
			name:    "bad log level",
			config:  ClientConfig{APIKey: "key", APISecret: "secret", LogLevel: "verbose"},
			code:    errors.ErrCodeInvalidConfiguration,
			wantErr: true,
		},
		{
			name:    "negative buffer",
			config:  ClientConfig{APIKey: "key", APISecret: "secret", StreamBufferSize: -1},
			code:    errors.ErrCodeInvalidConfiguration,
			wantErr: true,
		},
		{
			name:    "newer major version",
			config:  ClientConfig{APIKey: "key", APISecret: "secret", Version: "v9.0.0"},
			code:    errors.ErrCodeIncompatibleVersion,
			wantErr: true,
		},
		{name: "compatible version", config: ClientConfig{APIKey: "key", APISecret: "secret", Version: "v0.1.0"}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			err := tt.config.Validate()
			if !tt.wantErr {
				suite.NoError(err)
				return
			}

			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestURLResolution() {
	paper := DefaultConfig("key", "secret")
	suite.Equal(PaperTradingURL, paper.tradingURL())
	suite.Equal(PaperTradingStreamURL, paper.tradingStreamURL())
	suite.Equal(DataURL, paper.dataURL())
	suite.Equal(MarketDataStreamURL, paper.marketDataStreamURL())

	live := paper
	live.Paper = false
	suite.Equal(LiveTradingURL, live.tradingURL())
	suite.Equal(LiveTradingStreamURL, live.tradingStreamURL())

	custom := ClientConfig{
		TradingURL:          "http://localhost:1",
		DataURL:             "http://localhost:2",
		TradingStreamURL:    "ws://localhost:3",
		MarketDataStreamURL: "ws://localhost:4",
	}
	suite.Equal("http://localhost:1", custom.tradingURL())
	suite.Equal("http://localhost:2", custom.dataURL())
	suite.Equal("ws://localhost:3", custom.tradingStreamURL())
	suite.Equal("ws://localhost:4", custom.marketDataStreamURL())
}

func (suite *ConfigTestSuite) TestTimeout() {
	config := DefaultConfig("key", "secret")
	suite.Equal(DefaultTimeout, config.Timeout())

	config.TimeoutSeconds = 5
	suite.Equal(5*time.Second, config.Timeout())
}

func (suite *ConfigTestSuite) TestParseConfig() {
	config, err := ParseConfig(`{"apiKey":"key","apiSecret":"secret","streamBufferSize":8}`)
	suite.Require().NoError(err)
	suite.True(config.Paper)
	suite.Equal(8, config.StreamBufferSize)

	config, err = ParseConfig(`{"apiKey":"key","apiSecret":"secret","paper":false}`)
	suite.Require().NoError(err)
	suite.False(config.Paper)

	_, err = ParseConfig(`{`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = ParseConfig(`{"apiKey":"key"}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestLoadConfigFile() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "api_key: key\napi_secret: secret\ntimeout_seconds: 3\nlog_level: debug\n"
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfigFile(path)
	suite.Require().NoError(err)
	suite.Equal("key", config.APIKey)
	suite.True(config.Paper)
	suite.Equal(3*time.Second, config.Timeout())
	suite.Equal("debug", config.LogLevel)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	suite.Require().NoError(os.WriteFile(path, []byte("api_key: [\n"), 0o600))
	_, err = LoadConfigFile(path)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestGetConfigSchema() {
	schema, err := GetConfigSchema()
	suite.Require().NoError(err)

	var parsed map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &parsed))

	properties, ok := parsed["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "apiKey")
	suite.Contains(properties, "apiSecret")
	suite.Contains(properties, "paper")
	suite.Subset(parsed["required"], []any{"apiKey", "apiSecret"})
}

func (suite *ConfigTestSuite) TestGetKeychainFields() {
	suite.Equal([]string{"apiKey", "apiSecret"}, GetKeychainFields())
}

func (suite *ConfigTestSuite) TestParseStockExchange() {
	for _, value := range []string{"iex", " SIP ", "Test"} {
		exchange, err := ParseStockExchange(value)
		suite.NoError(err)
		suite.True(exchange.IsValid())
	}

	_, err := ParseStockExchange("otc")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidExchange))

	suite.Equal("/v2/iex", IEX.Path())
	suite.Equal("/v2/test", TEST.Path())
	suite.Equal("wss://stream.data.alpaca.markets/v2/sip", joinURL(MarketDataStreamURL+"/", SIP.Path()))
}
