package alpaca

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-alpaca/internal/version"
	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// ClientConfig contains everything a Client needs to reach the brokerage API.
// The URL overrides are mostly useful for tests against a local server.
type ClientConfig struct {
	Version             string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version,description=Library version the config was written for"`
	APIKey              string `yaml:"api_key" json:"apiKey" jsonschema:"title=API Key,description=API key id sent as APCA-API-KEY-ID,required" keychain:"true" validate:"required"`
	APISecret           string `yaml:"api_secret" json:"apiSecret" jsonschema:"title=API Secret,description=API secret key sent as APCA-API-SECRET-KEY,required" keychain:"true" validate:"required"`
	Paper               bool   `yaml:"paper" json:"paper" jsonschema:"title=Paper Trading,description=Use the paper trading hosts,default=true"`
	TradingURL          string `yaml:"trading_url,omitempty" json:"tradingUrl,omitempty" jsonschema:"title=Trading URL,description=Overrides the trading REST host" validate:"omitempty,url"`
	DataURL             string `yaml:"data_url,omitempty" json:"dataUrl,omitempty" jsonschema:"title=Data URL,description=Overrides the market data REST host" validate:"omitempty,url"`
	TradingStreamURL    string `yaml:"trading_stream_url,omitempty" json:"tradingStreamUrl,omitempty" jsonschema:"title=Trading Stream URL,description=Overrides the account stream host" validate:"omitempty,url"`
	MarketDataStreamURL string `yaml:"market_data_stream_url,omitempty" json:"marketDataStreamUrl,omitempty" jsonschema:"title=Market Data Stream URL,description=Overrides the market data and news stream host" validate:"omitempty,url"`
	StreamBufferSize    int    `yaml:"stream_buffer_size,omitempty" json:"streamBufferSize,omitempty" jsonschema:"title=Stream Buffer Size,description=Decoded frames buffered per stream before the reader waits,minimum=0" validate:"gte=0"`
	TimeoutSeconds      int    `yaml:"timeout_seconds,omitempty" json:"timeoutSeconds,omitempty" jsonschema:"title=Timeout,description=REST request and WebSocket handshake timeout in seconds,minimum=0" validate:"gte=0"`
	LogLevel            string `yaml:"log_level,omitempty" json:"logLevel,omitempty" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultTimeout applies when TimeoutSeconds is zero.
const DefaultTimeout = 30 * time.Second

// DefaultConfig returns a paper trading config for the given credentials.
func DefaultConfig(apiKey, apiSecret string) ClientConfig {
	return ClientConfig{
		APIKey:    apiKey,
		APISecret: apiSecret,
		Paper:     true,
	}
}

// Validate validates the ClientConfig.
func (c *ClientConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client config", err)
	}

	if err := version.CheckVersionCompatibility(version.GetVersion(), c.Version); err != nil {
		return errors.Wrap(errors.ErrCodeIncompatibleVersion, "incompatible config version", err)
	}

	return nil
}

// Timeout returns the configured timeout or DefaultTimeout.
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}

	return DefaultTimeout
}

func (c *ClientConfig) tradingURL() string {
	if c.TradingURL != "" {
		return c.TradingURL
	}

	if c.Paper {
		return PaperTradingURL
	}

	return LiveTradingURL
}

func (c *ClientConfig) dataURL() string {
	if c.DataURL != "" {
		return c.DataURL
	}

	return DataURL
}

func (c *ClientConfig) tradingStreamURL() string {
	if c.TradingStreamURL != "" {
		return c.TradingStreamURL
	}

	if c.Paper {
		return PaperTradingStreamURL
	}

	return LiveTradingStreamURL
}

func (c *ClientConfig) marketDataStreamURL() string {
	if c.MarketDataStreamURL != "" {
		return c.MarketDataStreamURL
	}

	return MarketDataStreamURL
}

// ParseConfig parses JSON into a ClientConfig and validates it.
func ParseConfig(jsonConfig string) (*ClientConfig, error) {
	config := ClientConfig{Paper: true}
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse JSON config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFile reads a YAML config file and validates it.
func LoadConfigFile(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	config := ClientConfig{Paper: true}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigSchema returns the JSON schema of ClientConfig.
func GetConfigSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&ClientConfig{})

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// GetKeychainFields returns the JSON names of the fields tagged keychain:"true".
// Those values should be kept in a secret store rather than in plain config files.
func GetKeychainFields() []string {
	var fields []string

	t := reflect.TypeOf(ClientConfig{})
	for i := range t.NumField() {
		field := t.Field(i)
		if field.Tag.Get("keychain") != "true" {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		fields = append(fields, name)
	}

	return fields
}
