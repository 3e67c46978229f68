package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// DataGenerator generates realistic market data events for tests and the mock server.
type DataGenerator struct {
	rng     *rand.Rand
	tradeID int64
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	// Symbol is the ticker, e.g. FAKEPACA
	Symbol string
	// StartTime is the beginning of the data series
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	// Count is the number of bars to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per bar)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
	// Exchange is the exchange code put on trades and quotes
	Exchange string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "FAKEPACA",
		StartTime:      time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          1000,
		InitialPrice:   100.0,
		Volatility:     0.002, // 0.2% per bar
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
		Exchange:       "V",
	}
}

// GenerateBars creates minute bars following a geometric Brownian motion.
func (g *DataGenerator) GenerateBars(config GeneratorConfig) []stream.Bar {
	bars := make([]stream.Bar, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := range config.Count {
		open := currentPrice
		close := g.nextPrice(open, config.Volatility, config.Trend/float64(config.Count))

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension

		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volume := g.volume(config.VolumeBase, config.VolumeVariance)

		bars[i] = stream.Bar{
			Type:       stream.MessageTypeBar,
			Symbol:     config.Symbol,
			Open:       roundToDecimals(open, 4),
			High:       roundToDecimals(high, 4),
			Low:        roundToDecimals(low, 4),
			Close:      roundToDecimals(close, 4),
			Volume:     uint64(volume),
			Timestamp:  currentTime,
			TradeCount: optional.Some(uint64(1 + g.rng.Intn(200))),
			VWAP:       optional.Some(roundToDecimals((open+close+high+low)/4, 4)),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return bars
}

// NextTrade produces a trade around price and returns it with the new price.
func (g *DataGenerator) NextTrade(config GeneratorConfig, price float64, at time.Time) (stream.Trade, float64) {
	next := g.nextPrice(price, config.Volatility, 0)
	g.tradeID++

	return stream.Trade{
		Type:       stream.MessageTypeTrade,
		Symbol:     config.Symbol,
		ID:         g.tradeID,
		Exchange:   config.Exchange,
		Price:      roundToDecimals(next, 2),
		Size:       uint32(1 + g.rng.Intn(500)),
		Timestamp:  at,
		Conditions: []string{"@"},
		Tape:       "C",
	}, next
}

// NextQuote produces a quote whose spread straddles price.
func (g *DataGenerator) NextQuote(config GeneratorConfig, price float64, at time.Time) stream.Quote {
	halfSpread := math.Max(0.01, price*config.Volatility*g.rng.Float64()*0.5)

	return stream.Quote{
		Type:        stream.MessageTypeQuote,
		Symbol:      config.Symbol,
		AskExchange: config.Exchange,
		AskPrice:    roundToDecimals(price+halfSpread, 2),
		AskSize:     uint32(1 + g.rng.Intn(20)),
		BidExchange: config.Exchange,
		BidPrice:    roundToDecimals(price-halfSpread, 2),
		BidSize:     uint32(1 + g.rng.Intn(20)),
		Timestamp:   at,
		Conditions:  []string{"R"},
		Tape:        "C",
	}
}

// GenerateMultiSymbol generates bars for several symbols with slightly varied prices.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) []stream.Bar {
	var all []stream.Bar

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		all = append(all, g.GenerateBars(config)...)
	}

	return all
}

// nextPrice applies one Box-Muller normal step to price.
func (g *DataGenerator) nextPrice(price, volatility, drift float64) float64 {
	u1 := g.rng.Float64()
	u2 := g.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	next := price * (1 + volatility*z + drift)
	if next <= 0 {
		next = price * 0.99
	}

	return next
}

func (g *DataGenerator) volume(base, variance float64) float64 {
	volume := base * (1.0 + (g.rng.Float64()*2-1)*variance)
	if volume < 0 {
		volume = base * 0.1
	}

	return roundToDecimals(volume, 0)
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
