package mocks

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

func TestDataGenerator_GenerateBars(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	bars := gen.GenerateBars(config)

	if len(bars) != 100 {
		t.Fatalf("expected 100 bars, got %d", len(bars))
	}

	for i, bar := range bars {
		if bar.Type != stream.MessageTypeBar {
			t.Errorf("unexpected type %q at index %d", bar.Type, i)
		}

		if bar.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, bar.Symbol)
		}

		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, bar.Open, bar.High, bar.Low, bar.Close)
		}

		if bar.High < bar.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, bar.High, bar.Low)
		}

		if bar.TradeCount.IsNone() || bar.VWAP.IsNone() {
			t.Errorf("expected trade count and vwap at index %d", i)
		}

		if i > 0 && bar.Timestamp.Sub(bars[i-1].Timestamp) != config.Interval {
			t.Errorf("unexpected interval at index %d", i)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(42)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.GenerateBars(config)
	bars2 := gen2.GenerateBars(config)

	for i := range bars1 {
		if bars1[i].Close != bars2[i].Close {
			t.Errorf("data not reproducible at index %d: got %f and %f",
				i, bars1[i].Close, bars2[i].Close)
		}
	}
}

func TestDataGenerator_Different_Seeds(t *testing.T) {
	config := DefaultConfig()
	config.Count = 10

	bars1 := NewDataGenerator(42).GenerateBars(config)
	bars2 := NewDataGenerator(123).GenerateBars(config)

	sameCount := 0
	for i := range bars1 {
		if bars1[i].Close == bars2[i].Close {
			sameCount++
		}
	}

	if sameCount == len(bars1) {
		t.Error("different seeds produced identical data")
	}
}

func TestDataGenerator_NextTrade(t *testing.T) {
	gen := NewDataGenerator(7)
	config := DefaultConfig()
	at := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	price := config.InitialPrice

	for i := range 50 {
		var trade stream.Trade

		trade, price = gen.NextTrade(config, price, at)

		if trade.ID != int64(i+1) {
			t.Errorf("expected sequential trade id %d, got %d", i+1, trade.ID)
		}

		if trade.Price <= 0 || trade.Size == 0 {
			t.Errorf("invalid trade at index %d: p=%f s=%d", i, trade.Price, trade.Size)
		}

		if trade.Symbol != config.Symbol || trade.Exchange != config.Exchange || !trade.Timestamp.Equal(at) {
			t.Errorf("unexpected trade fields at index %d: %+v", i, trade)
		}
	}
}

func TestDataGenerator_NextQuote(t *testing.T) {
	gen := NewDataGenerator(7)
	config := DefaultConfig()

	for i := range 50 {
		quote := gen.NextQuote(config, 100, time.Now())

		if quote.BidPrice >= quote.AskPrice {
			t.Errorf("crossed quote at index %d: bid=%f ask=%f", i, quote.BidPrice, quote.AskPrice)
		}

		if quote.AskSize == 0 || quote.BidSize == 0 {
			t.Errorf("empty size at index %d", i)
		}
	}
}

func TestGenerateMultiSymbol(t *testing.T) {
	symbols := []string{"AAPL", "GOOG", "MSFT"}
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	bars := gen.GenerateMultiSymbol(symbols, config)

	expectedTotal := len(symbols) * config.Count
	if len(bars) != expectedTotal {
		t.Errorf("expected %d bars, got %d", expectedTotal, len(bars))
	}

	symbolCounts := make(map[string]int)
	for _, bar := range bars {
		symbolCounts[bar.Symbol]++
	}

	for _, symbol := range symbols {
		if symbolCounts[symbol] != config.Count {
			t.Errorf("expected %d bars for %s, got %d", config.Count, symbol, symbolCounts[symbol])
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Symbol != "FAKEPACA" {
		t.Errorf("expected default symbol FAKEPACA, got %s", config.Symbol)
	}

	if config.Interval != time.Minute {
		t.Errorf("expected default interval 1m, got %v", config.Interval)
	}

	if config.InitialPrice != 100.0 {
		t.Errorf("expected default initial price 100.0, got %f", config.InitialPrice)
	}
}
