package stream

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// Control frame actions.
const (
	ActionAuth        = "auth"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionListen      = "listen"
)

// AllSymbols is the wildcard the news channel understands as every symbol.
const AllSymbols = "*"

// SubscribeRequest subscribes (or unsubscribes) trades, quotes and bars.
type SubscribeRequest struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
	Bars   []string `json:"bars"`
}

// NewsSubscribeRequest subscribes to news for a set of symbols.
type NewsSubscribeRequest struct {
	Action string   `json:"action"`
	News   []string `json:"news"`
}

// AuthRequest carries the credentials in-band on the account channel.
type AuthRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type ListenData struct {
	Streams []string `json:"streams"`
}

// ListenRequest selects the account channel streams to receive.
type ListenRequest struct {
	Action string     `json:"action"`
	Data   ListenData `json:"data"`
}

// NormalizeSymbols trims the symbols, drops empty entries and removes duplicates
// while keeping the order of first occurrence. The result is never nil.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))

	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		if _, ok := seen[symbol]; ok {
			continue
		}

		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}

	return out
}

// BuildMarketDataSubscribe subscribes trades, quotes and bars for the same symbols.
// An empty set is legal and subscribes to nothing.
func BuildMarketDataSubscribe(symbols []string) SubscribeRequest {
	return buildMarketData(ActionSubscribe, symbols)
}

// BuildMarketDataUnsubscribe is the inverse of BuildMarketDataSubscribe.
func BuildMarketDataUnsubscribe(symbols []string) SubscribeRequest {
	return buildMarketData(ActionUnsubscribe, symbols)
}

func buildMarketData(action string, symbols []string) SubscribeRequest {
	normalized := NormalizeSymbols(symbols)

	return SubscribeRequest{
		Action: action,
		Trades: normalized,
		Quotes: slices.Clone(normalized),
		Bars:   slices.Clone(normalized),
	}
}

// BuildNewsSubscribe subscribes to news. An empty set subscribes to all symbols.
func BuildNewsSubscribe(symbols []string) NewsSubscribeRequest {
	normalized := NormalizeSymbols(symbols)
	if len(normalized) == 0 {
		normalized = []string{AllSymbols}
	}

	return NewsSubscribeRequest{
		Action: ActionSubscribe,
		News:   normalized,
	}
}

func BuildAuth(key, secret string) AuthRequest {
	return AuthRequest{
		Action: ActionAuth,
		Key:    key,
		Secret: secret,
	}
}

func BuildListenTradeUpdates() ListenRequest {
	return ListenRequest{
		Action: ActionListen,
		Data:   ListenData{Streams: []string{AccountStreamTradeUpdates}},
	}
}

// Encode serializes a control frame.
func Encode(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to encode control frame", err)
	}

	return data, nil
}
