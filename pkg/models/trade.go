package models

import "time"

// HistoricalTrade is one trade of GET /v2/stocks/{symbol}/trades.
type HistoricalTrade struct {
	Timestamp  time.Time `json:"t" yaml:"t"`
	Exchange   string    `json:"x" yaml:"x"`
	Price      float64   `json:"p" yaml:"p"`
	Size       uint32    `json:"s" yaml:"s"`
	Conditions []string  `json:"c" yaml:"c"`
	ID         int64     `json:"i" yaml:"i"`
	Tape       string    `json:"z" yaml:"z"`
}

// TradesPage is one page of historical trades.
type TradesPage struct {
	Trades        []HistoricalTrade `json:"trades" yaml:"trades"`
	Symbol        string            `json:"symbol" yaml:"symbol"`
	NextPageToken *string           `json:"next_page_token" yaml:"next_page_token"`
}

// HasNextPage reports whether another page can be requested.
func (p TradesPage) HasNextPage() bool {
	return p.NextPageToken != nil && *p.NextPageToken != ""
}
