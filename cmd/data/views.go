package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// listItem implements list.Item interface for the venue list.
type listItem struct {
	name        string
	description string
}

func (i listItem) Title() string       { return i.name }
func (i listItem) Description() string { return i.description }
func (i listItem) FilterValue() string { return i.name }

// NewVenueList creates a new list for market data feed selection.
func NewVenueList() list.Model {
	items := []list.Item{
		listItem{name: string(alpaca.IEX), description: "Investors Exchange feed, available on every plan"},
		listItem{name: string(alpaca.SIP), description: "Consolidated tape of all US exchanges"},
		listItem{name: string(alpaca.TEST), description: "Synthetic feed streaming " + alpaca.TestSymbol + " around the clock"},
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select Market Data Feed"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// NewApiKeyInput creates a new text input for API key entry.
func NewApiKeyInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "your-api-key"
	ti.CharLimit = 128
	ti.Width = 70
	ti.Prompt = "> "

	return ti
}

// NewSecretKeyInput creates a new text input for secret key entry.
func NewSecretKeyInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "your-secret-key"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 128
	ti.Width = 70
	ti.Prompt = "> "

	return ti
}

// NewSymbolInput creates a new text input for symbol entry.
func NewSymbolInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "AAPL,MSFT,TSLA"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50
	ti.Prompt = "> "

	return ti
}

// ParseSymbols parses comma-separated symbols into a slice.
func ParseSymbols(input string) []string {
	parts := strings.Split(input, ",")
	symbols := make([]string, 0, len(parts))

	for _, p := range parts {
		s := strings.TrimSpace(strings.ToUpper(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	return stream.NormalizeSymbols(symbols)
}

// Ticker is the latest trade and quote of one symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
	LastSize  uint32
	BidPrice  float64
	BidSize   uint32
	AskPrice  float64
	AskSize   uint32
	Bars      int
	Time      time.Time
}

// Apply folds a market data message into the ticker. It reports whether the message changed the last trade price.
func (t *Ticker) Apply(msg stream.Message) bool {
	switch m := msg.(type) {
	case stream.Trade:
		t.LastPrice = m.Price
		t.LastSize = m.Size
		t.Time = m.Timestamp

		return true
	case stream.Quote:
		t.BidPrice, t.BidSize = m.BidPrice, m.BidSize
		t.AskPrice, t.AskSize = m.AskPrice, m.AskSize
		t.Time = m.Timestamp
	case stream.Bar:
		t.Bars++
	}

	return false
}

// NewDataTable creates a new table for displaying market data.
func NewDataTable() table.Model {
	columns := []table.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Last", Width: 16},
		{Title: "Size", Width: 8},
		{Title: "Bid", Width: 12},
		{Title: "Bid Size", Width: 9},
		{Title: "Ask", Width: 12},
		{Title: "Ask Size", Width: 9},
		{Title: "Bars", Width: 6},
		{Title: "Time", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// UpdateTableRows updates the table with the latest tickers.
func UpdateTableRows(t table.Model, tickers map[string]Ticker, prevPrices map[string]float64) table.Model {
	symbols := make([]string, 0, len(tickers))
	for symbol := range tickers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	rows := make([]table.Row, 0, len(tickers))

	for _, symbol := range symbols {
		ticker := tickers[symbol]

		rows = append(rows, table.Row{
			symbol,
			FormatPriceWithColor(ticker.LastPrice, prevPrices[symbol]),
			fmt.Sprintf("%d", ticker.LastSize),
			fmt.Sprintf("%.2f", ticker.BidPrice),
			fmt.Sprintf("%d", ticker.BidSize),
			fmt.Sprintf("%.2f", ticker.AskPrice),
			fmt.Sprintf("%d", ticker.AskSize),
			fmt.Sprintf("%d", ticker.Bars),
			ticker.Time.Local().Format("15:04:05"),
		})
	}

	t.SetRows(rows)

	return t
}
