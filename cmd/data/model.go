package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// Application states.
const (
	StateVenueSelect = iota
	StateApiKeyInput
	StateSecretKeyInput
	StateSymbolInput
	StateDataDisplay
)

// Sender delivers messages to the running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Model is the main Bubble Tea model for the live quote viewer.
type Model struct {
	state          int
	config         alpaca.ClientConfig
	log            *logger.Logger
	venueList      list.Model
	apiKeyInput    textinput.Model
	secretKeyInput textinput.Model
	symbolInput    textinput.Model
	dataTable      table.Model
	tickers        map[string]Ticker
	prevPrices     map[string]float64
	symbols        []string
	venue          alpaca.StockExchange
	status         stream.State
	err            error
	width          int
	height         int

	// Streaming control
	streamCancel context.CancelFunc
	program      Sender
}

// NewModel creates a new Model with initial state. Missing credentials in config are asked for after the feed is chosen.
func NewModel(config alpaca.ClientConfig, log *logger.Logger) Model {
	return Model{
		state:          StateVenueSelect,
		config:         config,
		log:            log,
		venueList:      NewVenueList(),
		apiKeyInput:    NewApiKeyInput(),
		secretKeyInput: NewSecretKeyInput(),
		symbolInput:    NewSymbolInput(),
		dataTable:      NewDataTable(),
		tickers:        make(map[string]Ticker),
		prevPrices:     make(map[string]float64),
		status:         stream.StateIdle,
	}
}

// SetProgram sets the tea.Program reference for sending messages from goroutines.
func (m *Model) SetProgram(p Sender) {
	m.program = p
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) inTextInput() bool {
	return m.state == StateApiKeyInput || m.state == StateSecretKeyInput || m.state == StateSymbolInput
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stopStreaming()
			return m, tea.Quit
		case "q":
			if !m.inTextInput() {
				m.stopStreaming()
				return m, tea.Quit
			}
		case "esc":
			return m.handleEsc()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.venueList.SetSize(msg.Width, msg.Height-4)
		m.dataTable.SetWidth(msg.Width)
		m.dataTable.SetHeight(msg.Height - 6)
		return m, nil

	case MarketDataMsg:
		m.applyBatch(msg.Batch)
		return m, nil

	case StreamStatusMsg:
		m.status = msg.State
		return m, nil

	case StreamErrorMsg:
		m.err = msg.Err
		return m, nil

	case StreamStartedMsg:
		m.state = StateDataDisplay
		return m, nil
	}

	// Delegate to state-specific update
	switch m.state {
	case StateVenueSelect:
		return m.updateVenueSelect(msg)
	case StateApiKeyInput:
		return m.updateApiKeyInput(msg)
	case StateSecretKeyInput:
		return m.updateSecretKeyInput(msg)
	case StateSymbolInput:
		return m.updateSymbolInput(msg)
	case StateDataDisplay:
		return m.updateDataDisplay(msg)
	}

	return m, nil
}

// applyBatch folds market data into the tickers. Control messages only surface errors.
func (m *Model) applyBatch(batch []stream.Message) {
	for _, message := range batch {
		if errMsg, ok := message.(stream.ErrorMessage); ok {
			m.err = errMsg
			continue
		}

		symbol := stream.Symbol(message)
		if symbol == "" {
			continue
		}

		ticker := m.tickers[symbol]
		ticker.Symbol = symbol
		previous := ticker.LastPrice

		if ticker.Apply(message) && previous != 0 {
			m.prevPrices[symbol] = previous
		}

		m.tickers[symbol] = ticker
	}

	m.dataTable = UpdateTableRows(m.dataTable, m.tickers, m.prevPrices)
}

func (m *Model) stopStreaming() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

func (m Model) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateApiKeyInput:
		m.apiKeyInput.Blur()
		m.state = StateVenueSelect
	case StateSecretKeyInput:
		m.secretKeyInput.Blur()
		m.apiKeyInput.Focus()
		m.state = StateApiKeyInput
		return m, textinput.Blink
	case StateSymbolInput:
		m.symbolInput.Blur()
		m.state = StateVenueSelect
	case StateDataDisplay:
		// Stop streaming and clear watched symbols
		m.stopStreaming()
		m.tickers = make(map[string]Ticker)
		m.prevPrices = make(map[string]float64)
		m.dataTable = UpdateTableRows(m.dataTable, m.tickers, m.prevPrices)
		m.symbols = nil
		m.status = stream.StateIdle
		m.err = nil
		m.symbolInput.Reset()
		m.symbolInput.Focus()
		m.state = StateSymbolInput
		return m, textinput.Blink
	}
	return m, nil
}

func (m Model) updateVenueSelect(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if item, ok := m.venueList.SelectedItem().(listItem); ok {
			m.venue = alpaca.StockExchange(item.name)

			if m.config.APIKey == "" {
				m.state = StateApiKeyInput
				m.apiKeyInput.Focus()
				return m, textinput.Blink
			}

			if m.config.APISecret == "" {
				m.state = StateSecretKeyInput
				m.secretKeyInput.Focus()
				return m, textinput.Blink
			}

			return m.enterSymbolInput()
		}
	}

	var cmd tea.Cmd
	m.venueList, cmd = m.venueList.Update(msg)
	return m, cmd
}

func (m Model) enterSymbolInput() (tea.Model, tea.Cmd) {
	m.state = StateSymbolInput
	if m.venue == alpaca.TEST && m.symbolInput.Value() == "" {
		m.symbolInput.SetValue(alpaca.TestSymbol)
	}
	m.symbolInput.Focus()
	return m, textinput.Blink
}

func (m Model) updateApiKeyInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if value := strings.TrimSpace(m.apiKeyInput.Value()); value != "" {
			m.config.APIKey = value
			m.apiKeyInput.Blur()

			if m.config.APISecret != "" {
				return m.enterSymbolInput()
			}

			m.state = StateSecretKeyInput
			m.secretKeyInput.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m Model) updateSecretKeyInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if value := strings.TrimSpace(m.secretKeyInput.Value()); value != "" {
			m.config.APISecret = value
			m.secretKeyInput.Blur()
			return m.enterSymbolInput()
		}
	}

	var cmd tea.Cmd
	m.secretKeyInput, cmd = m.secretKeyInput.Update(msg)
	return m, cmd
}

func (m Model) updateSymbolInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		symbols := ParseSymbols(m.symbolInput.Value())
		if len(symbols) > 0 {
			m.symbols = symbols
			m.symbolInput.Blur()
			m.err = nil

			ctx, cancel := context.WithCancel(context.Background())
			m.streamCancel = cancel

			return m, m.startStreaming(ctx)
		}
	}

	var cmd tea.Cmd
	m.symbolInput, cmd = m.symbolInput.Update(msg)
	return m, cmd
}

func (m Model) updateDataDisplay(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.dataTable, cmd = m.dataTable.Update(msg)
	return m, cmd
}

// startStreaming returns a command that starts the market data stream.
func (m Model) startStreaming(ctx context.Context) tea.Cmd {
	program := m.program
	config := m.config
	log := m.log
	symbols := m.symbols
	venue := m.venue

	return func() tea.Msg {
		if program == nil {
			return StreamErrorMsg{Err: fmt.Errorf("program not set")}
		}

		client, err := alpaca.NewClient(config, log)
		if err != nil {
			return StreamErrorMsg{Err: err}
		}

		go streamMarketData(ctx, client, program, symbols, venue)

		return StreamStartedMsg{}
	}
}

// streamMarketData streams market data batches and sends them to the program until ctx is cancelled or the stream ends.
func streamMarketData(ctx context.Context, client *alpaca.Client, p Sender, symbols []string, venue alpaca.StockExchange) {
	client.SetOnStatusChange(func(_ alpaca.Channel, state stream.State) {
		p.Send(StreamStatusMsg{State: state})
	})

	for batch, err := range client.MonitorStockPrice(ctx, symbols, venue) {
		if err != nil {
			p.Send(StreamErrorMsg{Err: err})
			return
		}

		p.Send(MarketDataMsg{Batch: batch})
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateVenueSelect:
		s.WriteString(TitleStyle.Render("Argo Alpaca - Live Quotes"))
		s.WriteString("\n\n")
		s.WriteString(m.venueList.View())
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render("Press Enter to select, q to quit"))

	case StateApiKeyInput:
		s.WriteString(TitleStyle.Render("Enter API Key"))
		s.WriteString("\n\n")
		s.WriteString(m.apiKeyInput.View())
		s.WriteString("\n\n")
		s.WriteString(HelpStyle.Render("Set APCA_API_KEY_ID to skip this step. Esc to go back"))

	case StateSecretKeyInput:
		s.WriteString(TitleStyle.Render("Enter API Secret"))
		s.WriteString("\n\n")
		s.WriteString(m.secretKeyInput.View())
		s.WriteString("\n\n")
		s.WriteString(HelpStyle.Render("Set APCA_API_SECRET_KEY to skip this step. Esc to go back"))

	case StateSymbolInput:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Enter Symbols (%s)", m.venue)))
		s.WriteString("\n\n")
		s.WriteString("Enter comma-separated symbols (e.g., AAPL,MSFT):\n\n")
		s.WriteString(m.symbolInput.View())
		s.WriteString("\n\n")
		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}
		s.WriteString(HelpStyle.Render("Press Enter to confirm, Esc to go back"))

	case StateDataDisplay:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Live Data - %s", m.venue)))
		s.WriteString(" ")
		s.WriteString(RenderStatus(m.status))
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		if len(m.tickers) == 0 {
			s.WriteString("Waiting for data...\n")
		} else {
			s.WriteString(m.dataTable.View())
		}

		s.WriteString("\n")
		s.WriteString(HelpStyle.Render(fmt.Sprintf("q: quit | Esc: back | Streaming: %s", strings.Join(m.symbols, ", "))))
	}

	return s.String()
}
