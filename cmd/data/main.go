package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	config := alpaca.DefaultConfig(os.Getenv("APCA_API_KEY_ID"), os.Getenv("APCA_API_SECRET_KEY"))
	config.MarketDataStreamURL = os.Getenv("APCA_API_STREAM_URL")

	// the terminal is owned by the UI, so only errors are logged and they go to stderr
	log, err := logger.NewLoggerWithOutput("error", "stderr")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	m := NewModel(config, log)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.SetProgram(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
