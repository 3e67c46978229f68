package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	// StatusStyle for the connection state badge.
	StatusStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0"))
)

// FormatPriceWithColor formats a price with indicator based on comparison with previous price.
func FormatPriceWithColor(current, previous float64) string {
	priceStr := fmt.Sprintf("%.4f", current)

	if previous == 0 {
		return priceStr
	}

	if current > previous {
		return priceStr + " ▲"
	} else if current < previous {
		return priceStr + " ▼"
	}

	return priceStr
}

// RenderStatus renders a connection state as a colored badge.
func RenderStatus(state stream.State) string {
	color := lipgloss.Color("11")

	switch state {
	case stream.StateStreaming:
		color = lipgloss.Color("10")
	case stream.StateFailed:
		color = lipgloss.Color("9")
	case stream.StateClosed:
		color = lipgloss.Color("8")
	}

	return StatusStyle.Background(color).Render(string(state))
}
