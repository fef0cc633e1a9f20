package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"flow/internal/core"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	SubtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2ECC71"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1)
)

// amount renders a signed amount: outflows red, inflows green.
func amount(a decimal.Decimal) string {
	s := core.FormatAmount(a)
	switch {
	case a.IsNegative():
		return ErrorStyle.Render(s)
	case a.IsPositive():
		return SuccessStyle.Render(s)
	default:
		return s
	}
}
