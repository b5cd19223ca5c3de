// Package ui renders calendar projections for the terminal, both as
// one-shot text and as an interactive bubbletea program.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/chatcal/internal/event"
)

type Styles struct {
	Normal     lipgloss.Style
	Dim        lipgloss.Style
	Selected   lipgloss.Style
	Today      lipgloss.Style
	Header     lipgloss.Style
	Slot       lipgloss.Style
	Nearest    lipgloss.Style
	High       lipgloss.Style
	Medium     lipgloss.Style
	Low        lipgloss.Style
	Help       lipgloss.Style
	Message    lipgloss.Style
	Border     lipgloss.Style
	ActiveMode lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("#9DC8B9")).
			Bold(true),
		Today: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9DC8B9")).
			Bold(true).
			Underline(true),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true),
		Slot: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Width(10),
		Nearest: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9DC8B9")).
			Bold(true),
		High: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		Medium: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD93D")),
		Low: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6BCF7F")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Message: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		ActiveMode: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("220")).
			Padding(0, 1),
	}
}

// PlainStyles renders without any colour or decoration.
func PlainStyles() Styles {
	p := lipgloss.NewStyle()
	return Styles{
		Normal: p, Dim: p, Selected: p, Today: p, Header: p,
		Slot: p.Width(10), Nearest: p, High: p, Medium: p, Low: p,
		Help: p, Message: p, Border: p, ActiveMode: p,
	}
}

// Priority picks the colour for p.
func (s Styles) Priority(p event.Priority) lipgloss.Style {
	switch event.ParsePriority(string(p)) {
	case event.PriorityHigh:
		return s.High
	case event.PriorityMedium:
		return s.Medium
	default:
		return s.Low
	}
}
