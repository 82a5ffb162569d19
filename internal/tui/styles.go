package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorRed    = lipgloss.Color("#ff5555")
	colorPurple = lipgloss.Color("#bd93f9")
	colorGray   = lipgloss.Color("#6272a4")
)

// Styles holds the lipgloss styles for the status view.
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Valid   lipgloss.Style
	Invalid lipgloss.Style
	Warn    lipgloss.Style
	Footer  lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPurple).
			MarginBottom(1),

		Label: lipgloss.NewStyle().
			Foreground(colorGray),

		Valid: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen),

		Invalid: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed),

		Warn: lipgloss.NewStyle().
			Foreground(colorYellow),

		Footer: lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1),
	}
}
