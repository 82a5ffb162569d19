package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50fa7b"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c"))
	styleErr  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
)

// formatLatency renders a probe latency compactly for CLI output.
func formatLatency(d time.Duration) string {
	if d <= 0 {
		return "0ms"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
