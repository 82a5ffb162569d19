// Package tui provides the live session status view for opshub.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Prober answers session status questions. *session.Coordinator satisfies
// it; tests supply fakes.
type Prober interface {
	VerifyOnce(ctx context.Context) bool
	RefreshInFlight() bool
}

// Options configures the status view.
type Options struct {
	// BaseURL is shown in the header.
	BaseURL string

	// Interval between probes. Default: 5s
	Interval time.Duration

	// ProbeTimeout bounds each probe. Default: 10s
	ProbeTimeout time.Duration
}

type probeResultMsg struct {
	valid   bool
	latency time.Duration
}

type tickMsg struct{}

// Model is the Bubble Tea model for `opshub status --watch`.
type Model struct {
	prober  Prober
	opts    Options
	styles  Styles
	spinner spinner.Model

	probing   bool
	hasResult bool
	valid     bool
	latency   time.Duration
	checkedAt time.Time
	probes    int
}

// NewModel creates the status view model.
func NewModel(prober Prober, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return Model{
		prober:  prober,
		opts:    opts,
		styles:  DefaultStyles(),
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.probe())
}

func (m Model) probe() tea.Cmd {
	prober := m.prober
	timeout := m.opts.ProbeTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		valid := prober.VerifyOnce(ctx)
		return probeResultMsg{valid: valid, latency: time.Since(start)}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.probing {
				m.probing = true
				return m, m.probe()
			}
		}
		return m, nil

	case probeResultMsg:
		m.probing = false
		m.hasResult = true
		m.valid = msg.valid
		m.latency = msg.latency
		m.checkedAt = time.Now()
		m.probes++
		return m, m.scheduleTick()

	case tickMsg:
		m.probing = true
		return m, m.probe()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	out := m.styles.Header.Render("opshub session status") + "\n"
	out += m.styles.Label.Render("backend: ") + m.opts.BaseURL + "\n"

	switch {
	case !m.hasResult:
		out += m.spinner.View() + " probing session...\n"
	case m.valid:
		out += m.styles.Label.Render("session: ") + m.styles.Valid.Render("VALID") +
			fmt.Sprintf("  (%s, checked %s)\n", m.latency.Round(time.Millisecond), m.checkedAt.Format("15:04:05"))
	default:
		out += m.styles.Label.Render("session: ") + m.styles.Invalid.Render("INVALID") +
			fmt.Sprintf("  (checked %s)\n", m.checkedAt.Format("15:04:05"))
	}

	if m.prober.RefreshInFlight() {
		out += m.styles.Warn.Render("token refresh in flight") + "\n"
	}
	if m.probing && m.hasResult {
		out += m.spinner.View() + " re-probing...\n"
	}

	out += m.styles.Footer.Render(fmt.Sprintf("probes: %d  ·  r: probe now  ·  q: quit", m.probes))
	return out
}
