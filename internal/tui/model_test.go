package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	valid     bool
	inFlight  bool
	verifyCnt int
}

func (f *fakeProber) VerifyOnce(context.Context) bool {
	f.verifyCnt++
	return f.valid
}

func (f *fakeProber) RefreshInFlight() bool { return f.inFlight }

// plain strips ANSI styling so assertions see what the user reads.
func plain(view string) string {
	return ansi.Strip(view)
}

func TestViewBeforeFirstProbe(t *testing.T) {
	m := NewModel(&fakeProber{}, Options{BaseURL: "https://ops.example.com"})

	view := plain(m.View())
	assert.Contains(t, view, "opshub session status")
	assert.Contains(t, view, "https://ops.example.com")
	assert.Contains(t, view, "probing session")
	assert.NotContains(t, view, "VALID")
}

func TestProbeResultUpdatesView(t *testing.T) {
	m := NewModel(&fakeProber{valid: true}, Options{})

	next, cmd := m.Update(probeResultMsg{valid: true, latency: 42 * time.Millisecond})
	m = next.(Model)
	require.NotNil(t, cmd, "a successful probe schedules the next tick")

	view := plain(m.View())
	assert.Contains(t, view, "VALID")
	assert.Contains(t, view, "42ms")
	assert.Contains(t, view, "probes: 1")
}

func TestInvalidSessionShown(t *testing.T) {
	m := NewModel(&fakeProber{}, Options{})

	next, _ := m.Update(probeResultMsg{valid: false})
	m = next.(Model)

	view := plain(m.View())
	assert.Contains(t, view, "INVALID")
}

func TestRefreshInFlightBanner(t *testing.T) {
	m := NewModel(&fakeProber{inFlight: true}, Options{})
	assert.Contains(t, plain(m.View()), "token refresh in flight")
}

func TestTickTriggersProbe(t *testing.T) {
	prober := &fakeProber{valid: true}
	m := NewModel(prober, Options{ProbeTimeout: time.Second})

	next, cmd := m.Update(tickMsg{})
	m = next.(Model)
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(probeResultMsg)
	require.True(t, ok, "tick command runs a probe")
	assert.True(t, result.valid)
	assert.Equal(t, 1, prober.verifyCnt)
}

func TestManualReprobeKey(t *testing.T) {
	prober := &fakeProber{valid: true}
	m := NewModel(prober, Options{ProbeTimeout: time.Second})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	require.NotNil(t, cmd)

	// A second press while the probe is outstanding is ignored.
	_, cmd2 := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.Nil(t, cmd2)

	msg := cmd()
	_, ok := msg.(probeResultMsg)
	assert.True(t, ok)
}

func TestQuitKeys(t *testing.T) {
	m := NewModel(&fakeProber{}, Options{})

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(key)
		require.NotNil(t, cmd, "key %q must quit", key.String())
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestFooterListsKeybindings(t *testing.T) {
	m := NewModel(&fakeProber{}, Options{})
	view := plain(m.View())
	for _, hint := range []string{"r: probe now", "q: quit"} {
		if !strings.Contains(view, hint) {
			t.Errorf("footer missing %q in view:\n%s", hint, view)
		}
	}
}
