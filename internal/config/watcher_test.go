package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForConfig(t *testing.T, w *Watcher, timeout time.Duration) Config {
	t.Helper()
	select {
	case cfg, ok := <-w.Events():
		require.True(t, ok, "events channel closed before a reload arrived")
		return cfg
	case err := <-w.Errors():
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(timeout):
		t.Fatal("timed out waiting for config reload")
	}
	return Config{}
}

func TestWatcherEmitsReloadedConfig(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0600))

	w, err := NewWatcherWithDebounce(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0600))

	cfg := waitForConfig(t, w, 3*time.Second)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0600))

	w, err := NewWatcherWithDebounce(path, 60*time.Millisecond, testLogger())
	require.NoError(t, err)
	defer w.Close()

	// An editor-style burst: several writes closer together than the
	// debounce window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0600))
		time.Sleep(10 * time.Millisecond)
	}

	cfg := waitForConfig(t, w, 3*time.Second)
	assert.Equal(t, "warn", cfg.LogLevel)

	// The burst collapses into one reload; no second event follows.
	select {
	case extra, ok := <-w.Events():
		if ok {
			t.Fatalf("unexpected second reload: %+v", extra)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0600))

	w, err := NewWatcherWithDebounce(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	select {
	case cfg := <-w.Events():
		t.Fatalf("sibling file change triggered a reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherSurfacesReloadErrors(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0600))

	w, err := NewWatcherWithDebounce(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0600))

	select {
	case err := <-w.Errors():
		assert.Error(t, err)
	case cfg := <-w.Events():
		t.Fatalf("invalid config emitted as a reload: %+v", cfg)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0600))

	w, err := NewWatcher(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NotPanics(t, func() { _ = w.Close() })
}

func TestNewWatcherRequiresPath(t *testing.T) {
	_, err := NewWatcherWithDebounce("", time.Millisecond, testLogger())
	assert.Error(t, err)
}
