package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounceDelay = 100 * time.Millisecond
	defaultEventsBuffer  = 4
	defaultErrorsBuffer  = 4
)

// Watcher monitors the config file and emits a freshly loaded Config after
// each change. Events are debounced because editors typically produce a
// write/rename burst per save, and the file's directory is watched rather
// than the file itself so rename-replace saves keep working.
type Watcher struct {
	path   string
	delay  time.Duration
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher
	events    chan Config
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once

	wg sync.WaitGroup
}

// NewWatcher watches the config file at path with the default debounce delay.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	return NewWatcherWithDebounce(path, defaultDebounceDelay, logger)
}

// NewWatcherWithDebounce watches with a configurable debounce delay.
func NewWatcherWithDebounce(path string, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path:      absPath,
		delay:     delay,
		logger:    logger,
		fsWatcher: fsw,
		events:    make(chan Config, defaultEventsBuffer),
		errors:    make(chan error, defaultErrorsBuffer),
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	return w, nil
}

// Events returns a channel of reloaded configurations.
func (w *Watcher) Events() <-chan Config { return w.events }

// Errors returns a channel of watch and reload errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher and releases OS resources.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		close(w.done)
	})
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.errors)

	// Debounce timer, armed on the first relevant event of a burst.
	timer := time.NewTimer(w.delay)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-w.done:
			return

		case evt, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.delay)
			armed = true

		case <-timer.C:
			armed = false
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		w.emitError(err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	select {
	case w.events <- cfg:
	default:
		// Best-effort: drop if consumer is stalled.
	}
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		// Best-effort: drop if consumer is stalled.
	}
}
