// Package session coordinates recovery of an expiring cookie-based session:
// single-flight token refresh, single-flight session verification, and a
// deduplicated forced logout. One Coordinator is shared by every request a
// client dispatches, so dozens of concurrent failures collapse into one
// refresh, one probe, or one logout instead of a thundering herd.
package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// UserState is the persisted local state cleared on forced logout. The sqlite
// store implements it; tests supply fakes.
type UserState interface {
	Clear() error
}

// Config configures a Coordinator.
type Config struct {
	// BaseURL is the backend origin the auth endpoints live under.
	BaseURL *url.URL

	// HTTPClient performs the probe and refresh calls. It must carry the
	// cookie jar holding the session credential. Required.
	HTTPClient *http.Client

	// CSRF is updated when a refresh response carries a new token and
	// cleared on logout. Optional.
	CSRF *CSRFStore

	// UserState is cleared on forced logout. Optional.
	UserState UserState

	// OnSessionInvalid is invoked once per forced logout with a
	// human-readable reason. The hosting application registers navigation
	// here; when nil the logout is only logged.
	OnSessionInvalid func(reason string)

	// MePath is the lightweight "who am I" probe endpoint.
	// Default: /auth/me
	MePath string

	// RefreshPath is the credential refresh endpoint.
	// Default: /auth/refresh
	RefreshPath string

	// LogoutCooldown is how long the logout guard stays armed after firing.
	// A second session drop after the cooldown may trigger a fresh logout.
	// Default: 2s
	LogoutCooldown time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// Coordinator owns the three single-flight gates. Gates are independent: a
// refresh and a probe may be in flight at the same time, but never two of
// either.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	refreshGate gate
	verifyGate  gate
	logoutGuard logoutGuard
}

// New creates a Coordinator. It returns an error only on missing required
// configuration.
func New(cfg Config) (*Coordinator, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("session: HTTPClient is required")
	}
	if cfg.BaseURL == nil {
		return nil, fmt.Errorf("session: BaseURL is required")
	}
	if cfg.MePath == "" {
		cfg.MePath = "/auth/me"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth/refresh"
	}
	if cfg.LogoutCooldown <= 0 {
		cfg.LogoutCooldown = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

func (c *Coordinator) endpoint(path string) string {
	return c.cfg.BaseURL.JoinPath(path).String()
}
