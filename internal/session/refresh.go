package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// refreshResponse is the body of a successful POST to the refresh endpoint.
// The token is optional; some deployments rotate CSRF tokens on refresh and
// some do not.
type refreshResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// Refresh performs a single-flight credential refresh.
//
// The return values separate the two failure modes the dispatcher treats
// differently: ok=false with a nil error means the server definitively
// rejected the refresh (the session is gone, logout follows); a non-nil error
// means the refresh request itself failed in transport and the outcome is
// unknown (callers fail open).
//
// If a refresh is already in flight the caller waits for it and receives the
// shared outcome rather than issuing a second request.
func (c *Coordinator) Refresh(ctx context.Context) (bool, error) {
	leader, done := c.refreshGate.begin()
	if !leader {
		c.logger.Debug("refresh already in flight, waiting for shared outcome")
		select {
		case <-done:
			return c.refreshGate.outcome()
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	var (
		ok  bool
		err error
	)
	defer func() { c.refreshGate.finish(ok, err) }()

	ok, err = c.doRefresh(ctx)
	return ok, err
}

func (c *Coordinator) doRefresh(ctx context.Context) (bool, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.RefreshPath), nil)
	if err != nil {
		return false, fmt.Errorf("create refresh request: %w", err)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("refresh transport failure",
			"error", err,
			"elapsed", time.Since(start))
		return false, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("refresh rejected",
			"status", resp.StatusCode,
			"elapsed", time.Since(start))
		return false, nil
	}

	// New CSRF token is optional; a missing or malformed body still counts
	// as a successful refresh because the cookie was already rotated.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var rr refreshResponse
	if jsonErr := json.Unmarshal(body, &rr); jsonErr == nil && rr.CSRFToken != "" && c.cfg.CSRF != nil {
		c.cfg.CSRF.Set(rr.CSRFToken)
	}

	c.logger.Info("session refreshed",
		"elapsed", time.Since(start))
	return true, nil
}

// RefreshInFlight reports whether a refresh is currently running.
func (c *Coordinator) RefreshInFlight() bool {
	return c.refreshGate.active()
}
