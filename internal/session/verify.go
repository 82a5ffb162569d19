package session

import (
	"context"
	"io"
	"net/http"
	"time"
)

// VerifyOnce answers "is the current session still valid?" with a single
// lightweight probe. Concurrent callers share one in-flight probe and its
// outcome. The probe is purely informational: it never triggers logout or any
// other side effect, so the dispatcher can use it to tell a genuinely dead
// session apart from a transient 401 (a cookie not yet visible to a racing
// request).
func (c *Coordinator) VerifyOnce(ctx context.Context) bool {
	leader, done := c.verifyGate.begin()
	if !leader {
		c.logger.Debug("session probe already in flight, waiting for shared outcome")
		select {
		case <-done:
			valid, _ := c.verifyGate.outcome()
			return valid
		case <-ctx.Done():
			return false
		}
	}

	var valid bool
	defer func() { c.verifyGate.finish(valid, nil) }()

	valid = c.doVerify(ctx)
	return valid
}

func (c *Coordinator) doVerify(ctx context.Context) bool {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.MePath), nil)
	if err != nil {
		return false
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("session probe transport failure",
			"error", err,
			"elapsed", time.Since(start))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	valid := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.logger.Debug("session probe complete",
		"status", resp.StatusCode,
		"valid", valid,
		"elapsed", time.Since(start))
	return valid
}
