package session

import (
	"sync"
	"time"
)

// logoutGuard deduplicates forced-logout side effects. Unlike the other two
// gates there is nothing to wait for: duplicate triggers are dropped, not
// queued.
type logoutGuard struct {
	mu     sync.Mutex
	active bool
}

// TriggerLogout performs the forced-logout side effects exactly once per
// cooldown window: clear the persisted user state, drop the in-memory CSRF
// token, then hand control to the registered OnSessionInvalid callback.
// Calls arriving while the guard is armed are logged and dropped. The guard
// re-arms after LogoutCooldown so an independent session drop later (after
// the user re-authenticates) can log out again.
func (c *Coordinator) TriggerLogout(reason string) {
	c.logoutGuard.mu.Lock()
	if c.logoutGuard.active {
		c.logoutGuard.mu.Unlock()
		c.logger.Debug("logout already in progress, skipping duplicate",
			"reason", reason)
		return
	}
	c.logoutGuard.active = true
	c.logoutGuard.mu.Unlock()

	c.logger.Warn("forcing logout", "reason", reason)

	c.ClearLocal()

	if c.cfg.OnSessionInvalid != nil {
		c.cfg.OnSessionInvalid(reason)
	} else {
		c.logger.Warn("no OnSessionInvalid callback registered; session state cleared only")
	}

	time.AfterFunc(c.cfg.LogoutCooldown, func() {
		c.logoutGuard.mu.Lock()
		c.logoutGuard.active = false
		c.logoutGuard.mu.Unlock()
	})
}

// LogoutInProgress reports whether the guard is currently armed.
func (c *Coordinator) LogoutInProgress() bool {
	c.logoutGuard.mu.Lock()
	defer c.logoutGuard.mu.Unlock()
	return c.logoutGuard.active
}

// ClearLocal wipes local session state (persisted user, in-memory CSRF
// token) without redirect side effects. Used by TriggerLogout and by the
// TOTP step-up path, which clears the session but navigates to
// re-authentication instead of the login page.
func (c *Coordinator) ClearLocal() {
	if c.cfg.UserState != nil {
		if err := c.cfg.UserState.Clear(); err != nil {
			c.logger.Error("failed to clear persisted user state", "error", err)
		}
	}
	if c.cfg.CSRF != nil {
		c.cfg.CSRF.Clear()
	}
}
