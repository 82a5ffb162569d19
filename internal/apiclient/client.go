// Package apiclient dispatches authenticated requests to the opshub backend
// and recovers from expiring sessions transparently. The backend protects
// itself with an httpOnly session cookie, a CSRF header on state-changing
// requests, and TOTP step-up for sensitive operations; this package turns
// that into a flat call contract: transient failures are retried with
// backoff, an expired access token is refreshed behind the caller's back, and
// a genuinely dead session forces exactly one logout no matter how many
// requests hit it concurrently.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/opshub-io/opshub/internal/session"
)

// StepUp identifies which step-up entry point the hosting application should
// navigate to.
type StepUp int

const (
	// StepUpReauth means TOTP verification is required or has lapsed; the
	// user must re-verify at the re-authentication entry point.
	StepUpReauth StepUp = iota

	// StepUpEnroll means the account has no TOTP enrolled; the user must
	// visit profile setup first.
	StepUpEnroll
)

func (s StepUp) String() string {
	switch s {
	case StepUpReauth:
		return "reauth"
	case StepUpEnroll:
		return "enroll"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. https://ops.example.com/api.
	// Required.
	BaseURL string

	// HTTPClient performs the network sends. When nil a client with a
	// fresh cookie jar and a 30s timeout is created. A supplied client
	// should carry a jar or the session cookie will not stick.
	HTTPClient *http.Client

	// Retry bounds the transient-failure loop. Zero value means
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// SettleDelay is slept after a successful refresh or probe before
	// re-dispatching, giving rotated cookies time to land. Default: 300ms
	SettleDelay time.Duration

	// RefreshWait bounds how long a call waits on a refresh another call
	// started before proceeding anyway. Default: 10s
	RefreshWait time.Duration

	// RefreshPoll is the poll interval during RefreshWait. Default: 100ms
	RefreshPoll time.Duration

	// CSRFHeader is the header carrying the anti-forgery token on non-GET
	// requests. Default: X-CSRF-Token
	CSRFHeader string

	// CSRFCookie is the cookie consulted when no in-memory token is set.
	// Default: csrf_token
	CSRFCookie string

	// MePath and RefreshPath override the auth endpoints. Defaults:
	// /auth/me, /auth/refresh
	MePath      string
	RefreshPath string

	// LogoutCooldown re-arms the logout guard after this long. Default: 2s
	LogoutCooldown time.Duration

	// UserState is the persisted local state cleared on forced logout.
	// Optional.
	UserState session.UserState

	// OnSessionInvalid is invoked once per forced logout. The hosting
	// application registers its login navigation here.
	OnSessionInvalid func(reason string)

	// OnStepUpRequired is invoked when a 403 demands TOTP step-up, with
	// the entry point the user should be sent to.
	OnStepUpRequired func(StepUp)

	// Logger for structured logging.
	Logger *slog.Logger
}

// Client is the request dispatcher. One Client, with its coordinator and
// cookie jar, is shared by all callers for the life of the process.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger

	retry       RetryPolicy
	settleDelay time.Duration
	refreshWait time.Duration
	refreshPoll time.Duration
	csrfHeader  string

	csrf  *session.CSRFStore
	coord *session.Coordinator

	onStepUp func(StepUp)
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		}
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 300 * time.Millisecond
	}
	if cfg.RefreshWait <= 0 {
		cfg.RefreshWait = 10 * time.Second
	}
	if cfg.RefreshPoll <= 0 {
		cfg.RefreshPoll = 100 * time.Millisecond
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "X-CSRF-Token"
	}
	if cfg.CSRFCookie == "" {
		cfg.CSRFCookie = "csrf_token"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Correlation ID so logs from multiple clients in one process (tests,
	// mostly) stay distinguishable.
	logger := cfg.Logger.With("client_id", uuid.New().String()[:8])

	csrf := session.NewCSRFStore(cfg.CSRFCookie, httpClient.Jar, base)

	coord, err := session.New(session.Config{
		BaseURL:          base,
		HTTPClient:       httpClient,
		CSRF:             csrf,
		UserState:        cfg.UserState,
		OnSessionInvalid: cfg.OnSessionInvalid,
		MePath:           cfg.MePath,
		RefreshPath:      cfg.RefreshPath,
		LogoutCooldown:   cfg.LogoutCooldown,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:     base,
		http:        httpClient,
		logger:      logger,
		retry:       cfg.Retry,
		settleDelay: cfg.SettleDelay,
		refreshWait: cfg.RefreshWait,
		refreshPoll: cfg.RefreshPoll,
		csrfHeader:  cfg.CSRFHeader,
		csrf:        csrf,
		coord:       coord,
		onStepUp:    cfg.OnStepUpRequired,
	}, nil
}

// Session exposes the coordination primitives (probe, refresh, logout) for
// callers that need them directly, such as the status view.
func (c *Client) Session() *session.Coordinator {
	return c.coord
}

// CSRF exposes the token store so the login flow can seed it.
func (c *Client) CSRF() *session.CSRFStore {
	return c.csrf
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// Call dispatches one logical request and runs the full recovery state
// machine. It returns the (possibly non-2xx) response for every definitive
// outcome, and a *NetworkFailure when the transient-retry budget is
// exhausted on connectivity failures or 5xx responses.
//
// The call makes at most one auth-recovery hop: after a refresh or
// verification probe the request is re-dispatched exactly once, and any 401
// in that second generation forces logout rather than another recovery
// round. Transient 5xx/transport failures are retried with backoff inside
// each generation, so the physical attempt ceiling is two generations times
// the retry budget.
//
// If another call's token refresh is in flight, Call soft-waits for it up to
// RefreshWait and then proceeds regardless. A refresh still running after
// the wait can hand this call a stale token; that fail-open race is accepted
// to avoid deadlocking every request behind a hung refresh.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With(
		"request_id", uuid.New().String()[:8],
		"method", req.Method,
		"path", req.Path,
	)

	// Two generations: the original dispatch and at most one re-dispatch
	// after auth recovery. The loop shape, not a counter check, is what
	// bounds the recovery to a single hop.
	for gen := 0; gen < 2; gen++ {
		if err := c.waitForRefresh(ctx, logger); err != nil {
			return nil, err
		}

		resp, cls, err := c.dispatchWithBackoff(ctx, req, body, contentType, logger)
		if err != nil && cls.Kind != KindNetworkError {
			// Context cancellation during a backoff sleep.
			return nil, err
		}

		switch cls.Kind {
		case KindSuccess, KindClientError:
			return resp, nil

		case KindServerError:
			// The budget ran out on 5xx. Like exhausted transport
			// failures, this surfaces as an error rather than a
			// response; a caller cannot act on a 500 any better than
			// on a connection failure.
			return nil, &NetworkFailure{
				Method:   req.Method,
				Path:     req.Path,
				Attempts: c.retry.MaxAttempts,
				Status:   cls.Status,
				Err:      fmt.Errorf("server error: status %d", cls.Status),
			}

		case KindNetworkError:
			return nil, &NetworkFailure{
				Method:   req.Method,
				Path:     req.Path,
				Attempts: c.retry.MaxAttempts,
				Err:      err,
			}

		case KindStepUpRequired, KindStepUpExpired:
			logger.Warn("step-up verification required",
				"code", cls.Code,
				"generation", gen)
			c.coord.ClearLocal()
			c.stepUp(StepUpReauth)
			return resp, nil

		case KindStepUpNotEnrolled:
			logger.Warn("step-up required but not enrolled",
				"generation", gen)
			c.stepUp(StepUpEnroll)
			return resp, nil

		case KindAuthExpired:
			if gen > 0 {
				logger.Warn("401 after auth recovery, forcing logout")
				c.coord.TriggerLogout("session expired after token refresh")
				return resp, nil
			}
			ok, refreshErr := c.coord.Refresh(ctx)
			if refreshErr != nil {
				// Transport failure during refresh: the outcome is
				// unknown, so fail open and hand the caller the
				// original 401 instead of logging out.
				logger.Warn("refresh transport failure, failing open",
					"error", refreshErr)
				return resp, nil
			}
			if !ok {
				logger.Warn("refresh rejected, forcing logout")
				c.coord.TriggerLogout("credential refresh rejected")
				return resp, nil
			}
			logger.Info("token refreshed, re-dispatching")
			if err := c.settle(ctx); err != nil {
				return nil, err
			}
			continue

		case KindSessionSuspect:
			if gen > 0 {
				logger.Warn("401 after auth recovery, forcing logout")
				c.coord.TriggerLogout("session expired after verification")
				return resp, nil
			}
			if !c.coord.VerifyOnce(ctx) {
				logger.Warn("session probe negative, forcing logout")
				c.coord.TriggerLogout("session no longer valid")
				return resp, nil
			}
			// The session is fine; the 401 was a racy cookie. Settle
			// and try once more.
			logger.Info("session verified despite 401, re-dispatching")
			if err := c.settle(ctx); err != nil {
				return nil, err
			}
			continue

		default:
			return resp, nil
		}
	}

	// Unreachable: every generation-1 branch returns.
	return nil, fmt.Errorf("dispatch loop exited without outcome")
}

// dispatchWithBackoff runs the bounded transient-retry loop for one
// generation. It returns the final response (possibly nil on transport
// failure) plus its classification. Retries inside this loop do not count as
// auth-recovery hops.
func (c *Client) dispatchWithBackoff(ctx context.Context, req Request, body []byte, contentType string, logger *slog.Logger) (*Response, classification, error) {
	var (
		resp *Response
		cls  classification
		err  error
	)

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		resp, err = c.send(ctx, req, body, contentType)
		cls = classify(resp, err)

		if !c.retry.Retryable(cls.Kind) || attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.DelayFor(attempt)
		logger.Warn("transient failure, backing off",
			"kind", cls.Kind.String(),
			"status", cls.Status,
			"attempt", attempt+1,
			"max_attempts", c.retry.MaxAttempts,
			"delay", delay,
			"error", err)

		if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
			return resp, classification{Kind: cls.Kind}, sleepErr
		}
	}

	return resp, cls, err
}

// send performs one physical network attempt.
func (c *Client) send(ctx context.Context, req Request, body []byte, contentType string) (*Response, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, values := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(key)] = values
	}

	// CSRF only on state-changing methods. A missing token is sent as a
	// missing header, not an error; the server decides.
	if req.Method != http.MethodGet {
		if token := c.csrf.Token(); token != "" {
			httpReq.Header.Set(c.csrfHeader, token)
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// waitForRefresh blocks while another call's refresh is in flight, polling
// until it clears or RefreshWait elapses. On timeout the call proceeds
// anyway; see the Call doc comment.
func (c *Client) waitForRefresh(ctx context.Context, logger *slog.Logger) error {
	if !c.coord.RefreshInFlight() {
		return nil
	}

	deadline := time.Now().Add(c.refreshWait)
	for c.coord.RefreshInFlight() {
		if time.Now().After(deadline) {
			logger.Warn("refresh still in flight after bounded wait, proceeding",
				"waited", c.refreshWait)
			return nil
		}
		if err := sleepCtx(ctx, c.refreshPoll); err != nil {
			return err
		}
	}
	return nil
}

// settle gives a rotated cookie time to propagate before re-dispatch.
func (c *Client) settle(ctx context.Context) error {
	return sleepCtx(ctx, c.settleDelay)
}

func (c *Client) stepUp(kind StepUp) {
	if c.onStepUp != nil {
		c.onStepUp(kind)
		return
	}
	c.logger.Warn("no OnStepUpRequired callback registered", "step_up", kind.String())
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.Form != nil {
		return encodeForm(req.Form)
	}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return body, "application/json", nil
	}
	if req.Method == http.MethodGet {
		return nil, "", nil
	}
	return nil, "application/json", nil
}

func encodeForm(form *FormData) ([]byte, string, error) {
	return form.encode()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
