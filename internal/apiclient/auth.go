package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// User is the authenticated principal returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginState describes where a login attempt landed.
type LoginState int

const (
	// LoginOK means the session is established.
	LoginOK LoginState = iota

	// LoginTotpCodeRequired means credentials were accepted but the
	// backend wants a TOTP code before establishing the session.
	LoginTotpCodeRequired

	// LoginTotpEnrollRequired means the account must enroll a TOTP
	// authenticator before it can log in.
	LoginTotpEnrollRequired

	// LoginRejected means the credentials were refused.
	LoginRejected
)

// LoginOutcome is the result of Login or VerifyTOTP.
type LoginOutcome struct {
	State LoginState
	User  *User
	Error string
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type totpPayload struct {
	Code string `json:"code"`
}

type authBody struct {
	User      *User  `json:"user"`
	CSRFToken string `json:"csrfToken"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// Login establishes a session with email/password credentials. The resulting
// session cookie lands in the client's jar; a CSRF token in the response body
// seeds the in-memory store. The login endpoints bypass Call's auth-recovery
// machinery: there is no session to refresh or verify yet, and a 401 here
// means bad credentials, not an expired token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	return c.authPost(ctx, "/auth/login", loginPayload{Email: email, Password: password})
}

// VerifyTOTP completes a login that answered with a TOTP challenge.
func (c *Client) VerifyTOTP(ctx context.Context, code string) (LoginOutcome, error) {
	return c.authPost(ctx, "/auth/totp/verify", totpPayload{Code: code})
}

func (c *Client) authPost(ctx context.Context, path string, payload any) (LoginOutcome, error) {
	body, contentType, err := encodeBody(Request{Method: http.MethodPost, Body: payload})
	if err != nil {
		return LoginOutcome{}, err
	}

	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: path}, body, contentType)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("auth request: %w", err)
	}

	var ab authBody
	// Parsed defensively like every other backend body.
	_ = resp.DecodeJSON(&ab)

	code := ab.Code
	if code == "" {
		code = ab.Error
	}

	switch {
	case resp.OK():
		if ab.CSRFToken != "" {
			c.csrf.Set(ab.CSRFToken)
		}
		c.logger.Info("login complete", "path", path)
		return LoginOutcome{State: LoginOK, User: ab.User}, nil

	case code == CodeTotpVerificationRequired:
		return LoginOutcome{State: LoginTotpCodeRequired}, nil

	case code == CodeTotpRequired:
		return LoginOutcome{State: LoginTotpEnrollRequired}, nil

	default:
		msg := ab.Error
		if msg == "" {
			msg = http.StatusText(resp.Status)
		}
		c.logger.Warn("login rejected", "path", path, "status", resp.Status)
		return LoginOutcome{State: LoginRejected, Error: msg}, nil
	}
}

// Me fetches the current principal through the full dispatcher, so an
// expired token is refreshed transparently.
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Call(ctx, Request{Method: http.MethodGet, Path: "/auth/me"})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		env := resp.envelope()
		if env.Error != "" {
			return nil, fmt.Errorf("fetch current user: %s", env.Error)
		}
		return nil, fmt.Errorf("fetch current user: status %d", resp.Status)
	}

	var ab authBody
	if err := resp.DecodeJSON(&ab); err != nil {
		return nil, err
	}
	if ab.User != nil {
		return ab.User, nil
	}

	// Some deployments return the user bare rather than wrapped.
	var user User
	if err := resp.DecodeJSON(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout tears down the session server-side, then clears local state. The
// server call is best effort; local state is cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	body, contentType, _ := encodeBody(Request{Method: http.MethodPost})
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: "/auth/logout"}, body, contentType)

	c.coord.ClearLocal()

	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("logout: status %d", resp.Status)
	}
	c.logger.Info("logged out")
	return nil
}
