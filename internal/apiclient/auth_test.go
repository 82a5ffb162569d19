package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginEstablishesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode login payload: %v", err)
		}
		if payload.Email != "ops@example.com" || payload.Password != "hunter2" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", HttpOnly: true, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{
			"user":      map[string]any{"id": "u1", "email": "ops@example.com", "role": "admin"},
			"csrfToken": "fresh-token",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newTestClient(t, ts, nil)

	outcome, err := client.Login(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, LoginOK, outcome.State)
	require.NotNil(t, outcome.User)
	assert.Equal(t, "admin", outcome.User.Role)
	assert.Equal(t, "fresh-token", client.CSRF().Token())
}

func TestLoginRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
	}))
	defer ts.Close()

	client := newTestClient(t, ts, nil)

	outcome, err := client.Login(context.Background(), "ops@example.com", "wrong")
	require.NoError(t, err)

	assert.Equal(t, LoginRejected, outcome.State)
	assert.Equal(t, "invalid credentials", outcome.Error)
}

func TestLoginTotpChallenge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"code": CodeTotpVerificationRequired})
	})
	mux.HandleFunc("/auth/totp/verify", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode totp payload: %v", err)
		}
		if payload.Code != "123456" {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "bad code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{"id": "u1", "email": "ops@example.com"},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newTestClient(t, ts, nil)

	outcome, err := client.Login(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, LoginTotpCodeRequired, outcome.State)

	outcome, err = client.VerifyTOTP(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, LoginOK, outcome.State)
}

func TestLoginTotpEnrollRequired(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": CodeTotpRequired})
	}))
	defer ts.Close()

	client := newTestClient(t, ts, nil)

	outcome, err := client.Login(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, LoginTotpEnrollRequired, outcome.State)
}

func TestMeUnwrapsUser(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{name: "wrapped", body: map[string]any{"user": map[string]any{"id": "u1", "email": "a@b.c"}}},
		{name: "bare", body: map[string]any{"id": "u1", "email": "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			}))
			defer ts.Close()

			client := newTestClient(t, ts, nil)
			user, err := client.Me(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "a@b.c", user.Email)
		})
	}
}

func TestLogoutClearsLocalStateEvenOnServerFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	}))
	defer ts.Close()

	cleared := false
	client := newTestClient(t, ts, func(cfg *Config) {
		cfg.UserState = clearFunc(func() error {
			cleared = true
			return nil
		})
	})
	client.CSRF().Set("tok")

	err := client.Logout(context.Background())
	assert.Error(t, err)
	assert.True(t, cleared)
	assert.Empty(t, client.CSRF().Token())
}
