package apiclient

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{name: "2xx", status: 200, body: `{"data":{}}`, wantKind: KindSuccess},
		{name: "201", status: 201, wantKind: KindSuccess},
		{name: "plain 400", status: 400, body: `{"error":"bad input"}`, wantKind: KindClientError},
		{name: "404", status: 404, wantKind: KindClientError},
		{name: "500", status: 500, wantKind: KindServerError},
		{name: "503", status: 503, body: "<html>gateway</html>", wantKind: KindServerError},
		{name: "transport error", err: errors.New("connection refused"), wantKind: KindNetworkError},
		{
			name: "401 expired token", status: 401,
			body:     `{"code":"ACCESS_TOKEN_EXPIRED"}`,
			wantKind: KindAuthExpired, wantCode: CodeAccessTokenExpired,
		},
		{
			name: "401 expired token in error field", status: 401,
			body:     `{"error":"ACCESS_TOKEN_EXPIRED"}`,
			wantKind: KindAuthExpired, wantCode: CodeAccessTokenExpired,
		},
		{name: "401 other", status: 401, body: `{"error":"unauthorized"}`, wantKind: KindSessionSuspect},
		{name: "401 unparseable body", status: 401, body: "Internal Server Error", wantKind: KindSessionSuspect},
		{
			name: "403 verification required", status: 403,
			body:     `{"code":"TOTP_VERIFICATION_REQUIRED"}`,
			wantKind: KindStepUpRequired,
		},
		{
			name: "403 verification expired", status: 403,
			body:     `{"error":"TOTP_VERIFICATION_EXPIRED"}`,
			wantKind: KindStepUpExpired,
		},
		{
			name: "403 not enrolled", status: 403,
			body:     `{"error":"TOTP_REQUIRED"}`,
			wantKind: KindStepUpNotEnrolled,
		},
		{name: "403 plain forbidden", status: 403, body: `{"error":"forbidden"}`, wantKind: KindClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *Response
			if tt.err == nil {
				resp = &Response{
					Status: tt.status,
					Header: http.Header{},
					Body:   []byte(tt.body),
				}
			}
			cls := classify(resp, tt.err)
			assert.Equal(t, tt.wantKind, cls.Kind)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, cls.Code)
			}
			if tt.err == nil {
				assert.Equal(t, tt.status, cls.Status)
			}
		})
	}
}

func TestEnvelopeParsesDefensively(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "html error page", body: "<html><body>502</body></html>"},
		{name: "truncated json", body: `{"error":"bro`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Status: 502, Body: []byte(tt.body)}
			env := resp.envelope()
			assert.Empty(t, env.Error)
			assert.Empty(t, env.Code)
		})
	}
}
