package session

import (
	"net/http"
	"net/url"
	"sync"
)

// CSRFStore holds the anti-forgery token attached to state-changing requests.
// Lookup is two-tier: the in-memory value set by login or refresh wins; when
// none is set the token is read from a named cookie in the client's jar.
type CSRFStore struct {
	cookieName string
	jar        http.CookieJar
	base       *url.URL

	mu    sync.RWMutex
	token string
}

// NewCSRFStore creates a store reading fallback tokens from cookieName in jar,
// scoped to the given base URL.
func NewCSRFStore(cookieName string, jar http.CookieJar, base *url.URL) *CSRFStore {
	return &CSRFStore{
		cookieName: cookieName,
		jar:        jar,
		base:       base,
	}
}

// Set replaces the in-memory token.
func (s *CSRFStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the in-memory token. The cookie, if any, is left to the server
// to expire.
func (s *CSRFStore) Clear() {
	s.Set("")
}

// Token returns the current token, or "" when neither tier has one. A missing
// token is not an error; requests are sent without the header and the server
// rejects them if it cares.
func (s *CSRFStore) Token() string {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		return token
	}

	if s.jar == nil || s.base == nil {
		return ""
	}
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == s.cookieName {
			return c.Value
		}
	}
	return ""
}
