// Package testutil provides testing utilities for the B2Chat sync core.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock B2Chat endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockB2Chat is a configurable mock B2Chat API server for testing. Its
// default token endpoint grants "test-token" for one hour.
type MockB2Chat struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	TokenRequests     int
	LastRequestHeader http.Header
	LastQuery         url.Values
}

// NewMockB2Chat creates a new mock B2Chat server.
func NewMockB2Chat() *MockB2Chat {
	mock := &MockB2Chat{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query()
		if r.URL.Path == "/oauth/token" {
			mock.TokenRequests++
		}
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handlers
		if r.URL.Path == "/oauth/token" {
			mock.defaultTokenHandler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockB2Chat) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockB2Chat) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockB2Chat) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenRequests = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockB2Chat) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockB2Chat) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.Headers["Content-Type"] == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetTokenResponse overrides the token endpoint with a fixed token and
// expiry. Useful for token caching and expiry tests.
func (m *MockB2Chat) SetTokenResponse(token string, expiresIn int) {
	m.SetResponse("/oauth/token", MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"access_token": %q, "expires_in": %d}`, token, expiresIn),
	})
}

// SetTokenFailure makes the token endpoint return the given status.
func (m *MockB2Chat) SetTokenFailure(statusCode int) {
	m.SetResponse("/oauth/token", MockResponse{
		StatusCode: statusCode,
		Body:       `{"error": "invalid_client"}`,
	})
}

// SetContactsPage configures /contacts/export with a raw records array and
// the server-reported exported/total counts.
func (m *MockB2Chat) SetContactsPage(recordsJSON string, exported, total int) {
	m.SetResponse("/contacts/export", MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"contacts": %s, "exported": %d, "total": %d}`, recordsJSON, exported, total),
	})
}

// SetChatsPage configures /chats/export the same way.
func (m *MockB2Chat) SetChatsPage(recordsJSON string, exported, total int) {
	m.SetResponse("/chats/export", MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"chats": %s, "exported": %d, "total": %d}`, recordsJSON, exported, total),
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockB2Chat) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokenRequests returns the number of token exchanges performed.
func (m *MockB2Chat) GetTokenRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenRequests
}

// GetLastQuery returns the query values of the most recent request.
func (m *MockB2Chat) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// defaultTokenHandler grants a one-hour token to any credential pair.
func (m *MockB2Chat) defaultTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, _, ok := r.BasicAuth(); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_client"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"access_token": "test-token", "expires_in": 3600}`))
}

// defaultHandler returns an empty export page.
func (m *MockB2Chat) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"contacts": [], "chats": [], "exported": 0, "total": 0}`))
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
