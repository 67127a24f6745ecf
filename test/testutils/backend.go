package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
)

// Backend is a fake API backend that counts calls per route so tests can
// assert on how many network calls an operation made.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	counts   map[string]int
	handlers map[string]http.HandlerFunc
}

// NewBackend starts a fake backend. Routes without a registered handler
// return 404.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		counts:   make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.counts[key]++
		handler, ok := b.handlers[key]
		b.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(b.Server.Close)
	return b
}

// Handle registers a handler for "METHOD /path".
func (b *Backend) Handle(route string, handler http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[route] = handler
}

// HandleJSON registers a handler that responds with the given status and
// JSON body on every call.
func (b *Backend) HandleJSON(route string, status int, body interface{}) {
	b.Handle(route, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	})
}

// Count returns how many times "METHOD /path" was called.
func (b *Backend) Count(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[route]
}

// TotalCalls returns the total number of requests the backend received.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.counts {
		total += n
	}
	return total
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// NewTestConfig builds a config pointed at the given backend URL with
// settings suitable for tests.
func NewTestConfig(backendURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Grocify",
			Version:     "test",
			Environment: "test",
			LogLevel:    "error",
			LogFormat:   "console",
		},
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		API: config.APIConfig{
			BaseURL:       backendURL,
			Timeout:       5 * time.Second,
			DeleteRetries: 3,
		},
		Session: config.SessionConfig{
			Backend:    "memory",
			CookieName: "grocify-session",
			MaxAge:     time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Enable:         false,
			RequestsPerSec: 100,
			Burst:          100,
		},
	}
}
