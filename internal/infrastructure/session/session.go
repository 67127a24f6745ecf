// Package session owns the browser-session token lifecycle: the token
// store, its change notifications, and the controller state machine that
// decides between using, refreshing and discarding the access token.
package session

import (
	"context"
	"time"
)

// Session is the per-browser session record. At most one non-null access
// token is authoritative at a time; a successful refresh replaces it
// atomically before any dependent request is retried.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Authenticated reports whether the session holds an access token. Token
// validity is discovered reactively via 401 responses, never predicted.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// Expired reports whether the server-side session record has lapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists session records. Implementations: in-memory (default) and
// Redis.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned by stores for unknown or expired session IDs.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

// ErrNotFound is the sentinel for missing sessions.
var ErrNotFound error = notFoundError{}
