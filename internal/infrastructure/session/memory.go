package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on
// restart, which forces a clean re-login rather than a stale token.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
	done     chan struct{}
}

// NewMemoryStore creates an in-memory store and starts its cleanup loop.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.cleanupExpired()
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if sess.Expired(time.Now()) {
		_ = s.Delete(context.Background(), id)
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	cp := *sess
	s.mu.Lock()
	s.sessions[sess.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Close stops the cleanup loop.
func (s *MemoryStore) Close() {
	close(s.done)
}

func (s *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, sess := range s.sessions {
				if sess.Expired(now) {
					delete(s.sessions, id)
					s.logger.Debug("Cleaned up expired session", zap.String("session_id", id))
				}
			}
			s.mu.Unlock()
		}
	}
}
