package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
)

// Change notifies subscribers that a session's tokens were written or
// cleared, the analog of a browser storage event. Other open views
// resynchronize on it; consistency across views is eventual and
// event-driven, never polled.
type Change struct {
	SessionID     string
	Authenticated bool
}

// Manager is the process-wide token store front. All token writes go
// through it so every write persists before use and emits a change event.
// Writes are last-write-wins.
type Manager struct {
	store  Store
	cfg    config.SessionConfig
	logger *zap.Logger

	mu      sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// NewManager creates a manager over the given store.
func NewManager(store Store, cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg.Session,
		logger: logger,
		subs:   make(map[int]chan Change),
	}
}

// Load resolves the session for a request from its cookie. Missing cookie,
// unknown ID and expired record all return ErrNotFound.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.store.Get(r.Context(), cookie.Value)
}

// New creates and persists a fresh unauthenticated session.
func (m *Manager) New(ctx context.Context) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.MaxAge),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Attach sets the session cookie on the response.
func (m *Manager) Attach(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
	})
}

// SetTokens stores a new token pair. An empty refresh token keeps the
// existing one, which is the refresh-call case: only the access token is
// replaced. The write is persisted before SetTokens returns, so a caller
// retrying a request after refresh always retries with the stored token.
func (m *Manager) SetTokens(ctx context.Context, sess *Session, access, refresh string) error {
	sess.AccessToken = access
	if refresh != "" {
		sess.RefreshToken = refresh
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	m.notify(Change{SessionID: sess.ID, Authenticated: true})
	return nil
}

// SetUsername records the resolved identity for display.
func (m *Manager) SetUsername(ctx context.Context, sess *Session, username string) error {
	sess.Username = username
	return m.store.Save(ctx, sess)
}

// Clear drops tokens and identity, persisting the cleared record. Emits a
// change event so other views fall back to the login gate.
func (m *Manager) Clear(ctx context.Context, sess *Session) error {
	sess.AccessToken = ""
	sess.RefreshToken = ""
	sess.Username = ""
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	m.notify(Change{SessionID: sess.ID, Authenticated: false})
	return nil
}

// Subscribe registers for token change events. The returned cancel func
// must be called to release the subscription.
func (m *Manager) Subscribe() (<-chan Change, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Change, 16)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Manager) notify(c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- c:
		default:
			// Slow subscriber; it will catch up on the next event.
		}
	}
}
