package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
	"github.com/Sachin-dot-py/Grocify/test/testutils"
)

type controllerFixture struct {
	backend    *testutils.Backend
	manager    *Manager
	store      *MemoryStore
	controller *Controller
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	backend := testutils.NewBackend(t)
	store := NewMemoryStore(zap.NewNop())
	t.Cleanup(store.Close)

	cfg := testutils.NewTestConfig(backend.URL())
	manager := NewManager(store, cfg, zap.NewNop())
	client := api.NewClient(cfg, zap.NewNop())
	return &controllerFixture{
		backend:    backend,
		manager:    manager,
		store:      store,
		controller: NewController(manager, client, zap.NewNop()),
	}
}

func (f *controllerFixture) authenticatedSession(t *testing.T, access, refresh string) *Session {
	t.Helper()
	ctx := context.Background()
	sess, err := f.manager.New(ctx)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetTokens(ctx, sess, access, refresh))
	return sess
}

func TestControllerResolve(t *testing.T) {
	t.Run("no stored token resolves without any backend call", func(t *testing.T) {
		f := newControllerFixture(t)
		sess, err := f.manager.New(context.Background())
		require.NoError(t, err)

		state, err := f.controller.Resolve(context.Background(), sess)

		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, state)
		assert.Zero(t, f.backend.TotalCalls())
	})

	t.Run("valid token promotes to authenticated", func(t *testing.T) {
		f := newControllerFixture(t)
		f.backend.HandleJSON("GET /api/user-info", http.StatusOK, map[string]string{"username": "alice"})
		sess := f.authenticatedSession(t, "access", "refresh")

		state, err := f.controller.Resolve(context.Background(), sess)

		require.NoError(t, err)
		assert.Equal(t, Authenticated, state)
		assert.Equal(t, "alice", sess.Username)
		assert.Equal(t, Authenticated, f.controller.State(sess))
	})

	t.Run("expired token refreshes once and retries", func(t *testing.T) {
		f := newControllerFixture(t)
		f.backend.Handle("GET /api/user-info", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"username":"alice"}`))
		})
		f.backend.HandleJSON("POST /api/refresh", http.StatusOK, map[string]string{"access_token": "fresh"})
		sess := f.authenticatedSession(t, "stale", "refresh")

		state, err := f.controller.Resolve(context.Background(), sess)

		require.NoError(t, err)
		assert.Equal(t, Authenticated, state)
		assert.Equal(t, 1, f.backend.Count("POST /api/refresh"))
		assert.Equal(t, 2, f.backend.Count("GET /api/user-info"))

		// The refreshed token was persisted, not just held in memory.
		stored, err := f.store.Get(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "fresh", stored.AccessToken)
		assert.Equal(t, "refresh", stored.RefreshToken)
	})

	t.Run("failed refresh forces logout", func(t *testing.T) {
		f := newControllerFixture(t)
		f.backend.HandleJSON("GET /api/user-info", http.StatusUnauthorized, nil)
		f.backend.HandleJSON("POST /api/refresh", http.StatusUnauthorized, nil)
		sess := f.authenticatedSession(t, "stale", "revoked")

		state, err := f.controller.Resolve(context.Background(), sess)

		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, state)

		stored, getErr := f.store.Get(context.Background(), sess.ID)
		require.NoError(t, getErr)
		assert.Empty(t, stored.AccessToken)
		assert.Empty(t, stored.RefreshToken)
	})

	t.Run("missing refresh token forces logout without refresh call", func(t *testing.T) {
		f := newControllerFixture(t)
		f.backend.HandleJSON("GET /api/user-info", http.StatusUnauthorized, nil)
		sess := f.authenticatedSession(t, "stale", "")

		state, err := f.controller.Resolve(context.Background(), sess)

		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, state)
		assert.Zero(t, f.backend.Count("POST /api/refresh"))
	})

	t.Run("unreachable backend keeps the token", func(t *testing.T) {
		f := newControllerFixture(t)
		sess := f.authenticatedSession(t, "access", "refresh")
		f.backend.Server.Close()

		_, err := f.controller.Resolve(context.Background(), sess)

		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeNetworkError))
		assert.Equal(t, "access", sess.AccessToken)
	})
}

func TestControllerConcurrentRefresh(t *testing.T) {
	f := newControllerFixture(t)
	f.backend.HandleJSON("POST /api/refresh", http.StatusOK, map[string]string{"access_token": "fresh"})
	sess := f.authenticatedSession(t, "stale", "refresh")

	// Two requests hold their own copy of the session. After the first one
	// refreshes, the second must reuse the stored token instead of
	// refreshing again.
	staleCopy := *sess

	token, err := f.controller.Credentials(sess).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	token, err = f.controller.Credentials(&staleCopy).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	assert.Equal(t, 1, f.backend.Count("POST /api/refresh"))
}

func TestControllerState(t *testing.T) {
	f := newControllerFixture(t)

	sess, err := f.manager.New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, f.controller.State(sess))

	require.NoError(t, f.manager.SetTokens(context.Background(), sess, "access", "refresh"))
	assert.Equal(t, Authenticated, f.controller.State(sess))

	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "refreshing", Refreshing.String())
}
