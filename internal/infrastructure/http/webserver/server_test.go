package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/application/additem"
	"github.com/Sachin-dot-py/Grocify/internal/application/auth"
	appinventory "github.com/Sachin-dot-py/Grocify/internal/application/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/application/recipes"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	"github.com/Sachin-dot-py/Grocify/test/testutils"
)

type serverFixture struct {
	backend *testutils.Backend
	cfg     *config.Config
	manager *session.Manager
	server  *WebServer
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	backend := testutils.NewBackend(t)
	cfg := testutils.NewTestConfig(backend.URL())

	log := zap.NewNop()
	store := session.NewMemoryStore(log)
	t.Cleanup(store.Close)
	manager := session.NewManager(store, cfg, log)
	client := api.NewClient(cfg, log)
	control := session.NewController(manager, client, log)

	server, err := NewWebServer(cfg, log, client, manager, control,
		auth.NewService(client, manager, control, log),
		appinventory.NewService(client, control, cfg, log),
		additem.NewService(client, control, log),
		recipes.NewService(client, control, log),
	)
	require.NoError(t, err)

	return &serverFixture{backend: backend, cfg: cfg, manager: manager, server: server}
}

// authenticate creates a session with stored tokens and returns its cookie.
func (f *serverFixture) authenticate(t *testing.T) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	sess, err := f.manager.New(ctx)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetTokens(ctx, sess, "access", "refresh"))
	return &http.Cookie{Name: f.cfg.Session.CookieName, Value: sess.ID}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	t.Run("no stored token redirects without any backend call", func(t *testing.T) {
		f := newServerFixture(t)

		rec := f.do(httptest.NewRequest(http.MethodGet, "/inventory", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?redirect="+url.QueryEscape("/inventory"), rec.Header().Get("Location"))
		assert.Zero(t, f.backend.TotalCalls())
	})

	t.Run("htmx request gets a 401 partial instead of a redirect", func(t *testing.T) {
		f := newServerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/htmx/recipes/generate", nil)
		req.Header.Set("HX-Request", "true")
		rec := f.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "/login")
		assert.Zero(t, f.backend.TotalCalls())
	})

	t.Run("stored token passes the gate without verification", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/inventory", http.StatusOK, []map[string]interface{}{
			{"_id": "1", "item_name": "Milk", "expiry_date": "2999-01-01", "quantity": 1},
		})

		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Milk")
		// The gate itself made no identity call: only the page's own fetch.
		assert.Equal(t, 1, f.backend.TotalCalls())
	})
}

func TestHomeResolvesStoredToken(t *testing.T) {
	t.Run("no token renders the landing page with zero backend calls", func(t *testing.T) {
		f := newServerFixture(t)

		rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Get started")
		assert.Zero(t, f.backend.TotalCalls())
	})

	t.Run("live token goes straight to the inventory", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/user-info", http.StatusOK, map[string]string{"username": "alice"})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/inventory", rec.Header().Get("Location"))
		assert.Equal(t, 1, f.backend.Count("GET /api/user-info"))
	})

	t.Run("failed refresh leaves the visitor signed out", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/user-info", http.StatusUnauthorized, map[string]string{"error": "expired"})
		f.backend.HandleJSON("POST /api/refresh", http.StatusUnauthorized, map[string]string{"error": "expired"})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Get started")
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("successful htmx login redirects via header", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("POST /api/login", http.StatusOK, map[string]string{
			"access_token": "access", "refresh_token": "refresh",
		})
		f.backend.HandleJSON("GET /api/user-info", http.StatusOK, map[string]string{"username": "alice"})

		form := url.Values{"mode": {"login"}, "username": {"alice"}, "password": {"hunter2"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/inventory", rec.Header().Get("HX-Redirect"))
	})

	t.Run("failed login renders the inline error", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("POST /api/login", http.StatusUnauthorized, map[string]string{"error": "bad credentials"})

		form := url.Values{"mode": {"login"}, "username": {"alice"}, "password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := f.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "error")
	})

	t.Run("external redirect targets are dropped", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("POST /api/login", http.StatusOK, map[string]string{
			"access_token": "access", "refresh_token": "refresh",
		})
		f.backend.HandleJSON("GET /api/user-info", http.StatusOK, map[string]string{"username": "alice"})

		form := url.Values{"mode": {"login"}, "username": {"alice"}, "password": {"hunter2"}, "redirect": {"https://evil.example"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := f.do(req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/inventory", rec.Header().Get("Location"))
	})
}

func TestDeletePartial(t *testing.T) {
	// htmx serializes DELETE parameters into the URL query string.
	query := url.Values{
		"name": {"Milk"}, "expiry_date": {"2999-01-01"}, "quantity": {"2"}, "unit": {"l"},
	}.Encode()

	t.Run("success removes the row", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("DELETE /api/inventory/abc", http.StatusOK, nil)

		req := httptest.NewRequest(http.MethodDelete, "/htmx/inventory/abc?"+query, nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, strings.TrimSpace(rec.Body.String()))
	})

	t.Run("exhausted retries restore the row with an error", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("DELETE /api/inventory/abc", http.StatusInternalServerError, nil)

		req := httptest.NewRequest(http.MethodDelete, "/htmx/inventory/abc?"+query, nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, 3, f.backend.Count("DELETE /api/inventory/abc"))
		body := rec.Body.String()
		assert.Contains(t, body, "Milk")
		assert.Contains(t, body, "Could not delete")
	})
}

func TestAdjustQuantityPartial(t *testing.T) {
	form := url.Values{
		"name": {"Milk"}, "expiry_date": {"2999-01-01"}, "quantity": {"0"}, "unit": {"l"},
		"delta": {"-1"},
	}

	t.Run("below zero shows the validation message inline", func(t *testing.T) {
		f := newServerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/htmx/inventory/abc/quantity", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Milk")
		assert.Contains(t, body, "Quantity cannot go below zero")
		assert.Zero(t, f.backend.Count("PUT /api/inventory/abc"))
	})

	t.Run("confirmed quantity replaces the row", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("PUT /api/inventory/abc", http.StatusOK, map[string]interface{}{
			"_id": "abc", "item_name": "Milk", "expiry_date": "2999-01-01", "quantity": 3, "unit": "l",
		})

		up := url.Values{
			"name": {"Milk"}, "expiry_date": {"2999-01-01"}, "quantity": {"2"}, "unit": {"l"},
			"delta": {"1"},
		}
		req := httptest.NewRequest(http.MethodPost, "/htmx/inventory/abc/quantity", strings.NewReader(up.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="quantity" value="3"`)
	})
}

func TestChatPartial(t *testing.T) {
	f := newServerFixture(t)
	f.backend.HandleJSON("POST /api/chat-recipe", http.StatusOK, map[string]string{
		"role": "assistant", "content": "Try basil instead.",
	})
	cookie := f.authenticate(t)

	form := url.Values{"message": {"Can I swap the oregano?"}}
	req := httptest.NewRequest(http.MethodPost, "/htmx/recipes/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Can I swap the oregano?")
	assert.Contains(t, body, "Try basil instead.")
}

func TestRecipePartials(t *testing.T) {
	t.Run("empty inventory renders the redirect affordance", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/inventory", http.StatusOK, []struct{}{})

		req := httptest.NewRequest(http.MethodPost, "/htmx/recipes/generate", nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/add-item")
		assert.Zero(t, f.backend.Count("POST /api/generate-recipe"))
	})

	t.Run("missing ingredients are listed by name", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/inventory", http.StatusOK, []map[string]interface{}{
			{"_id": "1", "item_name": "Tomato", "expiry_date": "2999-01-01", "quantity": 4},
		})
		f.backend.HandleJSON("POST /api/generate-recipe", http.StatusOK, map[string]interface{}{
			"recipe_name": "Caprese Salad",
			"description": "Needs a trip to the store.",
			"ingredients": []map[string]interface{}{{"item_name": "Tomato", "quantity": 2}},
			"missing_ingredients": []map[string]interface{}{
				{"item_name": "Mozzarella", "quantity": 1, "unit": "ball"},
				{"item_name": "Basil", "quantity": 1, "unit": "bunch"},
			},
			"steps": []string{"Slice.", "Layer."},
		})

		req := httptest.NewRequest(http.MethodPost, "/htmx/recipes/generate", nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Missing from your inventory")
		assert.Contains(t, body, "Mozzarella, Basil")
	})

	t.Run("generated recipe renders name and steps", func(t *testing.T) {
		f := newServerFixture(t)
		f.backend.HandleJSON("GET /api/inventory", http.StatusOK, []map[string]interface{}{
			{"_id": "1", "item_name": "Tomato", "expiry_date": "2999-01-01", "quantity": 4},
		})
		f.backend.HandleJSON("POST /api/generate-recipe", http.StatusOK, map[string]interface{}{
			"recipe_name": "Tomato Soup",
			"description": "A simple soup.",
			"ingredients": []map[string]interface{}{{"item_name": "Tomato", "quantity": 4}},
			"steps":       []string{"Chop.", "Simmer."},
		})

		req := httptest.NewRequest(http.MethodPost, "/htmx/recipes/generate", nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(f.authenticate(t))
		rec := f.do(req)

		body := rec.Body.String()
		assert.Contains(t, body, "Tomato Soup")
		assert.Contains(t, body, "Simmer.")
	})
}

func TestSignOutDropsRecipeState(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	sess, err := f.manager.New(ctx)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetTokens(ctx, sess, "access", "refresh"))

	st := f.server.state(sess.ID)
	st.transcript.AppendUser("hello")

	// A sign-out in any other view emits the change event; this view's
	// chat state must go with it.
	require.NoError(t, f.manager.Clear(ctx, sess))

	assert.Eventually(t, func() bool {
		f.server.stateMu.Lock()
		defer f.server.stateMu.Unlock()
		_, ok := f.server.states[sess.ID]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestSecurityHeaders(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestRateLimit(t *testing.T) {
	backend := testutils.NewBackend(t)
	cfg := testutils.NewTestConfig(backend.URL())
	cfg.RateLimit = config.RateLimitConfig{Enable: true, RequestsPerSec: 1, Burst: 2}

	log := zap.NewNop()
	store := session.NewMemoryStore(log)
	t.Cleanup(store.Close)
	manager := session.NewManager(store, cfg, log)
	client := api.NewClient(cfg, log)
	control := session.NewController(manager, client, log)

	server, err := NewWebServer(cfg, log, client, manager, control,
		auth.NewService(client, manager, control, log),
		appinventory.NewService(client, control, cfg, log),
		additem.NewService(client, control, log),
		recipes.NewService(client, control, log),
	)
	require.NoError(t, err)

	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)
	f.backend.HandleJSON("GET /api/inventory", http.StatusUnauthorized, nil)

	t.Run("liveness is always up", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health reports the backend check", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "backend_api")
	})

	t.Run("metrics endpoint serves the registry", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
