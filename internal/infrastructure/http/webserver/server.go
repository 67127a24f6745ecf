// Package webserver provides the Grocify web frontend HTTP server. Pages
// are server-rendered templates with HTMX partial updates; every backend
// interaction goes through the gateway client under the session
// controller's token lifecycle.
package webserver

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/application/additem"
	"github.com/Sachin-dot-py/Grocify/internal/application/auth"
	appinventory "github.com/Sachin-dot-py/Grocify/internal/application/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/application/recipes"
	"github.com/Sachin-dot-py/Grocify/internal/domain/recipe"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	"github.com/Sachin-dot-py/Grocify/pkg/healthcheck"
)

//go:embed templates/*
var templatesFS embed.FS

// pageState is the per-session transient state of the recipes page: the
// last generated recipe and the chat transcript. It is never persisted.
type pageState struct {
	recipe     *recipe.Recipe
	transcript *recipe.Transcript
}

// WebServer represents the web frontend HTTP server.
type WebServer struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	router   *chi.Mux
	sessions *session.Manager
	control  *session.Controller

	authSvc      *auth.Service
	inventorySvc *appinventory.Service
	addItemSvc   *additem.Service
	recipesSvc   *recipes.Service

	templates   *template.Template
	healthCheck *healthcheck.HealthCheck
	metrics     *metrics
	limiters    *rateLimiters

	unsubscribe func()

	stateMu sync.Mutex
	states  map[string]*pageState
}

// NewWebServer creates a new web frontend server instance.
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	apiClient *api.Client,
	sessions *session.Manager,
	control *session.Controller,
	authSvc *auth.Service,
	inventorySvc *appinventory.Service,
	addItemSvc *additem.Service,
	recipesSvc *recipes.Service,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	hc := healthcheck.New(cfg.App.Version, log)
	hc.Register("backend_api", healthcheck.CheckerFunc(func(ctx context.Context) healthcheck.Check {
		start := time.Now()
		check := healthcheck.Check{Status: healthcheck.StatusHealthy, LastChecked: start}
		if !apiClient.VerifyConnection(ctx) {
			check.Status = healthcheck.StatusUnhealthy
			check.Message = "backend API not reachable"
		}
		check.Duration = time.Since(start)
		return check
	}))

	s := &WebServer{
		config:       cfg,
		logger:       log,
		sessions:     sessions,
		control:      control,
		authSvc:      authSvc,
		inventorySvc: inventorySvc,
		addItemSvc:   addItemSvc,
		recipesSvc:   recipesSvc,
		templates:    templates,
		healthCheck:  hc,
		metrics:      newMetrics(),
		limiters:     newRateLimiters(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.Burst),
		states:       make(map[string]*pageState),
	}

	// Token change events stand in for browser storage events: when a
	// session signs out from any view, its recipes page state goes with it.
	changes, unsubscribe := sessions.Subscribe()
	s.unsubscribe = unsubscribe
	go func() {
		for change := range changes {
			if !change.Authenticated {
				s.resetState(change.SessionID)
			}
		}
	}()

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// setupRoutes configures the web frontend routes.
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(s.securityHeadersMiddleware)
	if s.config.RateLimit.Enable {
		r.Use(s.rateLimitMiddleware)
	}
	r.Use(s.sessionMiddleware)

	// Ops endpoints
	r.Get("/health", s.healthCheck.Handler())
	r.Get("/ready", s.healthCheck.ReadinessHandler())
	r.Get("/live", s.healthCheck.LivenessHandler())
	r.Handle("/metrics", s.metrics.Handler())

	// Public pages
	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	// Protected pages: no stored token means an immediate redirect, no
	// backend call.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/inventory", s.handleInventoryPage)
		r.Get("/add-item", s.handleAddItemPage)
		r.Get("/recipes", s.handleRecipesPage)
		r.Get("/profile", s.handleProfilePage)
		r.Post("/profile", s.handleProfileUpdate)
	})

	// HTMX partials, all gated
	r.Route("/htmx", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Delete("/inventory/{id}", s.handleHTMXDeleteItem)
		r.Post("/inventory/{id}/quantity", s.handleHTMXAdjustQuantity)

		r.Post("/capture/barcode", s.handleHTMXCaptureBarcode)
		r.Post("/capture/image", s.handleHTMXCaptureImage)
		r.Post("/add-item", s.handleHTMXAddItem)

		r.Post("/recipes/generate", s.handleHTMXGenerateRecipe)
		r.Post("/recipes/custom", s.handleHTMXCustomRecipe)
		r.Post("/recipes/chat", s.handleHTMXChat)
	})

	return r
}

// Start starts the web frontend HTTP server.
func (s *WebServer) Start() error {
	s.logger.Info("Starting web frontend server",
		zap.String("address", s.server.Addr),
		zap.String("api_base_url", s.config.API.BaseURL),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web server.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web frontend server")
	s.unsubscribe()
	return s.server.Shutdown(ctx)
}

// state returns the recipes page state for a session, creating it on first
// use. The transcript is scoped to one Recipes page session.
func (s *WebServer) state(sessionID string) *pageState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		st = &pageState{transcript: recipe.NewTranscript()}
		s.states[sessionID] = st
	}
	return st
}

// resetState drops the recipes page state, e.g. on logout.
func (s *WebServer) resetState(sessionID string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	delete(s.states, sessionID)
}

// parseTemplates parses all HTML templates from the embedded filesystem.
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDate": func(date string) string {
			t, err := time.Parse("2006-01-02", date)
			if err != nil {
				return date
			}
			return t.Format("Jan 2, 2006")
		},
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimPrefix(path, "templates/")
		name = strings.TrimSuffix(name, ".html")

		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk templates: %w", err)
	}

	return tmpl, nil
}

// renderTemplate executes a named template. Map data gets the default
// Title filled in; view structs pass through untouched.
func (s *WebServer) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch m := data.(type) {
	case nil:
		data = map[string]interface{}{"Title": s.config.App.Name}
	case map[string]interface{}:
		if m["Title"] == nil {
			m["Title"] = s.config.App.Name
		}
	}

	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
