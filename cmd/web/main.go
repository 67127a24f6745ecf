// Package main provides the entry point for the Grocify web frontend.
// The service renders HTMX templates and talks to the Grocify API backend
// for everything else.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/application/additem"
	"github.com/Sachin-dot-py/Grocify/internal/application/auth"
	"github.com/Sachin-dot-py/Grocify/internal/application/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/application/recipes"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/http/webserver"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	"github.com/Sachin-dot-py/Grocify/pkg/logger"
)

func main() {
	app := fx.New(
		fx.NopLogger,

		fx.Provide(func() (*config.Config, error) {
			return config.Load("")
		}),

		fx.Provide(func(cfg *config.Config) (*zap.Logger, error) {
			return logger.New(logger.Config{
				Level:       cfg.App.LogLevel,
				Format:      cfg.App.LogFormat,
				Development: cfg.App.Debug,
			})
		}),

		fx.Provide(api.NewClient),
		fx.Provide(newSessionStore),
		fx.Provide(session.NewManager),
		fx.Provide(session.NewController),

		fx.Provide(auth.NewService),
		fx.Provide(inventory.NewService),
		fx.Provide(additem.NewService),
		fx.Provide(recipes.NewService),

		fx.Provide(webserver.NewWebServer),

		fx.Invoke(registerLifecycleHooks),
	)

	app.Run()
}

// newSessionStore picks the session backend from configuration. Redis keeps
// sessions across restarts and instances; memory is the single-node
// default.
func newSessionStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		store, err := session.NewRedisStore(context.Background(), cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	default:
		store := session.NewMemoryStore(log)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				store.Close()
				return nil
			},
		})
		return store, nil
	}
}

func registerLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting Grocify web frontend",
				zap.Int("port", cfg.Server.Port),
				zap.String("environment", cfg.App.Environment),
				zap.String("api_base_url", cfg.API.BaseURL),
				zap.String("session_backend", cfg.Session.Backend),
			)

			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("Web server failed to start", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
