// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/deepdish/internal/api"
	"github.com/starford/deepdish/internal/mcpserver"
	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/repository"
	"github.com/starford/deepdish/internal/repository/memory"
	"github.com/starford/deepdish/internal/repository/sqldb"
	pkgconfig "github.com/starford/deepdish/pkg/config"
)

// backends holds the repositories and notifier chosen by configuration.
type backends struct {
	ingredients repository.IngredientRepository
	recipes     repository.RecipeRepository
	notifier    notify.MessageService
	publisher   *notify.RedisPublisher
	ready       func(context.Context) error
	closers     []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Error("close backend", slog.String("error", err.Error()))
		}
	}
}

// openBackends builds the repositories and notifier once from cfg.
func openBackends(ctx context.Context, cfg *Config) (*backends, error) {
	b := &backends{ready: func(context.Context) error { return nil }}

	switch cfg.Database.Driver {
	case DatabaseMemory:
		ingredients := memory.NewIngredientStore()
		b.ingredients = ingredients
		b.recipes = memory.NewRecipeStore(ingredients)
	case DatabaseSQLite, DatabasePostgres:
		db, err := sqldb.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		b.ingredients = db.Ingredients()
		b.recipes = db.Recipes()
		b.ready = db.Ping
		b.closers = append(b.closers, db.Close)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	switch cfg.Messaging.Driver {
	case MessagingStub:
		b.notifier = notify.Stub{}
	case MessagingRedis:
		pub, err := notify.NewRedisPublisher(ctx, cfg.Messaging.Redis.publisherConfig())
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect message broker: %w", err)
		}
		b.notifier = pub
		b.publisher = pub
		b.closers = append(b.closers, pub.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unsupported messaging driver %q", cfg.Messaging.Driver)
	}

	return b, nil
}

// newRootRouter mounts the API under /api next to the health endpoints.
func newRootRouter(b *backends) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := b.ready(req.Context()); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(b.ingredients, b.recipes, b.notifier))
	return r
}

// setup applies opts and installs the JSON logger as the slog default.
func setup(opts []Option) (*application, *slog.Logger, *slog.LevelVar, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, nil, fmt.Errorf("config is required")
	}

	level := new(slog.LevelVar)
	level.Set(app.config.App.LogLevel)

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return app, logger, level, nil
}

// startWorkers runs the event publisher and the config watcher in g.
func startWorkers(ctx context.Context, g *errgroup.Group, app *application, b *backends, logger *slog.Logger, level *slog.LevelVar) {
	if b.publisher != nil {
		g.Go(func() error {
			logger.Info("Starting event publisher")
			return b.publisher.Run(ctx)
		})
	}

	if app.configPath != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(ctx, app.configPath, NewDefaultConfig, logger, func(cfg *Config) {
				if old := level.Level(); old != cfg.App.LogLevel {
					level.Set(cfg.App.LogLevel)
					logger.Info("Log level changed",
						slog.String("from", old.String()),
						slog.String("to", cfg.App.LogLevel.String()))
				}
			})
			if err != nil {
				// Hot reload is optional; the server keeps running.
				logger.Warn("Config watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, level, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("messaging_driver", cfg.Messaging.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRootRouter(b),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	startWorkers(gCtx, g, app, b, logger, level)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context so background workers stop once
// the HTTP server has shut down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio. Logs go to stderr unless another
// output was given, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, level, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	g, gCtx := errgroup.WithContext(ctx)
	startWorkers(gCtx, g, app, b, logger, level)

	g.Go(func() error {
		logger.Info("Starting MCP server on stdio",
			slog.String("database_driver", cfg.Database.Driver))
		if err := mcpserver.New(b.ingredients, b.recipes, b.notifier).ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
