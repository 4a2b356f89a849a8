// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/blitlinks/internal/api"
	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/mcpserver"
	"github.com/starford/blitlinks/internal/metrics"
	"github.com/starford/blitlinks/internal/sse"
	"github.com/starford/blitlinks/internal/store"
)

// NewLogger returns the structured JSON logger used by every entrypoint.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Engine is an open store together with the service on top of it.
type Engine struct {
	DB      *store.DB
	Service *linkservice.Service
}

// OpenEngine opens the configured database, brings the index up to date and
// returns a ready service. Callers must Close the engine.
func OpenEngine(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...linkservice.Option) (*Engine, error) {
	db, err := store.Open(cfg.Store.Path())
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	opts = append([]linkservice.Option{linkservice.WithLogger(logger)}, opts...)
	svc := linkservice.New(db, opts...)
	if err := svc.Sync(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initial sync: %w", err)
	}
	return &Engine{DB: db, Service: svc}, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.DB.Close()
}

func (a *application) logger() *slog.Logger {
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}
	return NewLogger(out, a.config.App.LogLevel)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// NewHTTPHandler assembles the full HTTP surface: health checks, the REST API
// with its event stream under /api, and Prometheus metrics.
func NewHTTPHandler(eng *Engine, broker *sse.Broker, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if _, err := eng.DB.DataVersion(req.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		writeOK(w)
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(eng.Service, events))

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	return r
}

// Run starts the HTTP server and, when enabled, the external-write watcher.
// It returns after SIGINT/SIGTERM or when ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path()),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()
	m := metrics.New()

	eng, err := OpenEngine(ctx, cfg, logger,
		linkservice.WithMetrics(m),
		linkservice.WithChangeHook(broker.PublishLinkEvent),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(eng, broker, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := store.Watch(gCtx, eng.DB, logger, eng.Service.Rebuilt); err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Unblock the watcher after a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs go to the configured writer, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}
	logger := app.logger()
	slog.SetDefault(logger)

	eng, err := OpenEngine(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Info("MCP server starting", slog.String("store_path", app.config.Store.Path()))
	return mcpserver.New(eng.Service, app.version).ServeStdio()
}
