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

	"github.com/starford/bucketpress/internal/api"
	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/docservice"
	"github.com/starford/bucketpress/internal/mcpserver"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/sse"
	"github.com/starford/bucketpress/internal/vdir"
	"github.com/starford/bucketpress/internal/watch"
)

// app holds the wired components shared by every command.
type app struct {
	cfg         *Config
	logger      *slog.Logger
	local       *objstore.FS
	broker      *sse.Broker
	catalog     *catalog.DB
	coordinator *publish.Coordinator
	service     *docservice.Service
}

// newApp opens the store and the catalog and wires the services. Change and
// publish events go to the SSE broker.
func newApp(opts ...Option) (*app, error) {
	o := &application{}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := o.config

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, local, err := openStore(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)

	engine := vdir.New(store,
		vdir.WithLogger(logger),
		vdir.WithChangeFunc(broker.PublishChange),
	)

	coordinator := publish.NewCoordinator(
		publish.NewWebhook(cfg.Publish.URL, cfg.Publish.Token, nil),
		publish.WithCooldown(cfg.Publish.Cooldown),
		publish.WithMinDuration(cfg.Publish.MinDuration),
		publish.WithLogger(logger),
		publish.WithObserver(func(s publish.Snapshot) { broker.PublishState(s) }),
	)

	return &app{
		cfg:         cfg,
		logger:      logger,
		local:       local,
		broker:      broker,
		catalog:     db,
		coordinator: coordinator,
		service:     docservice.New(engine, db, coordinator, logger),
	}, nil
}

func (a *app) close() {
	a.coordinator.Close()
	a.broker.Close()
	if err := a.catalog.Close(); err != nil {
		a.logger.Warn("close catalog failed", slog.String("error", err.Error()))
	}
}

// openStore builds the configured object store. The fs store is also
// returned on its own so that its directory can be watched.
func openStore(cfg *StoreConfig) (objstore.Store, *objstore.FS, error) {
	switch cfg.Driver {
	case DriverMemory:
		return objstore.NewMemory(cfg.PublicBaseURL), nil, nil
	case DriverFS:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create bucket dir: %w", err)
		}
		fs, err := objstore.NewFS(cfg.Path, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	case DriverSupabase:
		return objstore.NewSupabase(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket, nil), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// handler builds the HTTP surface: health checks, the JSON API, the storage
// proxy and the HTML pages behind basic auth.
func (a *app) handler() http.Handler {
	cfg := a.cfg
	apiRouter := api.NewRouter(a.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, a.broker)
	pages := api.NewPages(a.service)
	storage := api.NewStorageHandler(a.service.Engine())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.BasicAuth(cfg.Auth.Basic.Username, cfg.Auth.Basic.Password))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	r.Get("/storage/v1/object/public/*", storage.ServeFile)
	r.Get("/", pages.Browser)
	r.Get("/view/*", pages.Document)

	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	a, err := newApp(opts...)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	// Run initial sync.
	if err := a.service.Reindex(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	httpServer := &http.Server{
		Addr:              a.cfg.App.HTTP.Address(),
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", a.cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Follow external edits when the bucket is a local directory.
	if a.local != nil {
		w := watch.New(a.local, a.service.Engine(), a.catalog, logger, a.broker.PublishChange)
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", a.cfg.App.HTTP.Address()))
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

// errShutdown cancels the group once the server has been asked to stop.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Pass WithLogger with a stderr
// handler; stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	a, err := newApp(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.service.Reindex(ctx); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(a.service).ServeStdio()
}

// List returns the listing of path.
func List(ctx context.Context, path string, opts ...Option) (vdir.Listing, error) {
	a, err := newApp(opts...)
	if err != nil {
		return vdir.Listing{}, err
	}
	defer a.close()
	return a.service.List(ctx, path)
}

// Publish requests one publish and reports its outcome.
func Publish(ctx context.Context, opts ...Option) (publish.Result, error) {
	a, err := newApp(opts...)
	if err != nil {
		return publish.Result{}, err
	}
	defer a.close()
	return a.service.Publish(ctx)
}
