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

	"github.com/starford/pathgraph/internal/api"
	"github.com/starford/pathgraph/internal/buildservice"
	"github.com/starford/pathgraph/internal/classify"
	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/mcpserver"
	"github.com/starford/pathgraph/internal/pipeline"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/sse"
	"github.com/starford/pathgraph/internal/storage"
	"github.com/starford/pathgraph/internal/vocab"
	"github.com/starford/pathgraph/internal/watch"
)

// runtime is what every mode needs: a logger, an open store and the build service.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	vocab  *vocab.Vocabulary
	store  graphstore.Store
	builds *buildservice.Service

	closeStore bool
}

func newApplication(opts ...Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func setup(ctx context.Context, app *application, notifier buildservice.Notifier) (*runtime, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source", cfg.Source.Path),
		slog.String("format", cfg.Source.Format),
		slog.String("store", cfg.Store.Driver),
		slog.Int("node_concurrency", cfg.Writer.NodeConcurrency),
		slog.String("log_level", cfg.App.LogLevel.String()))

	v, err := vocab.Load(cfg.Vocabulary.Path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	src, err := source.Open(cfg.Source.Path, cfg.Source.Format)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, vocab: v, store: app.store}
	if rt.store == nil {
		rt.store, err = openStore(ctx, &cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		rt.closeStore = true
	}

	var buildOpts []buildservice.Option
	if cfg.Reports.Dir != "" {
		archive, err := storage.NewFS(cfg.Reports.Dir)
		if err != nil {
			rt.closeStoreIfOwned()
			return nil, fmt.Errorf("init report archive: %w", err)
		}
		buildOpts = append(buildOpts, buildservice.WithArchive(archive, cfg.Reports.Keep))
	}

	classifier := classify.New(v)
	rt.builds = buildservice.New(src, func(progress func(pipeline.Progress)) *pipeline.Pipeline {
		return pipeline.New(rt.store, classifier,
			pipeline.WithLogger(logger),
			pipeline.WithWriterConfig(cfg.Writer.Writer()),
			pipeline.WithProgress(progress))
	}, notifier, logger, buildOpts...)
	return rt, nil
}

func (rt *runtime) close() {
	rt.builds.Close()
	rt.closeStoreIfOwned()
}

func (rt *runtime) closeStoreIfOwned() {
	if !rt.closeStore {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.store.Close(ctx); err != nil {
		rt.logger.Warn("store close failed", slog.String("error", err.Error()))
	}
}

func openStore(ctx context.Context, cfg *StoreConfig) (graphstore.Store, error) {
	switch cfg.Driver {
	case StoreDriverNeo4j:
		return graphstore.OpenNeo4j(ctx, cfg.Neo4j.Driver())
	case StoreDriverSQLite:
		return graphstore.OpenSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Build runs a single build and returns its report. Per-record and per-write
// failures are counted in the report; only an unusable source or store, or
// cancellation, make Build fail.
func Build(ctx context.Context, opts ...Option) (*pipeline.Report, error) {
	app, err := newApplication(opts...)
	if err != nil {
		return nil, err
	}
	rt, err := setup(ctx, app, nil)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := rt.builds.Build(ctx, "cli")
	if err != nil {
		return rep, fmt.Errorf("build: %w", err)
	}
	return rep, nil
}

// Serve runs an initial build, then rebuilds whenever the input file changes
// while serving the status API and event stream.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	broker := sse.NewBroker(app.config.Watch.ProgressThrottle)
	defer broker.Close()

	rt, err := setup(ctx, app, broker)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !rt.builds.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(rt.builds, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := rt.builds.Build(gCtx, "startup"); err != nil {
			logger.Error("initial build failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		return watch.Watch(gCtx, cfg.Source.Path, cfg.Watch.Debounce, logger, func(ctx context.Context) error {
			_, err := rt.builds.Build(ctx, "watch")
			return err
		})
	})

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
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	rt, err := setup(ctx, app, nil)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.vocab, rt.builds, rt.store).ServeStdio()
}
