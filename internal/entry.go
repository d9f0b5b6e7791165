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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dagster-io/skills/internal/api"
	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/graph"
	"github.com/dagster-io/skills/internal/mcpserver"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/skillservice"
	"github.com/dagster-io/skills/internal/sse"
	"github.com/dagster-io/skills/internal/watch"
)

var errConfigRequired = errors.New("config is required")

// NewLogger returns the JSON logger used by every mode.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// LoadSkills resolves the skills to operate on. Explicit roots win; otherwise
// the configured roots are opened and the configured directory is scanned.
func LoadSkills(cfg *Config, roots []string) ([]skill.Skill, error) {
	layout := cfg.Layout.Layout
	if len(roots) == 0 {
		roots = cfg.Skills.Roots
	}

	var out []skill.Skill
	seen := make(map[string]string)
	add := func(s skill.Skill) error {
		if prev, ok := seen[s.Name]; ok && prev != s.Root {
			return fmt.Errorf("skills: duplicate skill name %q (%s and %s)", s.Name, prev, s.Root)
		}
		if _, ok := seen[s.Name]; !ok {
			seen[s.Name] = s.Root
			out = append(out, s)
		}
		return nil
	}

	for _, r := range roots {
		s, err := skill.Open(r, layout)
		if err != nil {
			return nil, err
		}
		if err := add(s); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 && cfg.Skills.Dir != "" {
		found, err := skill.Discover(cfg.Skills.Dir, layout)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			if err := add(s); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("skills: no skill roots given and none found under %q: %w", cfg.Skills.Dir, apperr.ErrNotFound)
	}
	return out, nil
}

// NewService builds the skill service. When withGraph is set and the graph is
// enabled, the SQLite link graph is opened; the returned close function
// releases it.
func NewService(cfg *Config, skills []skill.Skill, withGraph bool, logger *slog.Logger) (*skillservice.Service, func(), error) {
	var store graph.Store
	closeFn := func() {}
	if withGraph && cfg.SQLite.Enabled() {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := graph.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init graph: %w", err)
		}
		store = db
		closeFn = func() { _ = db.Close() }
	}
	svc := skillservice.New(skills, store, skillservice.Options{
		IgnoreFencedCode: cfg.Links.IgnoreFencedCode,
		Ignore:           cfg.Reach.Ignore,
		Logger:           logger,
	})
	return svc, closeFn, nil
}

func roots(skills []skill.Skill) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = s.Root
	}
	return out
}

// Run starts the HTTP API, the SSE broker and the file watcher over every
// configured skill until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stdout, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("skills_dir", cfg.Skills.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	skills, err := LoadSkills(cfg, app.roots)
	if err != nil {
		return err
	}
	svc, closeGraph, err := NewService(cfg, skills, true, logger)
	if err != nil {
		return err
	}
	defer closeGraph()

	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	svc.SetPublisher(broker)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("skills", len(skills)))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Watch(gCtx, roots(skills), cfg.Watch.Debounce, logger, svc.HandleChanges)
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

		logger.Info("Shutting down server...")

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

// RunWatch regenerates every skill once, then again whenever one of its
// files changes, until ctx is cancelled or a signal arrives.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.App.LogLevel)
	}

	skills, err := LoadSkills(cfg, app.roots)
	if err != nil {
		return err
	}
	svc, closeGraph, err := NewService(cfg, skills, false, logger)
	if err != nil {
		return err
	}
	defer closeGraph()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.HandleChanges(roots(skills))
	logger.Info("Watching skills", slog.Int("skills", len(skills)))
	return watch.Watch(ctx, roots(skills), cfg.Watch.Debounce, logger, svc.HandleChanges)
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.App.LogLevel)
	}

	skills, err := LoadSkills(cfg, app.roots)
	if err != nil {
		return err
	}
	svc, closeGraph, err := NewService(cfg, skills, true, logger)
	if err != nil {
		return err
	}
	defer closeGraph()

	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(svc, app.version).ServeStdio()
}
