// Package main is the entrypoint for the explainer API server.
package main

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

	"github.com/kiranshivaraju/explainer/internal/ai"
	"github.com/kiranshivaraju/explainer/internal/analysis"
	"github.com/kiranshivaraju/explainer/internal/api"
	"github.com/kiranshivaraju/explainer/internal/api/handler"
	mw "github.com/kiranshivaraju/explainer/internal/api/middleware"
	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/internal/jobs"
	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	shutdownTimeout = 30 * time.Second
	resumeTimeout   = 30 * time.Second
	healthTimeout   = 5 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Job snapshot store: Postgres when configured, memory otherwise
	snapshots, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Cache: Redis when configured, memory otherwise
	appCache, err := openCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer appCache.Close()

	// 4. Render service and job lifecycle
	renderClient := render.NewHTTPClient(cfg.Render.BaseURL, cfg.Render.RequestTimeout)

	serviceCtx, cancelService := context.WithCancel(context.Background())
	defer cancelService()

	jobStore := jobs.NewStore(renderClient, snapshots, appCache)
	tracker := jobs.NewTracker(renderClient,
		jobs.WithPollInterval(cfg.Render.PollInterval),
		jobs.WithRequestTimeout(cfg.Render.RequestTimeout),
		jobs.WithStatusCache(appCache),
		jobs.WithUpdateHook(func(j models.Job) {
			if err := jobStore.Record(serviceCtx, j); err != nil {
				slog.Warn("recording job update failed", "job_id", j.ID, "error", err)
			}
		}),
	)
	manager := jobs.NewManager(serviceCtx, jobs.NewSubmitter(renderClient), tracker, jobStore)

	resumeCtx, cancelResume := context.WithTimeout(ctx, resumeTimeout)
	if err := manager.Resume(resumeCtx); err != nil {
		slog.Warn("job tracking not resumed", "error", err)
	}
	cancelResume()

	// 5. AI provider and analysis pipeline
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	pipeline := analysis.NewPipeline(aiProvider,
		analysis.WithStrictAttempts(cfg.Analysis.StrictAttempts),
		analysis.WithInferenceTimeout(cfg.AI.InferenceTimeout),
		analysis.WithMaxDocumentChars(cfg.Analysis.MaxDocumentChars),
		analysis.WithCache(appCache, cfg.Analysis.CacheTTL),
	)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		RateLimit:      mw.NewRateLimit(appCache, cfg.Server.RateLimitPerMinute),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,

		HealthHandler:       healthHandler(healthChecks(snapshots, appCache, renderClient, aiProvider)),
		AnalyzeHandler:      handler.NewAnalyzeHandler(pipeline, handler.DefaultMaxUploadBytes),
		SubmitVideo:         handler.NewSubmitVideoHandler(manager, handler.DefaultMaxUploadBytes),
		ListVideos:          handler.NewListVideosHandler(manager),
		GetVideo:            handler.NewGetVideoHandler(manager),
		DeleteVideo:         handler.NewDeleteVideoHandler(manager),
		DownloadVideo:       handler.NewDownloadVideoHandler(manager),
		VideoEvents:         handler.NewVideoEventsHandler(manager),
		ExtractRepositories: handler.NewRepositoriesHandler(renderClient, handler.DefaultMaxUploadBytes),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop polling first so no watch outlives the server.
	cancelService()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		slog.Warn("job tracker shutdown incomplete", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, func(), error) {
	if cfg.URL == "" {
		slog.Info("DATABASE_URL not set, using in-memory job store")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.URL); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return store.NewPostgresStore(pool), pool.Close, nil
}

func openCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, error) {
	if cfg.URL == "" {
		slog.Info("REDIS_URL not set, using in-memory cache")
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

// healthCheck is one dependency probed by the health endpoint.
type healthCheck struct {
	name string
	ping func(context.Context) error
}

func healthChecks(s store.Store, c cache.Cache, r render.Client, p models.AIProvider) []healthCheck {
	checks := []healthCheck{
		{name: "database", ping: s.Ping},
		{name: "cache", ping: c.Ping},
		{name: "render_service", ping: r.Ping},
	}
	if pinger, ok := p.(ai.Pinger); ok {
		checks = append(checks, healthCheck{name: "ai_provider", ping: pinger.Ping})
	}
	return checks
}

// healthHandler probes every dependency concurrently.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		type result struct {
			name string
			err  error
		}
		results := make(chan result, len(checks))
		for _, c := range checks {
			go func() {
				results <- result{name: c.name, err: c.ping(ctx)}
			}()
		}

		status := make(map[string]string, len(checks))
		degraded := false
		for range checks {
			res := <-results
			if res.err != nil {
				slog.Warn("health check failed", "service", res.name, "error", res.err)
				status[res.name] = "degraded"
				degraded = true
				continue
			}
			status[res.name] = "ok"
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", status)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": status,
		})
	}
}
