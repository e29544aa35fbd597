// @title           scriptmatch API
// @version         1.0
// @description     Scores photographed handwriting against script fonts and tracks practice progress.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/scriptmatch/internal/analysis"
	"github.com/ZanzyTHEbar/scriptmatch/internal/auth"
	"github.com/ZanzyTHEbar/scriptmatch/internal/cache"
	"github.com/ZanzyTHEbar/scriptmatch/internal/config"
	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
	"github.com/ZanzyTHEbar/scriptmatch/internal/handlers"
	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
	"github.com/ZanzyTHEbar/scriptmatch/internal/ratelimit"
	"github.com/ZanzyTHEbar/scriptmatch/internal/resilience"
	"github.com/ZanzyTHEbar/scriptmatch/internal/security"
	"github.com/ZanzyTHEbar/scriptmatch/internal/storage"
)

// memoryWarnHeap is the heap size above which the memory monitor warns
const memoryWarnHeap = 512 << 20

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	repo, err := buildRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := database.Seed(ctx, repo, database.DefaultUser{
		ID:       cfg.DefaultUserID,
		Username: cfg.DefaultUsername,
		Password: cfg.DefaultPassword,
	}); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	images, uploadsDir, err := buildImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	analyzer := analysis.NewAnalyzer(repo, buildScorer(cfg), images, analysis.Options{
		MaxImageBytes:  cfg.MaxImageBytes,
		MaxImageEdge:   cfg.MaxImageEdge,
		MaxImagePixels: cfg.MaxImagePixels,
		ScorerTimeout:  cfg.ScorerTimeout,
		DefaultUserID:  cfg.DefaultUserID,
	})
	users := database.NewUserService(repo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL))

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLogger(cfg.SlogLevel())
	memory := monitoring.NewMemoryMonitor(30*time.Second, memoryWarnHeap, logger)
	memory.Start()
	defer memory.Stop()

	// Redis is optional; the limiter keeps working from memory without it
	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		redisClient = nil
	}
	var redisHealth handlers.HealthChecker
	if redisClient != nil {
		defer redisClient.Close()
		redisHealth = redisClient
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.AnalyzePerMin = cfg.AnalyzeLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limiterCfg, metrics)
	defer limiter.Close()

	fontCache := cache.NewCache(cfg.FontsCacheTTL)
	defer fontCache.Stop()

	h := handlers.New(handlers.Deps{
		Repo:          repo,
		Analyzer:      analyzer,
		Progress:      analysis.NewProgress(repo),
		Users:         users,
		Metrics:       metrics,
		Logger:        logger,
		ScorerName:    cfg.Scorer,
		MaxImageBytes: cfg.MaxImageBytes,
		Redis:         redisHealth,
	})

	r := handlers.NewRouter(handlers.RouterConfig{
		Handler:   h,
		Limiter:   limiter,
		FontCache: fontCache,
		Metrics:   metrics,
		Logger:    logger,
		Stats:     statsSources(repo, limiter, memory),
		Security: security.SecurityConfig{
			AllowedOrigins: cfg.CORSOrigins,
			RequestTimeout: cfg.RequestTimeout,
			EnableHSTS:     cfg.EnableHSTS,
		},
		Sessions:   users,
		UploadsDir: uploadsDir,
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server",
			"port", cfg.Port,
			"repository", repo.Backend(),
			"scorer", cfg.Scorer,
			"image_store", cfg.ImageStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}

// buildRepository opens the configured backend. A postgres server that is
// still starting up is retried with backoff.
func buildRepository(ctx context.Context, cfg *config.Config) (database.Repository, error) {
	if cfg.Repository == "memory" {
		return database.NewMemoryRepository(), nil
	}

	retry := resilience.DefaultRetryConfig()
	if !database.IsPostgresDSN(cfg.DatabaseDSN) {
		retry.MaxAttempts = 1
	}

	var db *database.DB
	err := resilience.Retry(ctx, "open database", retry, func(ctx context.Context) error {
		var err error
		db, err = database.NewDB(ctx, cfg.DataDir, cfg.DatabaseDSN)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database.NewSQLRepository(db), nil
}

// statsSources names the sections /metrics reports beside the request
// counters. The memory repository has no pool and is left out.
func statsSources(repo database.Repository, limiter *ratelimit.RateLimiter, memory *monitoring.MemoryMonitor) map[string]monitoring.StatsSource {
	sources := map[string]monitoring.StatsSource{
		"memory":       memory,
		"rate_limiter": limiter,
	}
	if pool, ok := repo.(monitoring.StatsSource); ok {
		sources["database"] = pool
	}
	return sources
}

// buildScorer returns the configured scoring strategy
func buildScorer(cfg *config.Config) analysis.Scorer {
	if cfg.Scorer == "random" {
		return analysis.NewRandomScorer(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return analysis.NewStrokeScorer(analysis.NewProfileStore(filepath.Join(cfg.DataDir, "profiles")))
}

// buildImageStore returns the store for processed uploads and, for the disk
// store, the directory to serve under /uploads
func buildImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, string, error) {
	if cfg.ImageStore == "s3" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			Bucket:         cfg.S3Bucket,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			return nil, "", fmt.Errorf("open s3 store: %w", err)
		}
		return store, "", nil
	}

	store, err := storage.NewDiskStore(filepath.Join(cfg.DataDir, "uploads"))
	if err != nil {
		return nil, "", fmt.Errorf("open upload dir: %w", err)
	}
	return store, store.Root(), nil
}
