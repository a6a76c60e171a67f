// Package main is the entry point for the latebird API server.
//
// It loads configuration, connects the database pool, builds the governor,
// cache, upstream adapter, repositories, and HTTP chassis, and serves until
// SIGINT/SIGTERM. When DISPATCHER_ENABLED is true the two delivery sweeps run
// in-process alongside the HTTP server.
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

	"github.com/jackc/pgx/v5/pgxpool"

	"latebird/internal/api/handlers"
	"latebird/internal/auth"
	"latebird/internal/cache"
	"latebird/internal/config"
	"latebird/internal/core"
	"latebird/internal/db"
	"latebird/internal/dispatcher"
	"latebird/internal/govern"
	"latebird/internal/types"
	"latebird/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("latebird API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"dispatcher_enabled", cfg.Dispatcher.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	cryptor, err := auth.NewCryptor(cfg.Auth.CredentialKey.Value())
	if err != nil {
		return fmt.Errorf("initializing credential cryptor: %w", err)
	}

	clock := types.RealClock{}
	postRepo := db.NewScheduledPostRepository(pool)
	credRepo := db.NewCredentialRepository(pool, cryptor)
	sessionRepo := db.NewSessionRepository(pool)

	governor := govern.New(governorLimits(cfg), clock)
	responseCache := cache.New(clock)
	twitterClient := upstream.NewTwitterClient(
		cfg.Twitter.ConsumerKey,
		cfg.Twitter.ConsumerSecret.Value(),
		upstream.Options{
			Timeout:        cfg.Twitter.RequestTimeout,
			SmoothingRPS:   cfg.Twitter.SmoothingRPS,
			SmoothingBurst: cfg.Twitter.SmoothingBurst,
			Logger:         logger,
		},
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewAuthenticator(sessionRepo, credRepo, clock)
	srv.DB = pool

	postHandler := handlers.NewPostHandler(postRepo, credRepo, twitterClient, governor, logger, clock)
	readHandler := handlers.NewReadHandler(twitterClient, responseCache, governor, credRepo, cfg.Cache.Freshness, logger)
	meHandler := handlers.NewMeHandler(credRepo, logger)
	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars,
		postHandler.RegisterRoutes,
		readHandler.RegisterRoutes,
		meHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	if cfg.Dispatcher.Enabled {
		d := dispatcher.New(postRepo, credRepo, twitterClient, dispatcher.Options{
			PerPostTimeout: cfg.Dispatcher.PerPostTimeout,
			Concurrency:    cfg.Dispatcher.Concurrency,
			BatchLimit:     cfg.Dispatcher.BatchLimit,
			Logger:         logger,
			Clock:          clock,
		})
		go dispatcher.Loop(ctx, cfg.Dispatcher.DueInterval, d.SweepDue, sweepErrorLogger(logger, "due"))
		go dispatcher.Loop(ctx, cfg.Dispatcher.RetryInterval, d.SweepRetries, sweepErrorLogger(logger, "retry"))
	}

	return serveHTTP(ctx, srv, cfg, logger)
}

// newPool builds the pgx connection pool from the database configuration and
// verifies connectivity with a ping.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Value())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// governorLimits maps the rate limit configuration onto per-class policies.
// Both read classes share the read policy.
func governorLimits(cfg *config.Config) map[types.OpClass]govern.ClassLimit {
	readLimit := govern.ClassLimit{
		Window:   cfg.RateLimit.ReadWindow,
		Max:      cfg.RateLimit.ReadMax,
		Cooldown: cfg.RateLimit.ReadCooldown,
	}
	return map[types.OpClass]govern.ClassLimit{
		types.ClassPost: {
			Window:   cfg.RateLimit.PostWindow,
			Max:      cfg.RateLimit.PostMax,
			Cooldown: cfg.RateLimit.PostCooldown,
		},
		types.ClassTimelineRead: readLimit,
		types.ClassMetricsRead:  readLimit,
	}
}

// serveHTTP runs the HTTP server until the context is canceled or the
// listener fails, then shuts down gracefully.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// sweepErrorLogger adapts the logger to the dispatcher loop's error callback.
func sweepErrorLogger(logger *slog.Logger, sweep string) func(error) {
	return func(err error) {
		logger.Error("sweep failed", "sweep", sweep, "error", err)
	}
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
