// Package main is the entry point for the standalone latebird dispatcher.
//
// It runs only the two delivery sweeps (due posts and failed-post retries)
// against the shared database, with no HTTP surface. Deployments that prefer
// a single process can instead enable the sweeps inside the API binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"latebird/internal/auth"
	"latebird/internal/config"
	"latebird/internal/db"
	"latebird/internal/dispatcher"
	"latebird/internal/types"
	"latebird/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("latebird dispatcher starting",
		"environment", cfg.Environment,
		"due_interval", cfg.Dispatcher.DueInterval,
		"retry_interval", cfg.Dispatcher.RetryInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Value())
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	cryptor, err := auth.NewCryptor(cfg.Auth.CredentialKey.Value())
	if err != nil {
		return fmt.Errorf("initializing credential cryptor: %w", err)
	}

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

	d := dispatcher.New(
		db.NewScheduledPostRepository(pool),
		db.NewCredentialRepository(pool, cryptor),
		twitterClient,
		dispatcher.Options{
			PerPostTimeout: cfg.Dispatcher.PerPostTimeout,
			Concurrency:    cfg.Dispatcher.Concurrency,
			BatchLimit:     cfg.Dispatcher.BatchLimit,
			Logger:         logger,
			Clock:          types.RealClock{},
		},
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Loop(ctx, cfg.Dispatcher.DueInterval, d.SweepDue, func(err error) {
			logger.Error("sweep failed", "sweep", "due", "error", err)
		})
	}()
	go func() {
		defer wg.Done()
		dispatcher.Loop(ctx, cfg.Dispatcher.RetryInterval, d.SweepRetries, func(err error) {
			logger.Error("sweep failed", "sweep", "retry", "error", err)
		})
	}()

	wg.Wait()
	logger.Info("dispatcher stopped cleanly")
	return nil
}
