package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uptube/content-ingestion-go/internal/config"
	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/metrics"
	"github.com/uptube/content-ingestion-go/internal/queue"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/storage"
	"github.com/uptube/content-ingestion-go/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker exited", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis url is required for the worker")
	}
	target, err := queue.ParseRedisURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(pool)

	store, err := storage.NewMinioStore(cfg.Storage.Minio(), log)
	if err != nil {
		return err
	}

	// Private registry: the worker serves no /metrics.
	m := metrics.New(prometheus.NewRegistry())
	repos := repository.New()

	runner := fanout.NewService(pool, repos.Subscriptions, repos.Notifications, m, log)
	sweeper := service.NewOrphanSweeper(pool, repos, store, cfg.Sweeper(), m, log)

	srv := queue.NewServer(target, cfg.Fanout.Concurrency, queue.NewHandler(runner, sweeper, log), log)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	defer srv.Stop()

	sched, err := queue.NewScheduler(target, cfg.Sweep.Interval, log)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	log.Info("worker started",
		zap.Int("concurrency", cfg.Fanout.Concurrency),
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	return nil
}
