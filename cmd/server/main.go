package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptube/content-ingestion-go/internal/cache"
	"github.com/uptube/content-ingestion-go/internal/config"
	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/events"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/fingerprint"
	"github.com/uptube/content-ingestion-go/internal/handler"
	"github.com/uptube/content-ingestion-go/internal/metrics"
	"github.com/uptube/content-ingestion-go/internal/queue"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/storage"
	"github.com/uptube/content-ingestion-go/internal/thumbnail"
	"github.com/uptube/content-ingestion-go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
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
		log.Error("server exited", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	if err := os.MkdirAll(cfg.Upload.TempDir, 0o750); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(pool)
	log.Info("database connection established", zap.Int32("max_conns", pool.Config().MaxConns))

	store, err := storage.NewMinioStore(cfg.Storage.Minio(), log)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repos := repository.New()
	txm := db.NewTxManager(pool)
	ffmpeg := thumbnail.NewFFmpeg(cfg.Upload.FFmpeg(), log)

	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(pool.Ping),
		"storage":  store,
	}

	var redisTarget *queue.RedisTarget
	if cfg.Redis.URL != "" {
		t, err := queue.ParseRedisURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisTarget = &t
	}

	var scheduler service.FanoutScheduler
	if redisTarget != nil {
		client := queue.NewClient(*redisTarget, cfg.Fanout.Timeout, log)
		defer func() { _ = client.Close() }()
		scheduler = client
		log.Info("fan-out will be queued for the worker")
	} else {
		detached := fanout.NewDetachedScheduler(
			fanout.NewService(pool, repos.Subscriptions, repos.Notifications, m, log),
			cfg.Fanout.Timeout, log)
		defer detached.Wait()
		scheduler = detached
		log.Warn("no redis configured, fan-out runs in process")
	}

	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := events.NewPublisher(cfg.RabbitMQ.Publisher(), log)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		publisher = p
		checks["rabbitmq"] = handler.PingFunc(func(context.Context) error {
			if !p.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		})
	}

	var contentCache service.ContentCache
	if cfg.Cache.Enabled && redisTarget != nil {
		rdb := redis.NewClient(redisTarget.ClientOptions())
		defer func() { _ = rdb.Close() }()
		c := cache.NewContentCache(rdb, cfg.Cache.TTL)
		contentCache = c
		checks["cache"] = c
	}

	uploader := service.NewUploadOrchestrator(service.UploadDeps{
		DB:        pool,
		Repos:     repos,
		Hasher:    fingerprint.NewHasher(cfg.Upload.HashChunkSize),
		Blobs:     store,
		Generator: ffmpeg,
		Prober:    ffmpeg,
		Fanout:    scheduler,
		Events:    publisher,
		Metrics:   m,
		Logger:    log,
	})
	deleter := service.NewDeleteOrchestrator(service.DeleteDeps{
		DB:      pool,
		Tx:      txm,
		Repos:   repos,
		Blobs:   store,
		Cache:   contentCache,
		Events:  publisher,
		Metrics: m,
		Logger:  log,
	})
	content := service.NewContentService(service.ContentDeps{
		DB:      pool,
		Tx:      txm,
		Repos:   repos,
		Blobs:   store,
		Cache:   contentCache,
		Fanout:  scheduler,
		Events:  publisher,
		Metrics: m,
		Logger:  log,
	})

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiKeys := cfg.Server.APIKeys()
	if len(apiKeys) == 0 {
		log.Warn("no API keys configured, the API is unauthenticated")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Content: handler.NewContentHandler(uploader, deleter, content,
			cfg.Upload.TempDir, cfg.Upload.MaxSize, log.Named("http")),
		Comments:       handler.NewCommentHandler(service.NewCommentService(txm, repos, log), log.Named("http")),
		Subscriptions:  handler.NewSubscriptionHandler(service.NewSubscriptionService(txm, repos, log), log.Named("http")),
		Health:         handler.NewHealthHandler(checks),
		Metrics:        metrics.Handler(reg),
		APIKeys:        apiKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log.Named("http"),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	log.Info("server stopped gracefully")
	return nil
}
