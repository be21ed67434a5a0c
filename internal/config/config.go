// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/events"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/storage"
	"github.com/uptube/content-ingestion-go/internal/thumbnail"

	"github.com/spf13/viper"
)

const applicationName = "content-ingestion"

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Upload   UploadConfig
	Fanout   FanoutConfig
	Cache    CacheConfig
	Sweep    SweepConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKey          string
	AllowedOrigins  []string
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration

	StatementTimeout time.Duration
}

// StorageConfig contains blob store configuration.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
	UseSSL        bool
}

// RedisConfig contains the Redis connection used by the task queue and the cache.
// An empty URL disables both.
type RedisConfig struct {
	URL string
}

// RabbitMQConfig contains RabbitMQ connection and topology configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled        bool
	Host           string
	User           string
	Password       string
	VHost          string
	Exchange       string
	Queue          string
	Port           int
	ConfirmTimeout time.Duration
}

// UploadConfig contains upload staging and media processing configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type UploadConfig struct {
	TempDir          string
	MaxSize          int64
	HashChunkSize    int
	TempFileTTL      time.Duration
	FFmpegPath       string
	FFprobePath      string
	ThumbnailSeek    time.Duration
	ThumbnailTimeout time.Duration
}

// FanoutConfig contains notification fan-out configuration.
type FanoutConfig struct {
	Timeout     time.Duration
	Concurrency int
}

// CacheConfig contains content cache configuration.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SweepConfig contains orphan sweeper configuration.
type SweepConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.apikey", "")
	viper.SetDefault("server.allowedorigins", []string{"*"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "content")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 30*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)
	viper.SetDefault("database.statementtimeout", 30*time.Second)

	// Storage
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accesskey", "minioadmin")
	viper.SetDefault("storage.secretkey", "minioadmin")
	viper.SetDefault("storage.bucket", "media")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.publicbaseurl", "")
	viper.SetDefault("storage.usessl", false)

	// Redis
	viper.SetDefault("redis.url", "redis://localhost:6379/0")

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", true)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.vhost", "")
	viper.SetDefault("rabbitmq.exchange", "content.lifecycle")
	viper.SetDefault("rabbitmq.queue", "content.lifecycle.audit")
	viper.SetDefault("rabbitmq.confirmtimeout", 5*time.Second)

	// Upload
	viper.SetDefault("upload.tempdir", "/tmp/content-uploads")
	viper.SetDefault("upload.maxsize", 2<<30) // 2GB
	viper.SetDefault("upload.hashchunksize", 64*1024)
	// Must exceed the longest upload; the sweeper raises anything below an hour.
	viper.SetDefault("upload.tempfilettl", 6*time.Hour)
	viper.SetDefault("upload.ffmpegpath", "ffmpeg")
	viper.SetDefault("upload.ffprobepath", "ffprobe")
	viper.SetDefault("upload.thumbnailseek", time.Second)
	viper.SetDefault("upload.thumbnailtimeout", 30*time.Second)

	// Fanout
	viper.SetDefault("fanout.timeout", time.Minute)
	viper.SetDefault("fanout.concurrency", 10)

	// Cache
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", 5*time.Minute)

	// Sweep
	viper.SetDefault("sweep.interval", 15*time.Minute)
	viper.SetDefault("sweep.batchsize", 100)
	viper.SetDefault("sweep.maxattempts", 10)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}

// PoolConfig converts the database section for db.NewPool.
func (c DatabaseConfig) PoolConfig() *db.Config {
	return &db.Config{
		Host:             c.Host,
		Port:             c.Port,
		User:             c.User,
		Password:         c.Password,
		Database:         c.Name,
		SSLMode:          c.SSLMode,
		ApplicationName:  applicationName,
		StatementTimeout: c.StatementTimeout,
		MaxConns:         int32(c.MaxConnections),
		MinConns:         int32(c.MinConnections),
		MaxConnLifetime:  c.MaxLifetime,
		MaxConnIdleTime:  c.MaxIdleTime,
	}
}

// APIKeys splits the comma-separated key list.
func (c ServerConfig) APIKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKey, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// MigrateURL returns the postgres URL golang-migrate expects.
func (c DatabaseConfig) MigrateURL() string {
	return c.PoolConfig().URL()
}

// Minio converts the storage section for storage.NewMinioStore.
func (c StorageConfig) Minio() storage.Config {
	return storage.Config(c)
}

// Publisher converts the RabbitMQ section for events.NewPublisher.
func (c RabbitMQConfig) Publisher() events.Config {
	return events.Config{
		Host:           c.Host,
		User:           c.User,
		Password:       c.Password,
		VHost:          c.VHost,
		Exchange:       c.Exchange,
		Queue:          c.Queue,
		Port:           c.Port,
		ConfirmTimeout: c.ConfirmTimeout,
	}
}

// FFmpeg converts the upload section for thumbnail.NewFFmpeg.
func (c UploadConfig) FFmpeg() thumbnail.Config {
	return thumbnail.Config{
		FFmpegPath:  c.FFmpegPath,
		FFprobePath: c.FFprobePath,
		OutputDir:   c.TempDir,
		SeekOffset:  c.ThumbnailSeek,
		Timeout:     c.ThumbnailTimeout,
	}
}

// Sweeper combines the sweep and upload sections for service.NewOrphanSweeper.
func (c *Config) Sweeper() service.SweepConfig {
	return service.SweepConfig{
		BatchSize:   c.Sweep.BatchSize,
		MaxAttempts: c.Sweep.MaxAttempts,
		TempDir:     c.Upload.TempDir,
		TempFileTTL: c.Upload.TempFileTTL,
	}
}
