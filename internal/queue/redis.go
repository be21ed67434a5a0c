package queue

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisTarget is a parsed Redis connection string shared by the task queue
// and the content cache.
type RedisTarget struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// ParseRedisURL accepts redis://[:password@]host:port[/db], the TLS form
// rediss://..., or a bare host:port.
func ParseRedisURL(raw string) (RedisTarget, error) {
	var target RedisTarget

	if !strings.Contains(raw, "://") {
		target.Addr = raw
		return target, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return target, fmt.Errorf("invalid redis URL: %w", err)
	}

	switch u.Scheme {
	case "redis":
	case "rediss":
		target.TLS = true
	default:
		return target, fmt.Errorf("unsupported redis URL scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return target, fmt.Errorf("redis URL missing host")
	}
	target.Addr = u.Host

	if u.User != nil {
		target.Password, _ = u.User.Password()
	}

	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return target, fmt.Errorf("invalid redis database %q", path)
		}
		target.DB = db
	}

	return target, nil
}

func (t RedisTarget) tlsConfig() *tls.Config {
	if !t.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// AsynqOpt returns the connection options for asynq clients and servers.
func (t RedisTarget) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      t.Addr,
		Password:  t.Password,
		DB:        t.DB,
		TLSConfig: t.tlsConfig(),
	}
}

// ClientOptions returns the connection options for a go-redis client.
func (t RedisTarget) ClientOptions() *redis.Options {
	return &redis.Options{
		Addr:      t.Addr,
		Password:  t.Password,
		DB:        t.DB,
		TLSConfig: t.tlsConfig(),
	}
}
