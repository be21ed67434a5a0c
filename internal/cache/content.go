// Package cache keeps recently read content items in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "content:item:"

// ContentCache stores content items as JSON with a fixed TTL.
type ContentCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewContentCache creates a ContentCache.
func NewContentCache(client redis.Cmdable, ttl time.Duration) *ContentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ContentCache{client: client, ttl: ttl}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// Get returns the cached item, or nil on a miss.
func (c *ContentCache) Get(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var item models.ContentItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &item, nil
}

// Set stores item.
func (c *ContentCache) Set(ctx context.Context, item *models.ContentItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(item.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached copy of id.
func (c *ContentCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *ContentCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
