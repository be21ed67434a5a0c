//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port.Int())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestContentCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()
	c := NewContentCache(setupTestRedis(t), time.Minute)
	require.NoError(t, c.Ping(ctx))

	item := models.NewContentItem(uuid.New(), "Cached", "desc", models.KindVideo, true)
	item.PrimaryBlob = models.BlobRef{Locator: "http://x/1", ExternalID: "1", ResourceKind: models.ResourceVideo}
	item.AttachedAdIDs = []uuid.UUID{uuid.New()}

	got, err := c.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil")

	require.NoError(t, c.Set(ctx, item))
	got, err = c.Get(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.PrimaryBlob, got.PrimaryBlob)
	assert.Equal(t, item.AttachedAdIDs, got.AttachedAdIDs)

	require.NoError(t, c.Invalidate(ctx, item.ID))
	got, err = c.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
