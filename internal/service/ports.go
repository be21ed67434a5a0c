package service

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/storage"

	"github.com/google/uuid"
)

// Hasher produces the content fingerprint of a local file.
type Hasher interface {
	Sum(ctx context.Context, path string) (string, error)
}

// BlobStore uploads and deletes opaque blobs.
type BlobStore interface {
	Upload(ctx context.Context, localPath string, kind models.ResourceKind) (storage.UploadResult, error)
	Delete(ctx context.Context, ref models.BlobRef) error
}

// AssetGenerator derives a thumbnail image from a video file and returns
// the local path of the image.
type AssetGenerator interface {
	Generate(ctx context.Context, sourcePath string) (string, error)
}

// DurationProber reads the media length of a local file.
type DurationProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// FanoutScheduler hands a fan-out off to run after the caller returns.
type FanoutScheduler interface {
	Schedule(ctx context.Context, event fanout.Event) error
}

// LifecycleEvent is broadcast to other services when content changes.
type LifecycleEvent struct {
	Type      string    `json:"type"`
	ContentID uuid.UUID `json:"content_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Kind      string    `json:"kind"`
}

// Lifecycle event types.
const (
	EventContentUploaded = "content.uploaded"
	EventContentDeleted  = "content.deleted"
	EventContentUpdated  = "content.updated"
)

// EventPublisher broadcasts lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// ContentCache caches content items for reads. Get returns nil, nil on a miss.
type ContentCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ContentItem, error)
	Set(ctx context.Context, item *models.ContentItem) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}
