package service

import (
	"context"
	"errors"
	"os"

	"github.com/uptube/content-ingestion-go/internal/db/models"

	"go.uber.org/zap"
)

// publishLifecycle broadcasts a content change. Publishing is best effort.
func publishLifecycle(ctx context.Context, pub EventPublisher, logger *zap.Logger, typ string, item *models.ContentItem) {
	if pub == nil {
		return
	}

	event := LifecycleEvent{
		Type:      typ,
		ContentID: item.ID,
		OwnerID:   item.OwnerID,
		Kind:      string(item.Kind),
	}
	if err := pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("could not publish lifecycle event",
			zap.Error(err),
			zap.String("type", typ),
			zap.String("content_id", item.ID.String()),
		)
	}
}

// removeFiles deletes staged local files, ignoring ones already gone.
func removeFiles(logger *zap.Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("could not remove temp file", zap.Error(err), zap.String("path", p))
		}
	}
}
