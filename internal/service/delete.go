package service

import (
	"context"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeleteOrchestrator removes a content item and everything that depends on
// it in one transaction, then deletes blobs no other item references.
type DeleteOrchestrator struct {
	tx      db.TxRunner
	repos   *repository.Repositories
	janitor *blobJanitor
	cache   ContentCache
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// DeleteDeps are the collaborators of a DeleteOrchestrator. Cache and Events may be nil.
type DeleteDeps struct {
	DB      db.DBTX
	Tx      db.TxRunner
	Repos   *repository.Repositories
	Blobs   BlobStore
	Cache   ContentCache
	Events  EventPublisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewDeleteOrchestrator creates a DeleteOrchestrator.
func NewDeleteOrchestrator(deps DeleteDeps) *DeleteOrchestrator {
	logger := deps.Logger.Named("delete")
	return &DeleteOrchestrator{
		tx:    deps.Tx,
		repos: deps.Repos,
		janitor: &blobJanitor{
			db:      deps.DB,
			blobs:   deps.Blobs,
			orphans: deps.Repos.Orphans,
			metrics: deps.Metrics,
			logger:  logger,
		},
		cache:   deps.Cache,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Delete removes the item with the given id and returns it. A missing id
// is a KindNotFound error; any failure before commit leaves nothing deleted.
func (o *DeleteOrchestrator) Delete(ctx context.Context, id uuid.UUID) (deleted *models.ContentItem, err error) {
	defer func() { o.metrics.Deletes.WithLabelValues(outcome(err)).Inc() }()

	var unreferenced []models.BlobRef

	err = o.tx.WithinTx(ctx, func(tx db.DBTX) error {
		item, err := o.repos.Content.Delete(ctx, tx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return newError(KindNotFound, "content not found", err)
			}
			return newError(KindTransactionAborted, "could not delete content", err)
		}

		if err := o.cascade(ctx, tx, id); err != nil {
			return newError(KindTransactionAborted, "could not delete dependents", err)
		}

		if err := o.repos.Content.LockBlobs(ctx, tx, blobIDs(item.Blobs())...); err != nil {
			return newError(KindTransactionAborted, "could not lock blobs", err)
		}
		for _, ref := range item.Blobs() {
			refs, err := o.repos.Content.CountBlobReferences(ctx, tx, ref.ExternalID)
			if err != nil {
				return newError(KindTransactionAborted, "could not count blob references", err)
			}
			if refs == 0 {
				unreferenced = append(unreferenced, ref)
			}
		}

		deleted = item
		return nil
	})
	if err != nil {
		if KindOf(err) == "" {
			err = newError(KindTransactionAborted, "could not commit delete", err)
		}
		return nil, err
	}

	// Blob storage is outside the transaction; a failure here leaves an
	// orphan entry rather than undoing the committed delete.
	o.janitor.discard(ctx, models.OrphanReasonDeleteFailed, unreferenced...)

	if o.cache != nil {
		if err := o.cache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
			o.logger.Warn("could not invalidate cache", zap.Error(err), zap.String("content_id", id.String()))
		}
	}
	publishLifecycle(ctx, o.events, o.logger, EventContentDeleted, deleted)

	o.logger.Info("content deleted",
		zap.String("content_id", id.String()),
		zap.Int("blobs_released", len(unreferenced)),
		zap.Int("blobs_retained", len(deleted.Blobs())-len(unreferenced)),
	)
	return deleted, nil
}

// cascade removes comments with their whole reply threads, then likes,
// notifications and playlist entries that point at the content item.
func (o *DeleteOrchestrator) cascade(ctx context.Context, tx db.DBTX, contentID uuid.UUID) error {
	roots, err := o.repos.Comments.ListIDsByContent(ctx, tx, contentID)
	if err != nil {
		return err
	}
	thread, err := collectThread(ctx, tx, o.repos.Comments, roots)
	if err != nil {
		return fmt.Errorf("collect comment threads: %w", err)
	}
	if err := deleteCommentSet(ctx, tx, o.repos, thread); err != nil {
		return err
	}

	if _, err := o.repos.Likes.DeleteByContent(ctx, tx, contentID); err != nil {
		return err
	}
	if _, err := o.repos.Notifications.DeleteByContent(ctx, tx, contentID); err != nil {
		return err
	}
	if _, err := o.repos.Playlists.DeleteItemsByContent(ctx, tx, contentID); err != nil {
		return err
	}
	return nil
}

// deleteCommentSet removes the comments and anything referencing them.
func deleteCommentSet(ctx context.Context, tx db.DBTX, repos *repository.Repositories, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repos.Likes.DeleteByComments(ctx, tx, ids); err != nil {
		return err
	}
	if _, err := repos.Notifications.DeleteByComments(ctx, tx, ids); err != nil {
		return err
	}
	if _, err := repos.Comments.DeleteByIDs(ctx, tx, ids); err != nil {
		return err
	}
	return nil
}

func blobIDs(refs []models.BlobRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ExternalID)
	}
	return ids
}
