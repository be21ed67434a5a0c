package service

import (
	"context"
	"strings"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateRequest changes the editable details of a content item. Nil fields
// are left as they are. ThumbnailPath, when set, is a staged image that
// replaces the current thumbnail; the service removes the file before
// returning.
type UpdateRequest struct {
	Title         *string
	Description   *string
	Published     *bool
	ThumbnailPath string
}

// ContentService serves reads and small mutations of content items.
type ContentService struct {
	db      db.DBTX
	tx      db.TxRunner
	content repository.ContentRepository
	blobs   BlobStore
	janitor *blobJanitor
	cache   ContentCache
	fanout  FanoutScheduler
	events  EventPublisher
	logger  *zap.Logger
}

// ContentDeps are the collaborators of a ContentService. Cache and Events may be nil.
type ContentDeps struct {
	DB      db.DBTX
	Tx      db.TxRunner
	Repos   *repository.Repositories
	Blobs   BlobStore
	Cache   ContentCache
	Fanout  FanoutScheduler
	Events  EventPublisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewContentService creates a ContentService.
func NewContentService(deps ContentDeps) *ContentService {
	logger := deps.Logger.Named("content")
	return &ContentService{
		db:      deps.DB,
		tx:      deps.Tx,
		content: deps.Repos.Content,
		blobs:   deps.Blobs,
		janitor: &blobJanitor{
			db:      deps.DB,
			blobs:   deps.Blobs,
			orphans: deps.Repos.Orphans,
			metrics: deps.Metrics,
			logger:  logger,
		},
		cache:  deps.Cache,
		fanout: deps.Fanout,
		events: deps.Events,
		logger: logger,
	}
}

// Get returns a content item, from the cache when possible.
func (s *ContentService) Get(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	if s.cache != nil {
		item, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("cache read failed", zap.Error(err), zap.String("content_id", id.String()))
		} else if item != nil {
			return item, nil
		}
	}

	item, err := s.content.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, readError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, item); err != nil {
			s.logger.Warn("cache write failed", zap.Error(err), zap.String("content_id", id.String()))
		}
	}
	return item, nil
}

// Copy creates a new item for ownerID that shares the source item's blobs.
func (s *ContentService) Copy(ctx context.Context, id, ownerID uuid.UUID) (*models.ContentItem, error) {
	if ownerID == uuid.Nil {
		return nil, newError(KindValidation, "owner is required", nil)
	}

	var src, cp *models.ContentItem
	err := s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		// The source row stays locked until the copy commits, so a
		// concurrent delete of it counts the copy as a reference.
		item, err := s.content.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return readError(err)
		}
		if err := s.content.LockBlobs(ctx, tx, blobIDs(item.Blobs())...); err != nil {
			return err
		}

		src = item
		cp = item.Copy(ownerID)
		return s.content.Create(ctx, tx, cp)
	})
	if err != nil {
		return nil, txError(err, "could not save copy")
	}

	s.logger.Info("content copied",
		zap.String("source_id", src.ID.String()),
		zap.String("content_id", cp.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	publishLifecycle(ctx, s.events, s.logger, EventContentUploaded, cp)
	return cp, nil
}

// IncrementViews counts one view and returns the new total.
func (s *ContentService) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	views, err := s.content.IncrementViews(ctx, s.db, id)
	if err != nil {
		return 0, readError(err)
	}
	s.invalidate(ctx, id)
	return views, nil
}

// UpdateDetails applies req to the item. A new thumbnail is uploaded first;
// if the record update then fails the new blob is deleted, and once it
// succeeds the old thumbnail is deleted unless a copy still uses it.
// Publishing a previously unpublished item schedules fan-out.
func (s *ContentService) UpdateDetails(ctx context.Context, id uuid.UUID, req UpdateRequest) (*models.ContentItem, error) {
	defer removeFiles(s.logger, req.ThumbnailPath)

	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	current, err := s.content.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, readError(err)
	}
	if req.ThumbnailPath != "" && !current.Kind.NeedsThumbnail() {
		return nil, newError(KindValidation, "shorts do not have thumbnails", nil)
	}

	var replacement *models.BlobRef
	if req.ThumbnailPath != "" {
		res, err := s.blobs.Upload(ctx, req.ThumbnailPath, models.ResourceImage)
		if err != nil {
			return nil, newError(KindUpstream, "thumbnail upload failed", err)
		}
		replacement = &res.Ref
	}

	var (
		updated      *models.ContentItem
		released     *models.BlobRef
		wasPublished bool
	)
	err = s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		item, err := s.content.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return readError(err)
		}

		wasPublished = item.Published
		if req.Title != nil {
			item.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			item.Description = strings.TrimSpace(*req.Description)
		}
		if req.Published != nil {
			item.Published = *req.Published
		}
		var previous *models.BlobRef
		if replacement != nil {
			previous = item.DerivedBlob
			item.DerivedBlob = replacement
		}

		if err := s.content.UpdateDetails(ctx, tx, item); err != nil {
			return err
		}
		if previous != nil && previous.ExternalID != replacement.ExternalID {
			unused, err := s.unreferenced(ctx, tx, *previous)
			if err != nil {
				return err
			}
			if unused {
				released = previous
			}
		}
		updated = item
		return nil
	})
	if err != nil {
		if replacement != nil {
			s.janitor.discard(ctx, models.OrphanReasonCompensationFailed, *replacement)
		}
		return nil, txError(err, "could not update content")
	}

	if released != nil {
		s.janitor.discard(ctx, models.OrphanReasonReplaced, *released)
	}

	s.invalidate(ctx, id)
	if !wasPublished && updated.Published {
		s.scheduleFanout(ctx, updated)
	}
	publishLifecycle(ctx, s.events, s.logger, EventContentUpdated, updated)

	return updated, nil
}

// AttachAds prepends adIDs to the item's ad list. If any id is already
// attached nothing changes and the duplicates are reported in the error.
func (s *ContentService) AttachAds(ctx context.Context, id uuid.UUID, adIDs []uuid.UUID) (*models.ContentItem, error) {
	adIDs = uniqueIDs(adIDs)
	if len(adIDs) == 0 {
		return nil, newError(KindValidation, "at least one ad id is required", nil)
	}

	return s.mutateAds(ctx, id, func(item *models.ContentItem) ([]uuid.UUID, error) {
		var duplicates []string
		for _, adID := range adIDs {
			if item.HasAd(adID) {
				duplicates = append(duplicates, adID.String())
			}
		}
		if len(duplicates) > 0 {
			e := newError(KindConflict, "ads already attached", nil)
			e.Details = map[string]any{"duplicates": duplicates}
			return nil, e
		}

		next := make([]uuid.UUID, 0, len(adIDs)+len(item.AttachedAdIDs))
		next = append(next, adIDs...)
		return append(next, item.AttachedAdIDs...), nil
	})
}

// DetachAds removes adIDs from the item's ad list. Ids that are not
// attached are ignored.
func (s *ContentService) DetachAds(ctx context.Context, id uuid.UUID, adIDs []uuid.UUID) (*models.ContentItem, error) {
	adIDs = uniqueIDs(adIDs)
	if len(adIDs) == 0 {
		return nil, newError(KindValidation, "at least one ad id is required", nil)
	}

	remove := make(map[uuid.UUID]struct{}, len(adIDs))
	for _, adID := range adIDs {
		remove[adID] = struct{}{}
	}

	return s.mutateAds(ctx, id, func(item *models.ContentItem) ([]uuid.UUID, error) {
		next := make([]uuid.UUID, 0, len(item.AttachedAdIDs))
		for _, adID := range item.AttachedAdIDs {
			if _, ok := remove[adID]; !ok {
				next = append(next, adID)
			}
		}
		return next, nil
	})
}

// mutateAds locks the item, computes its new ad list with fn and stores it.
func (s *ContentService) mutateAds(ctx context.Context, id uuid.UUID, fn func(*models.ContentItem) ([]uuid.UUID, error)) (*models.ContentItem, error) {
	var updated *models.ContentItem
	err := s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		item, err := s.content.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return readError(err)
		}

		next, err := fn(item)
		if err != nil {
			return err
		}
		if err := s.content.SetAttachedAds(ctx, tx, id, next); err != nil {
			return err
		}

		item.AttachedAdIDs = next
		updated = item
		return nil
	})
	if err != nil {
		return nil, txError(err, "could not update ads")
	}

	s.invalidate(ctx, id)
	return updated, nil
}

// unreferenced reports whether no item references ref any more. It runs
// inside the transaction that dropped the reference.
func (s *ContentService) unreferenced(ctx context.Context, tx db.DBTX, ref models.BlobRef) (bool, error) {
	if err := s.content.LockBlobs(ctx, tx, ref.ExternalID); err != nil {
		return false, err
	}
	refs, err := s.content.CountBlobReferences(ctx, tx, ref.ExternalID)
	if err != nil {
		return false, err
	}
	return refs == 0, nil
}

func (s *ContentService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn("could not invalidate cache", zap.Error(err), zap.String("content_id", id.String()))
	}
}

func (s *ContentService) scheduleFanout(ctx context.Context, item *models.ContentItem) {
	event := fanout.Event{
		ActorID:      item.OwnerID,
		ContentID:    item.ID,
		ContentTitle: item.Title,
		Kind:         string(item.Kind),
	}
	if err := s.fanout.Schedule(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("could not schedule fan-out", zap.Error(err), zap.String("content_id", item.ID.String()))
	}
}

func validateUpdate(req UpdateRequest) error {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return newError(KindValidation, "title cannot be empty", nil)
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		return newError(KindValidation, "description cannot be empty", nil)
	}
	if req.Title == nil && req.Description == nil && req.Published == nil && req.ThumbnailPath == "" {
		return newError(KindValidation, "nothing to update", nil)
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// readError maps a repository read failure to a service error.
func readError(err error) error {
	if KindOf(err) != "" {
		return err
	}
	if db.IsNotFound(err) {
		return newError(KindNotFound, "content not found", err)
	}
	return newError(KindUpstream, "could not load content", err)
}

// txError keeps classified errors and reports anything else as an
// aborted transaction.
func txError(err error, message string) error {
	if KindOf(err) != "" {
		return err
	}
	return newError(KindTransactionAborted, message, err)
}
