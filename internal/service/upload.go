package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/metrics"
	"github.com/uptube/content-ingestion-go/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UploadRequest is a new piece of media staged on local disk. The
// orchestrator owns MediaPath and ThumbnailPath and removes both before
// returning.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type UploadRequest struct {
	OwnerID       uuid.UUID
	Title         string
	Description   string
	Kind          models.ContentKind
	Published     bool
	MediaPath     string
	ThumbnailPath string
}

// DedupGuard is the fast-path duplicate check. The fingerprint unique index
// remains the authority; the guard only saves the upload work.
type DedupGuard struct {
	db      db.DBTX
	content repository.ContentRepository
}

// NewDedupGuard creates a DedupGuard.
func NewDedupGuard(q db.DBTX, content repository.ContentRepository) *DedupGuard {
	return &DedupGuard{db: q, content: content}
}

// Check returns the id of the live item holding digest, or nil.
func (g *DedupGuard) Check(ctx context.Context, digest string) (*uuid.UUID, error) {
	item, err := g.content.GetByFingerprint(ctx, g.db, digest)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &item.ID, nil
}

// UploadOrchestrator runs the upload saga: hash, dedup, derive thumbnail,
// upload blobs, persist, schedule fan-out. A failure after any blob exists
// deletes the blobs before the error is returned.
type UploadOrchestrator struct {
	db        db.DBTX
	content   repository.ContentRepository
	hasher    Hasher
	dedup     *DedupGuard
	blobs     BlobStore
	generator AssetGenerator
	prober    DurationProber
	fanout    FanoutScheduler
	events    EventPublisher
	janitor   *blobJanitor
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// UploadDeps are the collaborators of an UploadOrchestrator. Events may be nil.
type UploadDeps struct {
	DB        db.DBTX
	Repos     *repository.Repositories
	Hasher    Hasher
	Blobs     BlobStore
	Generator AssetGenerator
	Prober    DurationProber
	Fanout    FanoutScheduler
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewUploadOrchestrator creates an UploadOrchestrator.
func NewUploadOrchestrator(deps UploadDeps) *UploadOrchestrator {
	logger := deps.Logger.Named("upload")
	return &UploadOrchestrator{
		db:        deps.DB,
		content:   deps.Repos.Content,
		hasher:    deps.Hasher,
		dedup:     NewDedupGuard(deps.DB, deps.Repos.Content),
		blobs:     deps.Blobs,
		generator: deps.Generator,
		prober:    deps.Prober,
		fanout:    deps.Fanout,
		events:    deps.Events,
		janitor: &blobJanitor{
			db:      deps.DB,
			blobs:   deps.Blobs,
			orphans: deps.Repos.Orphans,
			metrics: deps.Metrics,
			logger:  logger,
		},
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Upload ingests req and returns the persisted item.
func (o *UploadOrchestrator) Upload(ctx context.Context, req UploadRequest) (item *models.ContentItem, err error) {
	temps := []string{req.MediaPath, req.ThumbnailPath}
	defer func() { o.removeTemp(temps) }()
	defer func() { o.metrics.Uploads.WithLabelValues(outcome(err)).Inc() }()

	if err := validateUpload(req); err != nil {
		return nil, err
	}

	thumbnailPath := req.ThumbnailPath
	if !req.Kind.NeedsThumbnail() {
		thumbnailPath = ""
	}

	// Hashing
	start := time.Now()
	digest, err := o.hasher.Sum(ctx, req.MediaPath)
	o.observe("hash", start)
	if err != nil {
		return nil, newError(KindIO, "could not read uploaded media", err)
	}

	// DedupCheck
	existing, err := o.dedup.Check(ctx, digest)
	if err != nil {
		return nil, newError(KindUpstream, "duplicate check failed", err)
	}
	if existing != nil {
		o.logger.Info("duplicate upload rejected",
			zap.String("fingerprint", digest),
			zap.String("existing_id", existing.String()),
		)
		return nil, conflictExists(*existing)
	}

	// DerivedAssetPrep
	if req.Kind.NeedsThumbnail() && thumbnailPath == "" {
		start = time.Now()
		generated, err := o.generator.Generate(ctx, req.MediaPath)
		o.observe("derive", start)
		if err != nil {
			return nil, newError(KindUpstream, "derived asset generation failed", err)
		}
		temps = append(temps, generated)
		thumbnailPath = generated
	}

	// PrimaryBlobUpload
	start = time.Now()
	primary, derived, err := o.uploadBlobs(ctx, req.MediaPath, thumbnailPath)
	o.observe("upload", start)
	if err != nil {
		return nil, newError(KindUpstream, "blob upload failed", err)
	}

	item = models.NewContentItem(req.OwnerID, req.Title, req.Description, req.Kind, req.Published)
	item.PrimaryBlob = primary.Ref
	if derived != nil {
		ref := derived.Ref
		item.DerivedBlob = &ref
	}
	item.Fingerprint = &digest
	item.DurationSeconds = o.duration(ctx, primary, req.MediaPath)

	// RecordPersist
	start = time.Now()
	err = o.content.Create(ctx, o.db, item)
	o.observe("persist", start)
	if err != nil {
		o.janitor.discard(ctx, models.OrphanReasonCompensationFailed, item.Blobs()...)
		if db.IsDuplicateKey(err) && db.ViolatedConstraint(err) == repository.FingerprintConstraint {
			o.logger.Info("duplicate upload lost persist race", zap.String("fingerprint", digest))
			return nil, conflictExists(uuid.Nil)
		}
		return nil, newError(KindUpstream, "could not save content", err)
	}

	o.logger.Info("content uploaded",
		zap.String("content_id", item.ID.String()),
		zap.String("owner_id", item.OwnerID.String()),
		zap.String("kind", string(item.Kind)),
		zap.String("primary_blob", item.PrimaryBlob.ExternalID),
	)

	// FanoutScheduled
	if item.Published {
		o.scheduleFanout(ctx, item)
	}
	publishLifecycle(ctx, o.events, o.logger, EventContentUploaded, item)

	return item, nil
}

// uploadBlobs stores the primary file and, when present, the thumbnail in
// parallel. If either fails, whichever succeeded is deleted.
func (o *UploadOrchestrator) uploadBlobs(ctx context.Context, mediaPath, thumbnailPath string) (*storage.UploadResult, *storage.UploadResult, error) {
	var (
		g       errgroup.Group
		primary *storage.UploadResult
		derived *storage.UploadResult
	)

	g.Go(func() error {
		res, err := o.blobs.Upload(ctx, mediaPath, models.ResourceVideo)
		if err != nil {
			return fmt.Errorf("upload primary: %w", err)
		}
		primary = &res
		return nil
	})

	if thumbnailPath != "" {
		g.Go(func() error {
			res, err := o.blobs.Upload(ctx, thumbnailPath, models.ResourceImage)
			if err != nil {
				return fmt.Errorf("upload thumbnail: %w", err)
			}
			derived = &res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var uploaded []models.BlobRef
		if primary != nil {
			uploaded = append(uploaded, primary.Ref)
		}
		if derived != nil {
			uploaded = append(uploaded, derived.Ref)
		}
		o.janitor.discard(ctx, models.OrphanReasonCompensationFailed, uploaded...)
		return nil, nil, err
	}

	return primary, derived, nil
}

func (o *UploadOrchestrator) duration(ctx context.Context, primary *storage.UploadResult, mediaPath string) float64 {
	if primary.DurationSeconds != nil {
		return *primary.DurationSeconds
	}
	if o.prober == nil {
		return 0
	}

	seconds, err := o.prober.Probe(ctx, mediaPath)
	if err != nil {
		o.logger.Warn("could not probe duration", zap.Error(err), zap.String("path", mediaPath))
		return 0
	}
	return seconds
}

func (o *UploadOrchestrator) scheduleFanout(ctx context.Context, item *models.ContentItem) {
	event := fanout.Event{
		ActorID:      item.OwnerID,
		ContentID:    item.ID,
		ContentTitle: item.Title,
		Kind:         string(item.Kind),
	}
	if err := o.fanout.Schedule(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error("could not schedule fan-out", zap.Error(err), zap.String("content_id", item.ID.String()))
	}
}

func (o *UploadOrchestrator) removeTemp(paths []string) {
	removeFiles(o.logger, paths...)
}

func (o *UploadOrchestrator) observe(stage string, start time.Time) {
	o.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func validateUpload(req UploadRequest) error {
	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if req.MediaPath == "" {
		missing = append(missing, "media")
	}
	if len(missing) > 0 {
		e := newError(KindValidation, "missing required fields: "+strings.Join(missing, ", "), nil)
		e.Details = map[string]any{"missing": missing}
		return e
	}
	if !req.Kind.Valid() {
		return newError(KindValidation, fmt.Sprintf("invalid kind %q", req.Kind), nil)
	}
	if req.OwnerID == uuid.Nil {
		return newError(KindValidation, "owner is required", nil)
	}
	return nil
}

func conflictExists(existing uuid.UUID) *Error {
	e := newError(KindConflict, "content already exists", nil)
	if existing != uuid.Nil {
		e.Details = map[string]any{"existing_id": existing.String()}
	}
	return e
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
