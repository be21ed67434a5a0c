package service

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/metrics"

	"go.uber.org/zap"
)

// blobJanitor deletes blobs that no record should point at. A delete that
// fails is written to the orphan table for the sweeper to retry.
type blobJanitor struct {
	db      db.DBTX
	blobs   BlobStore
	orphans repository.OrphanedBlobRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// discard deletes each ref and reports whether all deletes succeeded. It
// ignores cancellation of ctx so cleanup finishes even if the caller left.
func (j *blobJanitor) discard(ctx context.Context, reason string, refs ...models.BlobRef) bool {
	ctx = context.WithoutCancel(ctx)
	ok := true

	for _, ref := range refs {
		err := j.blobs.Delete(ctx, ref)
		if err == nil {
			j.count(reason, "deleted")
			continue
		}

		ok = false
		j.count(reason, "failed")
		j.logger.Error("blob delete failed",
			zap.Error(err),
			zap.String("reason", reason),
			zap.String("external_id", ref.ExternalID),
			zap.String("resource_kind", string(ref.ResourceKind)),
		)

		if recErr := j.orphans.Record(ctx, j.db, ref, reason, err.Error()); recErr != nil {
			j.logger.Error("could not record orphaned blob",
				zap.Error(recErr),
				zap.String("external_id", ref.ExternalID),
			)
		}
	}

	return ok
}

func (j *blobJanitor) count(reason, result string) {
	if reason == models.OrphanReasonDeleteFailed {
		if result == "failed" {
			j.metrics.BlobDeleteFailures.Inc()
		}
		return
	}
	j.metrics.Compensations.WithLabelValues(result).Inc()
}
