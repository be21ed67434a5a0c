package repository

import (
	"context"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrphanedBlobRepository tracks blobs whose delete must be retried.
type OrphanedBlobRepository interface {
	// Record adds a blob to the retry list, or refreshes it if already listed.
	Record(ctx context.Context, q db.DBTX, ref models.BlobRef, reason, lastError string) error

	// ListPending returns up to limit entries with fewer than maxAttempts tries, oldest first.
	ListPending(ctx context.Context, q db.DBTX, maxAttempts, limit int) ([]*models.OrphanedBlob, error)

	// MarkAttempt records a failed retry.
	MarkAttempt(ctx context.Context, q db.DBTX, id uuid.UUID, lastError string) error

	// Delete removes an entry once its blob is gone.
	Delete(ctx context.Context, q db.DBTX, id uuid.UUID) error
}

type orphanedBlobRepository struct{}

// NewOrphanedBlobRepository creates a new OrphanedBlobRepository.
func NewOrphanedBlobRepository() OrphanedBlobRepository {
	return &orphanedBlobRepository{}
}

func (r *orphanedBlobRepository) Record(ctx context.Context, q db.DBTX, ref models.BlobRef, reason, lastError string) error {
	query := `
		INSERT INTO orphaned_blobs (external_id, resource_kind, locator, reason, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO UPDATE
		SET reason = EXCLUDED.reason,
		    last_error = EXCLUDED.last_error
	`

	_, err := q.Exec(ctx, query, ref.ExternalID, string(ref.ResourceKind), ref.Locator, reason, lastError)
	if err != nil {
		return db.WrapError(err, "record orphaned blob")
	}
	return nil
}

func (r *orphanedBlobRepository) ListPending(ctx context.Context, q db.DBTX, maxAttempts, limit int) ([]*models.OrphanedBlob, error) {
	query := `
		SELECT id, external_id, resource_kind, locator, reason, attempts, last_error, created_at, last_attempt_at
		FROM orphaned_blobs
		WHERE attempts < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, db.WrapError(err, "list orphaned blobs")
	}
	defer rows.Close()

	return scanOrphanedBlobs(rows)
}

func (r *orphanedBlobRepository) MarkAttempt(ctx context.Context, q db.DBTX, id uuid.UUID, lastError string) error {
	query := `
		UPDATE orphaned_blobs
		SET attempts = attempts + 1, last_error = $2, last_attempt_at = NOW()
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query, id, lastError)
	if err != nil {
		return db.WrapError(err, "mark orphaned blob attempt")
	}
	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "mark orphaned blob attempt")
	}
	return nil
}

func (r *orphanedBlobRepository) Delete(ctx context.Context, q db.DBTX, id uuid.UUID) error {
	result, err := q.Exec(ctx, `DELETE FROM orphaned_blobs WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete orphaned blob")
	}
	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete orphaned blob")
	}
	return nil
}

func scanOrphanedBlobs(rows pgx.Rows) ([]*models.OrphanedBlob, error) {
	var orphans []*models.OrphanedBlob

	for rows.Next() {
		o := &models.OrphanedBlob{}
		var kind string
		err := rows.Scan(
			&o.ID,
			&o.Blob.ExternalID,
			&kind,
			&o.Blob.Locator,
			&o.Reason,
			&o.Attempts,
			&o.LastError,
			&o.CreatedAt,
			&o.LastAttemptAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan orphaned blob: %w", err)
		}
		o.Blob.ResourceKind = models.ResourceKind(kind)
		orphans = append(orphans, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphaned blobs: %w", err)
	}

	return orphans, nil
}
