package repository

import (
	"context"
	"slices"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContentRepository defines operations for managing content items. Every
// method runs against the supplied unit of work.
type ContentRepository interface {
	// Create inserts a new content item. A second item with the same
	// fingerprint fails with db.ErrDuplicateKey.
	Create(ctx context.Context, q db.DBTX, item *models.ContentItem) error

	// GetByID retrieves a single content item.
	GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error)

	// GetByIDForUpdate retrieves a content item and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error)

	// GetByFingerprint retrieves the live item holding the given digest.
	GetByFingerprint(ctx context.Context, q db.DBTX, fingerprint string) (*models.ContentItem, error)

	// Delete removes a content item and returns the removed row.
	Delete(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error)

	// LockBlobs takes a transaction-scoped lock on each external id. Every
	// transaction that adds or drops a reference to a shared blob takes it
	// before counting, so two of them never decide on stale counts.
	LockBlobs(ctx context.Context, q db.DBTX, externalIDs ...string) error

	// CountBlobReferences counts items still referencing the blob as either
	// their primary or derived asset.
	CountBlobReferences(ctx context.Context, q db.DBTX, externalID string) (int64, error)

	// IncrementViews adds one to the view counter and returns the new value.
	IncrementViews(ctx context.Context, q db.DBTX, id uuid.UUID) (int64, error)

	// UpdateDetails persists title, description, publish flag and derived blob.
	UpdateDetails(ctx context.Context, q db.DBTX, item *models.ContentItem) error

	// SetAttachedAds replaces the attached ad list.
	SetAttachedAds(ctx context.Context, q db.DBTX, id uuid.UUID, adIDs []uuid.UUID) error
}

type contentRepository struct{}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository() ContentRepository {
	return &contentRepository{}
}

const contentColumns = `id, owner_id, title, description, kind,
	primary_blob_locator, primary_blob_external_id, primary_blob_resource_kind,
	derived_blob_locator, derived_blob_external_id, derived_blob_resource_kind,
	fingerprint, duration_seconds, view_count, published, attached_ad_ids,
	created_at, updated_at`

func (r *contentRepository) Create(ctx context.Context, q db.DBTX, item *models.ContentItem) error {
	query := `
		INSERT INTO content_items (
			id, owner_id, title, description, kind,
			primary_blob_locator, primary_blob_external_id, primary_blob_resource_kind,
			derived_blob_locator, derived_blob_external_id, derived_blob_resource_kind,
			fingerprint, duration_seconds, view_count, published, attached_ad_ids,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	if item.AttachedAdIDs == nil {
		item.AttachedAdIDs = []uuid.UUID{}
	}
	locator, externalID, resourceKind := derivedColumns(item.DerivedBlob)

	err := q.QueryRow(ctx, query,
		item.ID,
		item.OwnerID,
		item.Title,
		item.Description,
		item.Kind,
		item.PrimaryBlob.Locator,
		item.PrimaryBlob.ExternalID,
		item.PrimaryBlob.ResourceKind,
		locator,
		externalID,
		resourceKind,
		item.Fingerprint,
		item.DurationSeconds,
		item.ViewCount,
		item.Published,
		item.AttachedAdIDs,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "create content item")
	}

	return nil
}

func (r *contentRepository) GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`

	item, err := scanContentItem(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get content item by id")
	}
	return item, nil
}

func (r *contentRepository) GetByIDForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1 FOR UPDATE`

	item, err := scanContentItem(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "lock content item")
	}
	return item, nil
}

func (r *contentRepository) GetByFingerprint(ctx context.Context, q db.DBTX, fingerprint string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE fingerprint = $1`

	item, err := scanContentItem(q.QueryRow(ctx, query, fingerprint))
	if err != nil {
		return nil, db.WrapError(err, "get content item by fingerprint")
	}
	return item, nil
}

func (r *contentRepository) Delete(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	query := `DELETE FROM content_items WHERE id = $1 RETURNING ` + contentColumns

	item, err := scanContentItem(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "delete content item")
	}
	return item, nil
}

func (r *contentRepository) LockBlobs(ctx context.Context, q db.DBTX, externalIDs ...string) error {
	ids := slices.Clone(externalIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	// Sorted so concurrent callers acquire in the same order.
	for _, id := range ids {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
			return db.WrapError(err, "lock blob")
		}
	}
	return nil
}

func (r *contentRepository) CountBlobReferences(ctx context.Context, q db.DBTX, externalID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM content_items
		WHERE primary_blob_external_id = $1 OR derived_blob_external_id = $1
	`

	var count int64
	if err := q.QueryRow(ctx, query, externalID).Scan(&count); err != nil {
		return 0, db.WrapError(err, "count blob references")
	}
	return count, nil
}

func (r *contentRepository) IncrementViews(ctx context.Context, q db.DBTX, id uuid.UUID) (int64, error) {
	query := `
		UPDATE content_items
		SET view_count = view_count + 1
		WHERE id = $1
		RETURNING view_count
	`

	var views int64
	if err := q.QueryRow(ctx, query, id).Scan(&views); err != nil {
		return 0, db.WrapError(err, "increment view count")
	}
	return views, nil
}

func (r *contentRepository) UpdateDetails(ctx context.Context, q db.DBTX, item *models.ContentItem) error {
	query := `
		UPDATE content_items
		SET title = $2,
		    description = $3,
		    published = $4,
		    derived_blob_locator = $5,
		    derived_blob_external_id = $6,
		    derived_blob_resource_kind = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	locator, externalID, resourceKind := derivedColumns(item.DerivedBlob)
	err := q.QueryRow(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.Published,
		locator,
		externalID,
		resourceKind,
	).Scan(&item.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "update content item")
	}
	return nil
}

func (r *contentRepository) SetAttachedAds(ctx context.Context, q db.DBTX, id uuid.UUID, adIDs []uuid.UUID) error {
	query := `
		UPDATE content_items
		SET attached_ad_ids = $2, updated_at = NOW()
		WHERE id = $1
	`

	if adIDs == nil {
		adIDs = []uuid.UUID{}
	}
	result, err := q.Exec(ctx, query, id, adIDs)
	if err != nil {
		return db.WrapError(err, "set attached ads")
	}
	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "set attached ads")
	}
	return nil
}

func derivedColumns(ref *models.BlobRef) (locator, externalID, resourceKind *string) {
	if ref == nil {
		return nil, nil, nil
	}
	kind := string(ref.ResourceKind)
	return &ref.Locator, &ref.ExternalID, &kind
}

func scanContentItem(row pgx.Row) (*models.ContentItem, error) {
	item := &models.ContentItem{}
	var (
		primaryKind                            string
		derivedLocator, derivedID, derivedKind *string
	)

	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&item.Description,
		&item.Kind,
		&item.PrimaryBlob.Locator,
		&item.PrimaryBlob.ExternalID,
		&primaryKind,
		&derivedLocator,
		&derivedID,
		&derivedKind,
		&item.Fingerprint,
		&item.DurationSeconds,
		&item.ViewCount,
		&item.Published,
		&item.AttachedAdIDs,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.PrimaryBlob.ResourceKind = models.ResourceKind(primaryKind)
	if derivedID != nil {
		item.DerivedBlob = &models.BlobRef{ExternalID: *derivedID}
		if derivedLocator != nil {
			item.DerivedBlob.Locator = *derivedLocator
		}
		if derivedKind != nil {
			item.DerivedBlob.ResourceKind = models.ResourceKind(*derivedKind)
		}
	}
	if item.AttachedAdIDs == nil {
		item.AttachedAdIDs = []uuid.UUID{}
	}

	return item, nil
}

