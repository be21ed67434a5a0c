package repository

import (
	"context"
	"testing"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(fingerprint string) *models.ContentItem {
	item := models.NewContentItem(uuid.New(), "Test Video", "A description", models.KindVideo, true)
	item.PrimaryBlob = models.BlobRef{
		Locator:      "http://blobs.local/videos/" + item.ID.String() + ".mp4",
		ExternalID:   "videos/" + item.ID.String() + ".mp4",
		ResourceKind: models.ResourceVideo,
	}
	item.DerivedBlob = &models.BlobRef{
		Locator:      "http://blobs.local/images/" + item.ID.String() + ".jpg",
		ExternalID:   "images/" + item.ID.String() + ".jpg",
		ResourceKind: models.ResourceImage,
	}
	item.DurationSeconds = 12.5
	if fingerprint != "" {
		item.Fingerprint = &fingerprint
	}
	return item
}

func TestContentRepository_CreateAndGet(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewContentRepository()
	ctx := context.Background()

	t.Run("round trips blob references", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("abc123")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		got, err := repo.GetByID(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.PrimaryBlob, got.PrimaryBlob)
		require.NotNil(t, got.DerivedBlob)
		assert.Equal(t, *item.DerivedBlob, *got.DerivedBlob)
		assert.Equal(t, "abc123", *got.Fingerprint)
		assert.Equal(t, models.KindVideo, got.Kind)
		assert.Empty(t, got.AttachedAdIDs)
	})

	t.Run("short without derived blob", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("short-digest")
		item.Kind = models.KindShort
		item.DerivedBlob = nil
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		got, err := repo.GetByID(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got.DerivedBlob)
	})

	t.Run("lookup by fingerprint", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("lookup-digest")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		got, err := repo.GetByFingerprint(ctx, td.Pool, "lookup-digest")
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)

		_, err = repo.GetByFingerprint(ctx, td.Pool, "missing")
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("not found", func(t *testing.T) {
		td.TruncateTables(t)

		_, err := repo.GetByID(ctx, td.Pool, uuid.New())
		assert.True(t, db.IsNotFound(err))
	})
}

func TestContentRepository_FingerprintUniqueness(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewContentRepository()
	ctx := context.Background()

	t.Run("second item with same fingerprint is rejected", func(t *testing.T) {
		td.TruncateTables(t)

		require.NoError(t, repo.Create(ctx, td.Pool, newTestItem("same")))

		err := repo.Create(ctx, td.Pool, newTestItem("same"))
		require.Error(t, err)
		assert.True(t, db.IsDuplicateKey(err))
		assert.Equal(t, FingerprintConstraint, db.ViolatedConstraint(err))
	})

	t.Run("items without fingerprint never collide", func(t *testing.T) {
		td.TruncateTables(t)

		original := newTestItem("original")
		require.NoError(t, repo.Create(ctx, td.Pool, original))

		for i := 0; i < 2; i++ {
			require.NoError(t, repo.Create(ctx, td.Pool, original.Copy(uuid.New())))
		}
		assert.Equal(t, int64(3), td.CountRows(t, "content_items", "primary_blob_external_id = $1", original.PrimaryBlob.ExternalID))
	})
}

func TestContentRepository_CountBlobReferences(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewContentRepository()
	ctx := context.Background()
	td.TruncateTables(t)

	original := newTestItem("refcount")
	require.NoError(t, repo.Create(ctx, td.Pool, original))
	cp := original.Copy(uuid.New())
	require.NoError(t, repo.Create(ctx, td.Pool, cp))

	count, err := repo.CountBlobReferences(ctx, td.Pool, original.PrimaryBlob.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountBlobReferences(ctx, td.Pool, original.DerivedBlob.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = repo.Delete(ctx, td.Pool, cp.ID)
	require.NoError(t, err)

	count, err = repo.CountBlobReferences(ctx, td.Pool, original.PrimaryBlob.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestContentRepository_Delete(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewContentRepository()
	ctx := context.Background()

	t.Run("returns deleted row", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("to-delete")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		deleted, err := repo.Delete(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.PrimaryBlob, deleted.PrimaryBlob)

		_, err = repo.GetByID(ctx, td.Pool, item.ID)
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("missing item", func(t *testing.T) {
		td.TruncateTables(t)

		_, err := repo.Delete(ctx, td.Pool, uuid.New())
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("dependents left behind fail the commit", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("with-comment")
		require.NoError(t, repo.Create(ctx, td.Pool, item))
		require.NoError(t, NewCommentRepository().Create(ctx, td.Pool, models.NewComment(item.ID, uuid.New(), "hi")))

		err := db.NewTxManager(td.Pool).WithinTx(ctx, func(tx db.DBTX) error {
			_, err := repo.Delete(ctx, tx, item.ID)
			return err
		})
		require.Error(t, err)
		assert.True(t, db.IsForeignKeyViolation(err))

		_, err = repo.GetByID(ctx, td.Pool, item.ID)
		assert.NoError(t, err)
	})
}

func TestContentRepository_Mutations(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewContentRepository()
	ctx := context.Background()

	t.Run("increment views", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("views")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		views, err := repo.IncrementViews(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), views)

		views, err = repo.IncrementViews(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), views)

		_, err = repo.IncrementViews(ctx, td.Pool, uuid.New())
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("set attached ads", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("ads")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		ads := []uuid.UUID{uuid.New(), uuid.New()}
		require.NoError(t, repo.SetAttachedAds(ctx, td.Pool, item.ID, ads))

		got, err := repo.GetByID(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, ads, got.AttachedAdIDs)

		err = repo.SetAttachedAds(ctx, td.Pool, uuid.New(), ads)
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("update details clears derived blob", func(t *testing.T) {
		td.TruncateTables(t)

		item := newTestItem("details")
		require.NoError(t, repo.Create(ctx, td.Pool, item))

		item.Title = "New Title"
		item.Published = false
		item.DerivedBlob = nil
		require.NoError(t, repo.UpdateDetails(ctx, td.Pool, item))

		got, err := repo.GetByID(ctx, td.Pool, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "New Title", got.Title)
		assert.False(t, got.Published)
		assert.Nil(t, got.DerivedBlob)
	})
}

func TestContentRepository_PublishedDefaultsToFalse(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	ctx := context.Background()
	id := uuid.New()
	_, err := td.Pool.Exec(ctx, `
		INSERT INTO content_items (id, owner_id, title, description, kind,
			primary_blob_locator, primary_blob_external_id, primary_blob_resource_kind)
		VALUES ($1, $2, 'Draft', '', 'video', 'http://blobs.local/videos/draft.mp4', 'videos/draft.mp4', 'video')
	`, id, uuid.New())
	require.NoError(t, err)

	item, err := NewContentRepository().GetByID(ctx, td.Pool, id)
	require.NoError(t, err)
	assert.False(t, item.Published)
}
