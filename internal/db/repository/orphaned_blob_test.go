package repository

import (
	"context"
	"testing"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphanedBlobRepository(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewOrphanedBlobRepository()
	ctx := context.Background()
	td.TruncateTables(t)

	ref := models.BlobRef{Locator: "http://blobs.local/videos/a.mp4", ExternalID: "videos/a.mp4", ResourceKind: models.ResourceVideo}

	require.NoError(t, repo.Record(ctx, td.Pool, ref, models.OrphanReasonDeleteFailed, "timeout"))
	// Recording the same blob again refreshes the entry.
	require.NoError(t, repo.Record(ctx, td.Pool, ref, models.OrphanReasonCompensationFailed, "refused"))

	pending, err := repo.ListPending(ctx, td.Pool, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ref, pending[0].Blob)
	assert.Equal(t, models.OrphanReasonCompensationFailed, pending[0].Reason)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkAttempt(ctx, td.Pool, pending[0].ID, "still failing"))
	}

	exhausted, err := repo.ListPending(ctx, td.Pool, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, exhausted)

	require.NoError(t, repo.Delete(ctx, td.Pool, pending[0].ID))
	assert.True(t, db.IsNotFound(repo.Delete(ctx, td.Pool, pending[0].ID)))
}
