package repository

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
)

// PlaylistRepository defines operations for managing playlists and their items.
type PlaylistRepository interface {
	// Create inserts a new playlist.
	Create(ctx context.Context, q db.DBTX, playlist *models.Playlist) error

	// AddItem appends a content item to a playlist.
	AddItem(ctx context.Context, q db.DBTX, item *models.PlaylistItem) error

	// DeleteItemsByContent removes a content item from every playlist.
	DeleteItemsByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error)
}

type playlistRepository struct{}

// NewPlaylistRepository creates a new PlaylistRepository.
func NewPlaylistRepository() PlaylistRepository {
	return &playlistRepository{}
}

func (r *playlistRepository) Create(ctx context.Context, q db.DBTX, playlist *models.Playlist) error {
	query := `
		INSERT INTO playlists (id, owner_id, name, description, published)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	if playlist.ID == uuid.Nil {
		playlist.ID = uuid.New()
	}
	err := q.QueryRow(ctx, query,
		playlist.ID,
		playlist.OwnerID,
		playlist.Name,
		playlist.Description,
		playlist.Published,
	).Scan(&playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "create playlist")
	}
	return nil
}

func (r *playlistRepository) AddItem(ctx context.Context, q db.DBTX, item *models.PlaylistItem) error {
	query := `
		INSERT INTO playlist_items (playlist_id, content_id, position)
		VALUES ($1, $2, COALESCE((SELECT MAX(position) + 1 FROM playlist_items WHERE playlist_id = $1), 0))
		RETURNING position, added_at
	`

	err := q.QueryRow(ctx, query, item.PlaylistID, item.ContentID).Scan(&item.Position, &item.AddedAt)
	if err != nil {
		return db.WrapError(err, "add playlist item")
	}
	return nil
}

func (r *playlistRepository) DeleteItemsByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM playlist_items WHERE content_id = $1`, contentID)
	if err != nil {
		return 0, db.WrapError(err, "delete playlist items by content")
	}
	return result.RowsAffected(), nil
}
