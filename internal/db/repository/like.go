package repository

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
)

// LikeRepository defines operations for managing likes.
type LikeRepository interface {
	// Create records a like.
	Create(ctx context.Context, q db.DBTX, like *models.Like) error

	// DeleteByContent removes all likes on a content item.
	DeleteByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error)

	// DeleteByComments removes all likes on any of the given comments.
	DeleteByComments(ctx context.Context, q db.DBTX, commentIDs []uuid.UUID) (int64, error)
}

type likeRepository struct{}

// NewLikeRepository creates a new LikeRepository.
func NewLikeRepository() LikeRepository {
	return &likeRepository{}
}

func (r *likeRepository) Create(ctx context.Context, q db.DBTX, like *models.Like) error {
	query := `
		INSERT INTO likes (id, content_id, comment_id, liked_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if like.ID == uuid.Nil {
		like.ID = uuid.New()
	}
	err := q.QueryRow(ctx, query, like.ID, like.ContentID, like.CommentID, like.LikedBy).Scan(&like.CreatedAt)
	if err != nil {
		return db.WrapError(err, "create like")
	}
	return nil
}

func (r *likeRepository) DeleteByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM likes WHERE content_id = $1`, contentID)
	if err != nil {
		return 0, db.WrapError(err, "delete likes by content")
	}
	return result.RowsAffected(), nil
}

func (r *likeRepository) DeleteByComments(ctx context.Context, q db.DBTX, commentIDs []uuid.UUID) (int64, error) {
	if len(commentIDs) == 0 {
		return 0, nil
	}

	result, err := q.Exec(ctx, `DELETE FROM likes WHERE comment_id = ANY($1)`, commentIDs)
	if err != nil {
		return 0, db.WrapError(err, "delete likes by comments")
	}
	return result.RowsAffected(), nil
}
