package repository

import (
	"context"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CommentRepository defines operations for managing comments and reply threads.
type CommentRepository interface {
	// Create inserts a new comment or reply.
	Create(ctx context.Context, q db.DBTX, comment *models.Comment) error

	// GetByID retrieves a single comment.
	GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.Comment, error)

	// ListIDsByContent returns the ids of every comment attached to a content item.
	ListIDsByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) ([]uuid.UUID, error)

	// ListChildIDs returns the ids of direct replies to any of the given comments.
	ListChildIDs(ctx context.Context, q db.DBTX, parentIDs []uuid.UUID) ([]uuid.UUID, error)

	// DeleteByIDs removes the given comments and returns how many were removed.
	DeleteByIDs(ctx context.Context, q db.DBTX, ids []uuid.UUID) (int64, error)
}

type commentRepository struct{}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository() CommentRepository {
	return &commentRepository{}
}

func (r *commentRepository) Create(ctx context.Context, q db.DBTX, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, content_id, parent_id, owner_id, body, is_edited, last_edited_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		comment.ID,
		comment.ContentID,
		comment.ParentID,
		comment.OwnerID,
		comment.Body,
		comment.IsEdited,
		comment.LastEditedAt,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "create comment")
	}

	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, q db.DBTX, id uuid.UUID) (*models.Comment, error) {
	query := `
		SELECT id, content_id, parent_id, owner_id, body, is_edited, last_edited_at, created_at, updated_at
		FROM comments
		WHERE id = $1
	`

	comment := &models.Comment{}
	err := q.QueryRow(ctx, query, id).Scan(
		&comment.ID,
		&comment.ContentID,
		&comment.ParentID,
		&comment.OwnerID,
		&comment.Body,
		&comment.IsEdited,
		&comment.LastEditedAt,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		return nil, db.WrapError(err, "get comment by id")
	}

	return comment, nil
}

func (r *commentRepository) ListIDsByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT id FROM comments WHERE content_id = $1`, contentID)
	if err != nil {
		return nil, db.WrapError(err, "list comments by content")
	}
	defer rows.Close()

	return scanIDs(rows)
}

func (r *commentRepository) ListChildIDs(ctx context.Context, q db.DBTX, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	rows, err := q.Query(ctx, `SELECT id FROM comments WHERE parent_id = ANY($1)`, parentIDs)
	if err != nil {
		return nil, db.WrapError(err, "list comment replies")
	}
	defer rows.Close()

	return scanIDs(rows)
}

func (r *commentRepository) DeleteByIDs(ctx context.Context, q db.DBTX, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := q.Exec(ctx, `DELETE FROM comments WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, db.WrapError(err, "delete comments")
	}
	return result.RowsAffected(), nil
}

// Helper function to scan a single uuid column from query results
func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}

	return ids, nil
}
