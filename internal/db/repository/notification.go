package repository

import (
	"context"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// NotificationRepository defines operations for managing notifications.
type NotificationRepository interface {
	// CreateBatch inserts all notifications in a single COPY statement.
	CreateBatch(ctx context.Context, q db.DBTX, notifications []*models.Notification) (int64, error)

	// ListByRecipient retrieves the newest notifications for a recipient.
	ListByRecipient(ctx context.Context, q db.DBTX, recipientID uuid.UUID, limit int) ([]*models.Notification, error)

	// DeleteByContent removes all notifications referencing a content item.
	DeleteByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error)

	// DeleteByComments removes all notifications referencing any of the given comments.
	DeleteByComments(ctx context.Context, q db.DBTX, commentIDs []uuid.UUID) (int64, error)
}

type notificationRepository struct{}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

var notificationCopyColumns = []string{
	"id", "recipient_id", "sender_id", "message", "type",
	"content_id", "comment_id", "is_read", "is_hidden", "created_at",
}

func (r *notificationRepository) CreateBatch(ctx context.Context, q db.DBTX, notifications []*models.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	n, err := q.CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		notificationCopyColumns,
		pgx.CopyFromSlice(len(notifications), func(i int) ([]any, error) {
			n := notifications[i]
			return []any{
				n.ID,
				n.RecipientID,
				n.SenderID,
				n.Message,
				string(n.Type),
				n.ContentID,
				n.CommentID,
				n.IsRead,
				n.IsHidden,
				n.CreatedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, db.WrapError(err, "bulk insert notifications")
	}

	return n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, q db.DBTX, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, sender_id, message, type, content_id, comment_id, is_read, is_hidden, created_at
		FROM notifications
		WHERE recipient_id = $1 AND NOT is_hidden
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, db.WrapError(err, "list notifications by recipient")
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *notificationRepository) DeleteByContent(ctx context.Context, q db.DBTX, contentID uuid.UUID) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM notifications WHERE content_id = $1`, contentID)
	if err != nil {
		return 0, db.WrapError(err, "delete notifications by content")
	}
	return result.RowsAffected(), nil
}

func (r *notificationRepository) DeleteByComments(ctx context.Context, q db.DBTX, commentIDs []uuid.UUID) (int64, error) {
	if len(commentIDs) == 0 {
		return 0, nil
	}

	result, err := q.Exec(ctx, `DELETE FROM notifications WHERE comment_id = ANY($1)`, commentIDs)
	if err != nil {
		return 0, db.WrapError(err, "delete notifications by comments")
	}
	return result.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]*models.Notification, error) {
	var notifications []*models.Notification

	for rows.Next() {
		n := &models.Notification{}
		var typ string
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SenderID,
			&n.Message,
			&typ,
			&n.ContentID,
			&n.CommentID,
			&n.IsRead,
			&n.IsHidden,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = models.NotificationType(typ)
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}
