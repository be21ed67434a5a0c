package service

import (
	"context"
	"strings"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewCommentRequest is a comment on a content item or a reply to another
// comment. Exactly one of ContentID and ParentID is set.
type NewCommentRequest struct {
	ContentID *uuid.UUID
	ParentID  *uuid.UUID
	OwnerID   uuid.UUID
	Body      string
}

// CommentService manages comment threads.
type CommentService struct {
	tx     db.TxRunner
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(tx db.TxRunner, repos *repository.Repositories, logger *zap.Logger) *CommentService {
	return &CommentService{tx: tx, repos: repos, logger: logger.Named("comments")}
}

// Create stores a comment and notifies the owner of what it answers.
func (s *CommentService) Create(ctx context.Context, req NewCommentRequest) (*models.Comment, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, newError(KindValidation, "comment body is required", nil)
	}
	if (req.ContentID == nil) == (req.ParentID == nil) {
		return nil, newError(KindValidation, "exactly one of content_id and parent_id is required", nil)
	}

	var comment *models.Comment
	err := s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		var (
			recipient uuid.UUID
			typ       models.NotificationType
			message   string
		)

		if req.ParentID != nil {
			parent, err := s.repos.Comments.GetByID(ctx, tx, *req.ParentID)
			if err != nil {
				return lookupError("parent comment", err)
			}
			comment = parent.Reply(req.OwnerID, body)
			recipient, typ, message = parent.OwnerID, models.NotificationReply, "Someone replied to your comment"
		} else {
			item, err := s.repos.Content.GetByID(ctx, tx, *req.ContentID)
			if err != nil {
				return lookupError("content", err)
			}
			comment = models.NewComment(item.ID, req.OwnerID, body)
			recipient, typ, message = item.OwnerID, models.NotificationComment, "New comment on "+item.Title
		}

		if err := s.repos.Comments.Create(ctx, tx, comment); err != nil {
			return err
		}

		if recipient == req.OwnerID {
			return nil
		}
		sender := req.OwnerID
		commentID := comment.ID
		n := models.NewNotification(recipient, &sender, typ, message)
		n.ContentID = comment.ContentID
		n.CommentID = &commentID
		_, err := s.repos.Notifications.CreateBatch(ctx, tx, []*models.Notification{n})
		return err
	})
	if err != nil {
		return nil, commentTxError(err, "could not create comment")
	}

	return comment, nil
}

// DeleteThread removes a comment with every reply beneath it and returns
// how many comments were removed.
func (s *CommentService) DeleteThread(ctx context.Context, id uuid.UUID) (int, error) {
	var removed int
	err := s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		if _, err := s.repos.Comments.GetByID(ctx, tx, id); err != nil {
			return lookupError("comment", err)
		}

		thread, err := collectThread(ctx, tx, s.repos.Comments, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if err := deleteCommentSet(ctx, tx, s.repos, thread); err != nil {
			return err
		}
		removed = len(thread)
		return nil
	})
	if err != nil {
		return 0, commentTxError(err, "could not delete comment thread")
	}

	s.logger.Info("comment thread deleted", zap.String("comment_id", id.String()), zap.Int("comments", removed))
	return removed, nil
}

func lookupError(what string, err error) error {
	if db.IsNotFound(err) {
		return newError(KindNotFound, what+" not found", err)
	}
	return err
}

// commentTxError classifies a failed comment transaction. A foreign key
// failure at commit means the target was deleted concurrently.
func commentTxError(err error, message string) error {
	switch {
	case KindOf(err) != "":
		return err
	case db.IsForeignKeyViolation(err):
		return newError(KindNotFound, "comment target no longer exists", err)
	default:
		return newError(KindTransactionAborted, message, err)
	}
}
