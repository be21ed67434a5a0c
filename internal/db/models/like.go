package models

import (
	"time"

	"github.com/google/uuid"
)

// Like records a user liking either a content item or a comment.
type Like struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ContentID *uuid.UUID `db:"content_id" json:"content_id,omitempty"`
	CommentID *uuid.UUID `db:"comment_id" json:"comment_id,omitempty"`
	LikedBy   uuid.UUID  `db:"liked_by" json:"liked_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
