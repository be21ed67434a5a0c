package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a node in a reply thread. Threads are stored flat: a reply
// points at its parent and the parent keeps no list of children.
type Comment struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ContentID    *uuid.UUID `db:"content_id" json:"content_id,omitempty"`
	ParentID     *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	OwnerID      uuid.UUID  `db:"owner_id" json:"owner_id"`
	Body         string     `db:"body" json:"body"`
	IsEdited     bool       `db:"is_edited" json:"is_edited"`
	LastEditedAt *time.Time `db:"last_edited_at" json:"last_edited_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// NewComment creates a top-level comment on a content item.
func NewComment(contentID, ownerID uuid.UUID, body string) *Comment {
	now := time.Now()
	return &Comment{
		ID:        uuid.New(),
		ContentID: &contentID,
		OwnerID:   ownerID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reply creates a comment answering c. The reply inherits c's content item.
func (c *Comment) Reply(ownerID uuid.UUID, body string) *Comment {
	now := time.Now()
	parentID := c.ID
	reply := &Comment{
		ID:        uuid.New(),
		ParentID:  &parentID,
		OwnerID:   ownerID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.ContentID != nil {
		contentID := *c.ContentID
		reply.ContentID = &contentID
	}
	return reply
}
