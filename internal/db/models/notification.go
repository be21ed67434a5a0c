package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the events a user can be notified about.
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationUnlike      NotificationType = "unlike"
	NotificationComment     NotificationType = "comment"
	NotificationSubscribe   NotificationType = "subscribe"
	NotificationTweet       NotificationType = "tweet"
	NotificationUpload      NotificationType = "upload"
	NotificationUnsubscribe NotificationType = "unsubscribe"
	NotificationReply       NotificationType = "reply"
)

// Notification is a message delivered to a single recipient.
type Notification struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	RecipientID uuid.UUID        `db:"recipient_id" json:"recipient_id"`
	SenderID    *uuid.UUID       `db:"sender_id" json:"sender_id,omitempty"`
	Message     string           `db:"message" json:"message"`
	Type        NotificationType `db:"type" json:"type"`
	ContentID   *uuid.UUID       `db:"content_id" json:"content_id,omitempty"`
	CommentID   *uuid.UUID       `db:"comment_id" json:"comment_id,omitempty"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	IsHidden    bool             `db:"is_hidden" json:"is_hidden"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NewNotification creates an unread notification.
func NewNotification(recipientID uuid.UUID, senderID *uuid.UUID, typ NotificationType, message string) *Notification {
	return &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Message:     message,
		Type:        typ,
		CreatedAt:   time.Now(),
	}
}
