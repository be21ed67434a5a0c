// Package models contains the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    int            `json:"status"`
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Path      string         `json:"path"`
}

// AdsRequest is the body of the ad attach and detach endpoints.
type AdsRequest struct {
	Ads []string `json:"ads" binding:"required"`
}

// CommentRequest is the body of the create comment endpoint. Exactly one of
// ContentID and ParentID is set.
type CommentRequest struct {
	ContentID *string `json:"content_id"`
	ParentID  *string `json:"parent_id"`
	Body      string  `json:"body" binding:"required"`
}

// ViewsResponse is returned after a view is counted.
type ViewsResponse struct {
	ID        uuid.UUID `json:"id"`
	ViewCount int64     `json:"view_count"`
}

// DeleteThreadResponse reports how many comments a thread delete removed.
type DeleteThreadResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted int       `json:"deleted"`
}

// SubscriptionResponse reports the state after a toggle.
type SubscriptionResponse struct {
	ChannelID  uuid.UUID `json:"channel_id"`
	Subscribed bool      `json:"subscribed"`
}
