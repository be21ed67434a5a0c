package models

import (
	"time"

	"github.com/google/uuid"
)

// Playlist is an ordered, user-owned collection of content items.
type Playlist struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Published   bool      `db:"published" json:"published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PlaylistItem is the membership of one content item in a playlist.
type PlaylistItem struct {
	PlaylistID uuid.UUID `db:"playlist_id" json:"playlist_id"`
	ContentID  uuid.UUID `db:"content_id" json:"content_id"`
	Position   int       `db:"position" json:"position"`
	AddedAt    time.Time `db:"added_at" json:"added_at"`
}
