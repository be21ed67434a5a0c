package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind distinguishes long-form videos from shorts.
type ContentKind string

const (
	KindVideo ContentKind = "video"
	KindShort ContentKind = "short"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k == KindVideo || k == KindShort
}

// NeedsThumbnail reports whether items of this kind carry a derived image.
func (k ContentKind) NeedsThumbnail() bool {
	return k == KindVideo
}

// ResourceKind is the blob store's classification of an asset.
type ResourceKind string

const (
	ResourceVideo ResourceKind = "video"
	ResourceImage ResourceKind = "image"
)

// BlobRef is an opaque reference to an object in the blob store. Several
// content items may share one BlobRef after a copy.
type BlobRef struct {
	Locator      string       `json:"locator"`
	ExternalID   string       `json:"external_id"`
	ResourceKind ResourceKind `json:"resource_kind"`
}

// ContentItem represents an uploaded media unit.
type ContentItem struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	OwnerID         uuid.UUID   `db:"owner_id" json:"owner_id"`
	Title           string      `db:"title" json:"title"`
	Description     string      `db:"description" json:"description"`
	Kind            ContentKind `db:"kind" json:"kind"`
	PrimaryBlob     BlobRef     `json:"primary_blob"`
	DerivedBlob     *BlobRef    `json:"derived_blob,omitempty"`
	Fingerprint     *string     `db:"fingerprint" json:"fingerprint,omitempty"`
	DurationSeconds float64     `db:"duration_seconds" json:"duration_seconds"`
	ViewCount       int64       `db:"view_count" json:"view_count"`
	Published       bool        `db:"published" json:"published"`
	AttachedAdIDs   []uuid.UUID `db:"attached_ad_ids" json:"attached_ad_ids"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// NewContentItem creates a ContentItem for a freshly uploaded asset.
func NewContentItem(ownerID uuid.UUID, title, description string, kind ContentKind, published bool) *ContentItem {
	now := time.Now()
	return &ContentItem{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Title:         title,
		Description:   description,
		Kind:          kind,
		Published:     published,
		AttachedAdIDs: []uuid.UUID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Copy returns a new item owned by ownerID that shares this item's blobs.
// The copy has no fingerprint so it does not collide with the original.
func (c *ContentItem) Copy(ownerID uuid.UUID) *ContentItem {
	cp := NewContentItem(ownerID, c.Title, c.Description, c.Kind, c.Published)
	cp.PrimaryBlob = c.PrimaryBlob
	if c.DerivedBlob != nil {
		derived := *c.DerivedBlob
		cp.DerivedBlob = &derived
	}
	cp.DurationSeconds = c.DurationSeconds
	return cp
}

// Blobs returns every blob this item references, primary first.
func (c *ContentItem) Blobs() []BlobRef {
	refs := []BlobRef{c.PrimaryBlob}
	if c.DerivedBlob != nil {
		refs = append(refs, *c.DerivedBlob)
	}
	return refs
}

// HasAd reports whether adID is attached to the item.
func (c *ContentItem) HasAd(adID uuid.UUID) bool {
	for _, id := range c.AttachedAdIDs {
		if id == adID {
			return true
		}
	}
	return false
}
