package models

import (
	"time"

	"github.com/google/uuid"
)

// Reasons a blob ended up orphaned.
const (
	OrphanReasonDeleteFailed       = "post_commit_delete_failed"
	OrphanReasonCompensationFailed = "compensation_failed"
	OrphanReasonReplaced           = "replaced_delete_failed"
)

// OrphanedBlob is a blob no record references whose delete has not succeeded yet.
type OrphanedBlob struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Blob          BlobRef    `json:"blob"`
	Reason        string     `db:"reason" json:"reason"`
	Attempts      int        `db:"attempts" json:"attempts"`
	LastError     *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
}
