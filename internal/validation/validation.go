// Package validation parses and checks request input before it reaches the
// orchestrators.
package validation

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// FieldError reports a malformed request field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validator checks uploaded files against the configured limits.
type Validator struct {
	maxUploadSize int64
}

// New returns a Validator. maxUploadSize <= 0 disables the size check.
func New(maxUploadSize int64) *Validator {
	return &Validator{maxUploadSize: maxUploadSize}
}

// CheckFile rejects an uploaded part that is empty or larger than the limit.
func (v *Validator) CheckFile(field string, fh *multipart.FileHeader) error {
	if fh.Size == 0 {
		return &FieldError{Field: field, Reason: "file is empty"}
	}
	if v.maxUploadSize > 0 && fh.Size > v.maxUploadSize {
		return &FieldError{Field: field, Reason: fmt.Sprintf("file exceeds %d bytes", v.maxUploadSize)}
	}
	return nil
}

// CheckMediaType sniffs the file at path and requires it to match kind.
func (v *Validator) CheckMediaType(field, path string, kind models.ResourceKind) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect %s type: %w", field, err)
	}

	want := "video/"
	if kind == models.ResourceImage {
		want = "image/"
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), want) {
			return nil
		}
	}
	return &FieldError{Field: field, Reason: fmt.Sprintf("expected %s* but got %s", want, mt.String())}
}

// ParseKind maps the form value to a content kind. An empty value means video.
func ParseKind(raw string) (models.ContentKind, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.KindVideo, nil
	}
	kind := models.ContentKind(raw)
	if !kind.Valid() {
		return "", &FieldError{Field: "kind", Reason: fmt.Sprintf("must be %q or %q", models.KindVideo, models.KindShort)}
	}
	return kind, nil
}

// ParseBool parses an optional boolean form value. An empty value yields nil.
func ParseBool(field, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &FieldError{Field: field, Reason: "must be true or false"}
	}
	return &b, nil
}

// ParseID parses a non-nil UUID.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, &FieldError{Field: field, Reason: "must be a UUID"}
	}
	return id, nil
}

// ParseIDs parses every entry of raw, reporting the first bad one.
func ParseIDs(field string, raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, &FieldError{Field: field, Reason: "must not be empty"}
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for i, r := range raw {
		id, err := ParseID(fmt.Sprintf("%s[%d]", field, i), r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
