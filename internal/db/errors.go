package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when attempting to insert a duplicate record.
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

// ConstraintError carries the name of the violated constraint alongside the
// sentinel it maps to, so callers can tell which unique index fired. Cause
// holds the driver error when there is one.
type ConstraintError struct {
	Operation  string
	Constraint string
	Err        error
	Cause      error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s: %v (constraint: %s)", e.Operation, e.Err, e.Constraint)
	if e.Cause == nil {
		return msg
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Cause, &pgErr) && pgErr.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", msg, pgErr.Message, pgErr.Detail)
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *ConstraintError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// WrapError wraps database errors with additional context and maps them to custom error types.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &ConstraintError{Operation: operation, Constraint: pgErr.ConstraintName, Err: ErrDuplicateKey, Cause: pgErr}
		case "23503": // foreign_key_violation
			return &ConstraintError{Operation: operation, Constraint: pgErr.ConstraintName, Err: ErrForeignKeyViolation, Cause: pgErr}
		default:
			return fmt.Errorf("%s: database error [%s]: %w", operation, pgErr.Code, err)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// IsNotFound returns true if the error is an ErrNotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey returns true if the error is an ErrDuplicateKey error.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsForeignKeyViolation returns true if the error is an ErrForeignKeyViolation error.
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// ViolatedConstraint returns the constraint name recorded by WrapError, or "".
func ViolatedConstraint(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}
