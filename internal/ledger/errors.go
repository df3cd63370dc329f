package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure classes. Store operations wrap
// underlying database failures with fmt.Errorf instead; anything that does
// not match one of these is a persistence error.
var (
	// ErrNotFound marks an unknown SKU, transaction, or signature reference.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate marks an attempt to register an already-registered SKU.
	ErrDuplicate = errors.New("already exists")

	// ErrConfirmationRequired marks a pickup completion attempted without
	// confirmed proof of possession.
	ErrConfirmationRequired = errors.New("pickup confirmation required")

	// ErrExpiredCode marks a confirmation code presented after its expiry.
	ErrExpiredCode = errors.New("confirmation code expired")

	// ErrCodeMismatch marks a confirmation code that does not match the
	// issued one.
	ErrCodeMismatch = errors.New("confirmation code mismatch")
)

// ValidationError reports bad or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IllegalStateError reports an operation not allowed in the transaction's
// current status, including disallowed status transitions.
type IllegalStateError struct {
	Op     string
	Status string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s transaction in status %q", e.Op, e.Status)
}
