package store

import (
	"errors"
	"fmt"

	"github.com/roach88/metashare/internal/schema"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// ErrUndeclaredType is returned when an operation names a type missing
// from the schema registry. It indicates a programming error.
var ErrUndeclaredType = schema.ErrUndeclaredType

// IntegrityError reports a write that would violate the store's
// invariants. The operation that returns it has made no changes.
type IntegrityError struct {
	Code IntegrityErrorCode

	Type    schema.Type
	Network NetworkID
	ID      string

	// Field names the offending field, if any.
	Field string

	Message string
}

// IntegrityErrorCode categorizes integrity errors.
type IntegrityErrorCode string

const (
	// ErrCodeConflictingDuplicate indicates a second write for a resolved
	// (network, type, id) with different fields.
	ErrCodeConflictingDuplicate IntegrityErrorCode = "CONFLICTING_DUPLICATE"

	// ErrCodeMissingReference indicates a reference field naming an item
	// the network does not have.
	ErrCodeMissingReference IntegrityErrorCode = "MISSING_REFERENCE"

	// ErrCodeSchemaViolation indicates an object that does not match the
	// declared fields of its type.
	ErrCodeSchemaViolation IntegrityErrorCode = "SCHEMA_VIOLATION"

	// ErrCodeAliasConflict indicates a mirror whose local id or content is
	// already taken under the target network.
	ErrCodeAliasConflict IntegrityErrorCode = "ALIAS_CONFLICT"
)

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (type=%s, net=%d, id=%q, field=%s)", e.Code, e.Message, e.Type, e.Network, e.ID, e.Field)
	}
	return fmt.Sprintf("%s: %s (type=%s, net=%d, id=%q)", e.Code, e.Message, e.Type, e.Network, e.ID)
}

// IsIntegrityError reports whether err is an IntegrityError.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsConflict reports whether err is a CONFLICTING_DUPLICATE integrity error.
func IsConflict(err error) bool {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeConflictingDuplicate
	}
	return false
}

// IsMissingReference reports whether err is a MISSING_REFERENCE integrity error.
func IsMissingReference(err error) bool {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeMissingReference
	}
	return false
}
