package decode

import (
	"errors"
	"fmt"
)

// DecodeError reports a transaction whose protocol data could not be
// decoded. Nothing from the transaction has been written. Callers log it
// and continue with the next transaction.
type DecodeError struct {
	TxID string

	// Kind is the message kind name, or a hex code when the kind is not
	// in the protocol table. Empty when the failure precedes dispatch.
	Kind string

	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Kind != "" {
		return fmt.Sprintf("decode %s (%s): %s", e.TxID, e.Kind, msg)
	}
	return fmt.Sprintf("decode %s: %s", e.TxID, msg)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a DecodeError.
// Uses errors.As to handle wrapped errors.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// fieldError is returned by parsers and wrapped into a DecodeError.
type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.msg
}

func errField(field, format string, args ...any) error {
	return &fieldError{field: field, msg: fmt.Sprintf(format, args...)}
}
