package model

import (
	"errors"
	"fmt"
)

// MalformedRecordError rejects a single input record; the batch continues.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed record: %s", e.Reason)
	}
	return fmt.Sprintf("malformed record: %s: %s", e.Field, e.Reason)
}

// Malformed builds a MalformedRecordError for a field.
func Malformed(field, format string, args ...interface{}) error {
	return &MalformedRecordError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is a MalformedRecordError.
func IsMalformed(err error) bool {
	var target *MalformedRecordError
	return errors.As(err, &target)
}

// InvariantWarning is a non-fatal invariant check failure surfaced on a
// derived result, e.g. a liquidity-net sum residual at a window boundary.
type InvariantWarning struct {
	Check    string `json:"check"`
	Residual string `json:"residual"`
}

func (w InvariantWarning) String() string {
	return fmt.Sprintf("%s: residual %s", w.Check, w.Residual)
}
