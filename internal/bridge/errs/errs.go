// Package errs defines the Bridge's error taxonomy: a small set of kinds
// shared across the rule table, tiered anchor store, and refresh
// subsystem, each wrapped in BridgeError so callers can branch on kind
// with errors.Is/errors.As without every package inventing its own
// sentinel.
package errs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a BridgeError for caller-side handling.
type ErrorKind int

const (
	// KindConfig covers bad paths, unreadable files, magic/version mismatch.
	KindConfig ErrorKind = iota
	// KindNotFound covers a rule_id absent from the expected family table.
	KindNotFound
	// KindConflict covers a duplicate rule_id on insert.
	KindConflict
	// KindIO covers file system or mmap failure during warm-storage ops.
	KindIO
	// KindSerialization covers a malformed binary entry.
	KindSerialization
	// KindCapacity is surfaced only for diagnostic stats; eviction itself
	// never fails.
	KindCapacity
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	case KindCapacity:
		return "capacity"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// BridgeError is the taxonomy-tagged error type every fallible Bridge
// operation returns.
type BridgeError struct {
	Kind    ErrorKind
	Context string
	Cause   error
}

func (e *BridgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// New builds a BridgeError with no wrapped cause.
func New(kind ErrorKind, context string) *BridgeError {
	return &BridgeError{Kind: kind, Context: context}
}

// Wrap builds a BridgeError carrying an underlying cause.
func Wrap(kind ErrorKind, context string, cause error) *BridgeError {
	return &BridgeError{Kind: kind, Context: context, Cause: cause}
}

// Is reports whether err is a BridgeError of the given kind.
func Is(err error, kind ErrorKind) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
