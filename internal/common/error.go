// Package common defines shared constants, sentinel errors and small helpers
// used across chunkvault components. Callers should use errors.Is to match
// the sentinel values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Catalog errors.
	ErrNotFound           = errors.New("not found")
	ErrCatalogWriteFailed = errors.New("catalog write failed")

	// Remote blob store errors.
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendRejected    = errors.New("backend rejected request")
	ErrReferenceNotFound  = errors.New("reference not found")

	// Pipeline errors.
	ErrReconstructionFailed = errors.New("reconstruction failed")
	ErrIOFailure            = errors.New("io failure")
	ErrSizeMismatch         = fmt.Errorf("%w: size mismatch", ErrIOFailure)

	// Validation errors.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	ErrInvalidKey       = errors.New("invalid key")
)

// ChunkError reports a failure tied to one chunk of a file.
// Index is 1-based. Kind is the category sentinel (for example
// ErrReconstructionFailed); Err is the underlying cause.
type ChunkError struct {
	Op    string
	Index int
	Kind  error
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s chunk %d: %v: %v", e.Op, e.Index, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is / errors.As.
func (e *ChunkError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
