// Package blobstore holds the remote chunk storage backends. A backend
// accepts opaque ciphertext, hands back a reference string, and later
// resolves or deletes by that reference.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"github.com/google/uuid"
)

// Store is the remote blob store contract.
//
// Errors are classified with common.ErrBackendUnavailable,
// common.ErrBackendRejected and common.ErrReferenceNotFound.
type Store interface {
	// Upload stores size bytes read from body and returns the reference.
	// label is informational only.
	Upload(ctx context.Context, body io.ReadSeeker, size int64, label string) (string, error)
	Resolve(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// NewStorageKey returns a fresh object key, sharded by upload date.
func NewStorageKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("chunks/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// New builds the backend selected by cfg.BlobBackend, wrapped so that every
// call is bounded by cfg.BackendCallTimeout.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	var s Store
	switch cfg.BlobBackend {
	case "s3":
		s3s, err := NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			PresignTTL:   cfg.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		if err := s3s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		s = s3s
	case "memory":
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.BlobBackend)
	}
	return WithTimeout(s, cfg.BackendCallTimeout), nil
}
