package blobstore

import (
	"context"
	"io"
	"time"
)

type timeoutStore struct {
	next Store
	d    time.Duration
}

// WithTimeout bounds each call on s by d. A non-positive d returns s as is.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, d: d}
}

func (t *timeoutStore) Upload(ctx context.Context, body io.ReadSeeker, size int64, label string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Upload(ctx, body, size, label)
}

func (t *timeoutStore) Resolve(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Resolve(ctx, ref)
}

func (t *timeoutStore) Delete(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Delete(ctx, ref)
}
