package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/chunkvault/internal/common"
)

// MemoryStore keeps objects in a map. It backs local runs and tests; the
// hooks let tests inject failures per call.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	labels  map[string]string

	// UploadHook is called with the 1-based upload ordinal and the label
	// before the object is stored. A non-nil error fails the upload.
	UploadHook  func(n int, label string) error
	ResolveHook func(ref string) error
	DeleteHook  func(ref string) error

	uploads int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), labels: make(map[string]string)}
}

func (m *MemoryStore) Upload(ctx context.Context, body io.ReadSeeker, size int64, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrBackendUnavailable, err)
	}

	m.mu.Lock()
	m.uploads++
	n := m.uploads
	hook := m.UploadHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(n, label); err != nil {
			return "", err
		}
	}

	data, err := io.ReadAll(io.LimitReader(body, size+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", common.ErrBackendUnavailable, err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("%w: body is %d bytes, declared %d", common.ErrBackendRejected, len(data), size)
	}

	key := NewStorageKey()
	m.mu.Lock()
	m.objects[key] = data
	m.labels[key] = label
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStore) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrBackendUnavailable, err)
	}
	if m.ResolveHook != nil {
		if err := m.ResolveHook(ref); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrReferenceNotFound, ref)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrBackendUnavailable, err)
	}
	if m.DeleteHook != nil {
		if err := m.DeleteHook(ref); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[ref]; !ok {
		return fmt.Errorf("%w: %s", common.ErrReferenceNotFound, ref)
	}
	delete(m.objects, ref)
	delete(m.labels, ref)
	return nil
}

// Has reports whether ref is currently stored.
func (m *MemoryStore) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Label returns the label ref was uploaded with.
func (m *MemoryStore) Label(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels[ref]
}

// Put stores data under ref directly, bypassing hooks.
func (m *MemoryStore) Put(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = append([]byte(nil), data...)
}
