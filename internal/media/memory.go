package media

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// MemoryStore is an in-memory implementation of the MediaStore interface.
// It keeps every asset in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte // handle -> content
}

// NewMemoryStore creates an empty in-memory media store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload stores the asset under a fresh handle of the form "<kind>/<uuid>".
func (m *MemoryStore) Upload(ctx context.Context, r io.Reader, size int64, kind model.MediaKind) (model.MediaRef, error) {
	if err := ctx.Err(); err != nil {
		return model.MediaRef{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return model.MediaRef{}, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return model.MediaRef{}, fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", sn.ErrInvalidInput, size, len(data))
	}

	handle := string(kind) + "/" + uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[handle] = data
	return model.MediaRef{URL: "memory://" + handle, Handle: handle, Kind: kind}, nil
}

// Delete removes the asset. Deleting a missing handle succeeds.
func (m *MemoryStore) Delete(ctx context.Context, handle string, _ model.MediaKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, handle)
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

// Has reports whether an asset is stored under handle.
func (m *MemoryStore) Has(handle string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[handle]
	return ok
}

// Len returns the number of stored assets.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Compile-time check that MemoryStore implements sn.MediaStore interface
var _ sn.MediaStore = (*MemoryStore)(nil)
