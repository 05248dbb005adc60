package testutil

import (
	"context"
	"io"
	"sync"

	"sn-go/internal/media"
	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// FaultyMediaStore is an in-memory media store with injectable failures.
// It records every delete attempt, successful or not.
type FaultyMediaStore struct {
	inner *media.MemoryStore

	mu         sync.Mutex
	uploadErr  error
	deleteErr  error
	handleErrs map[string]error
	uploads    int
	deletes    []string
}

func NewFaultyMediaStore() *FaultyMediaStore {
	return &FaultyMediaStore{
		inner:      media.NewMemoryStore(),
		handleErrs: make(map[string]error),
	}
}

// FailUploads makes every later upload fail with err. Pass nil to recover.
func (f *FaultyMediaStore) FailUploads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErr = err
}

// FailDeletes makes every later delete fail with err. Pass nil to recover.
func (f *FaultyMediaStore) FailDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// FailDelete makes deletes of one handle fail with err.
func (f *FaultyMediaStore) FailDelete(handle string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handleErrs[handle] = err
}

func (f *FaultyMediaStore) Upload(ctx context.Context, r io.Reader, size int64, kind model.MediaKind) (model.MediaRef, error) {
	f.mu.Lock()
	err := f.uploadErr
	f.mu.Unlock()
	if err != nil {
		io.Copy(io.Discard, r)
		return model.MediaRef{}, err
	}

	ref, err := f.inner.Upload(ctx, r, size, kind)
	if err == nil {
		f.mu.Lock()
		f.uploads++
		f.mu.Unlock()
	}
	return ref, err
}

func (f *FaultyMediaStore) Delete(ctx context.Context, handle string, kind model.MediaKind) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, handle)
	err := f.deleteErr
	if herr, ok := f.handleErrs[handle]; ok {
		err = herr
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Delete(ctx, handle, kind)
}

func (f *FaultyMediaStore) ValidateSetup(ctx context.Context) error {
	return f.inner.ValidateSetup(ctx)
}

// Has reports whether an asset is currently stored under handle.
func (f *FaultyMediaStore) Has(handle string) bool {
	return f.inner.Has(handle)
}

// Stored returns the number of assets currently stored.
func (f *FaultyMediaStore) Stored() int {
	return f.inner.Len()
}

// Uploads returns the number of successful uploads.
func (f *FaultyMediaStore) Uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

// DeleteAttempts returns every handle passed to Delete, in call order.
func (f *FaultyMediaStore) DeleteAttempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// DeleteCount returns how many times Delete was called for handle.
func (f *FaultyMediaStore) DeleteCount(handle string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.deletes {
		if h == handle {
			n++
		}
	}
	return n
}

var _ sn.MediaStore = (*FaultyMediaStore)(nil)
