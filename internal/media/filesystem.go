package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// FileSystemStore is a filesystem-based implementation of the MediaStore
// interface. Assets are laid out by kind:
//
//	<root>/
//	  image/
//	    <uuid>
//	  video/
//	    <uuid>
//
// The handle is the path relative to root and the URL is baseURL/handle.
type FileSystemStore struct {
	root    string
	baseURL string
}

// NewFileSystemStore creates a media store rooted at the given path.
// baseURL defaults to a file:// URL of root.
func NewFileSystemStore(root, baseURL string) (*FileSystemStore, error) {
	for _, kind := range []model.MediaKind{model.MediaImage, model.MediaVideo} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}
	if baseURL == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving media root: %w", err)
		}
		baseURL = "file://" + filepath.ToSlash(abs)
	}
	return &FileSystemStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the asset atomically and returns its reference.
func (f *FileSystemStore) Upload(ctx context.Context, r io.Reader, size int64, kind model.MediaKind) (model.MediaRef, error) {
	if err := ctx.Err(); err != nil {
		return model.MediaRef{}, err
	}
	if !kind.Valid() {
		return model.MediaRef{}, fmt.Errorf("%w: unknown media kind %q", sn.ErrInvalidInput, kind)
	}

	handle := string(kind) + "/" + uuid.NewString()
	if err := f.writeFile(filepath.Join(f.root, filepath.FromSlash(handle)), r, size); err != nil {
		return model.MediaRef{}, err
	}
	return model.MediaRef{URL: f.baseURL + "/" + handle, Handle: handle, Kind: kind}, nil
}

// Delete removes the asset. Deleting a missing handle succeeds.
func (f *FileSystemStore) Delete(ctx context.Context, handle string, kind model.MediaKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.resolve(handle, kind)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the media directories are accessible.
func (f *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("media root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", f.root)
	}

	for _, kind := range []model.MediaKind{model.MediaImage, model.MediaVideo} {
		dir := filepath.Join(f.root, string(kind))
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("media directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("media path is not a directory: %s", dir)
		}
	}
	return nil
}

// resolve maps a handle to a path, rejecting handles that leave their kind directory.
func (f *FileSystemStore) resolve(handle string, kind model.MediaKind) (string, error) {
	dir, name, ok := strings.Cut(handle, "/")
	if !ok || dir != string(kind) || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid %s handle %q", sn.ErrInvalidInput, kind, handle)
	}
	return filepath.Join(f.root, dir, name), nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (f *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", sn.ErrInvalidInput, expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements sn.MediaStore interface
var _ sn.MediaStore = (*FileSystemStore)(nil)
