package sn

import (
	"context"
	"io"

	"sn-go/internal/model"
)

// MediaStore provides an interface for external object storage backends.
// Uploads stream from an io.Reader so large videos never sit in memory.
type MediaStore interface {
	// Upload stores size bytes read from r and returns the public URL and
	// deletion handle of the new asset.
	Upload(ctx context.Context, r io.Reader, size int64, kind model.MediaKind) (model.MediaRef, error)

	// Delete removes the asset identified by handle. Deleting an asset that
	// is already gone succeeds.
	Delete(ctx context.Context, handle string, kind model.MediaKind) error

	// ValidateSetup verifies that the store is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Upload is a byte stream waiting to become a stored asset.
type Upload struct {
	Body io.Reader
	Size int64
	Kind model.MediaKind
}

// PasswordHasher turns a plaintext password into an opaque credential hash.
// Verification happens outside the core.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
