package media

import (
	"context"
	"fmt"

	"sn-go/internal/config"
	"sn-go/internal/sn"
)

// NewMediaStoreFromConfig creates a MediaStore implementation based on the media config type.
func NewMediaStoreFromConfig(ctx context.Context, cfg config.MediaConfig) (sn.MediaStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem media store requires fs_root to be set")
		}
		return wrap(NewFileSystemStore(cfg.FSRoot, cfg.FSBaseURL))
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 media store requires s3_bucket to be set")
		}
		return wrap(NewS3Store(ctx, S3Options{
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
			AccessKeyID:   cfg.S3AccessKeyID,
			SecretKey:     cfg.S3SecretKey,
		}))
	case "cloudinary":
		if cfg.CloudinaryURL == "" {
			return nil, fmt.Errorf("cloudinary media store requires cloudinary_url to be set")
		}
		return wrap(NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder))
	default:
		return nil, fmt.Errorf("unknown media type: %s", cfg.Type)
	}
}

// wrap keeps a failed constructor from returning a typed nil interface.
func wrap[T sn.MediaStore](s T, err error) (sn.MediaStore, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
