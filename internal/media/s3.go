package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket        string
	Prefix        string // key prefix, e.g. "prod"
	Region        string // empty uses the SDK default
	Endpoint      string // for S3-compatible services; enables path-style addressing
	PublicBaseURL string // URL prefix for public links; empty uses the object location
	AccessKeyID   string // empty uses the default credential chain
	SecretKey     string
}

// S3Store is an Amazon S3 implementation of the MediaStore interface.
// Objects are keyed "<prefix>/<kind>/<uuid>" and the key is the deletion handle.
type S3Store struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	prefix        string
	publicBaseURL string
}

// NewS3Store loads AWS configuration and creates a store for opts.Bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 media store requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        opts.Bucket,
		prefix:        strings.Trim(opts.Prefix, "/"),
		publicBaseURL: strings.TrimSuffix(opts.PublicBaseURL, "/"),
	}, nil
}

func (s *S3Store) key(kind model.MediaKind) string {
	return path.Join(s.prefix, string(kind), uuid.NewString())
}

// Upload streams the asset to S3 using multipart upload for large bodies.
func (s *S3Store) Upload(ctx context.Context, r io.Reader, size int64, kind model.MediaKind) (model.MediaRef, error) {
	key := s.key(kind)
	counter := &countingReader{r: r}

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        counter,
		ContentType: aws.String(contentType(kind)),
	})
	if err != nil {
		return model.MediaRef{}, s3Err("upload", err)
	}
	url := out.Location
	if s.publicBaseURL != "" {
		url = s.publicBaseURL + "/" + key
	}
	ref := model.MediaRef{URL: url, Handle: key, Kind: kind}
	if counter.n != size {
		return model.MediaRef{}, rejectUpload(ctx, s.Delete, ref, sizeMismatch(size, counter.n))
	}
	return ref, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, handle string, _ model.MediaKind) error {
	if s.prefix != "" && !strings.HasPrefix(handle, s.prefix+"/") {
		return fmt.Errorf("%w: handle %q is outside prefix %q", sn.ErrInvalidInput, handle, s.prefix)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return s3Err("delete", err)
	}
	return nil
}

// ValidateSetup verifies that the bucket exists and is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return s3Err("head bucket", err)
	}
	return nil
}

// s3Err classifies SDK errors. Server faults and transport failures are
// transient; client faults (bad credentials, missing bucket) are not.
func s3Err(op string, err error) error {
	transient := true
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		transient = apiErr.ErrorFault() != smithy.FaultClient
	}
	return sn.NewExternalError("media", "s3 "+op, transient, err)
}

func contentType(kind model.MediaKind) string {
	if kind == model.MediaVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sizeMismatch(want, got int64) error {
	return fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", sn.ErrInvalidInput, want, got)
}

// rejectUpload deletes an asset that was stored but failed a check made
// after the upload. If the delete fails as well, the asset comes back inside
// an sn.OrphanedUploadError so it can be reported.
func rejectUpload(ctx context.Context, del func(context.Context, string, model.MediaKind) error, ref model.MediaRef, cause error) error {
	if err := del(ctx, ref.Handle, ref.Kind); err != nil {
		return &sn.OrphanedUploadError{Asset: ref, Err: cause, DeleteErr: err}
	}
	return cause
}

// Compile-time check that S3Store implements sn.MediaStore interface
var _ sn.MediaStore = (*S3Store)(nil)
