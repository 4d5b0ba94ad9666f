// Package storage stores screenshots and upload fixtures in a blob store and
// hands out URLs for them.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// BlobStorage stores and retrieves binary objects by path.
type BlobStorage interface {
	// Upload stores data from reader at path.
	Upload(ctx context.Context, path string, reader io.Reader, opts ...UploadOption) error

	// Download retrieves data from path.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the data at path.
	Delete(ctx context.Context, path string) error

	// Exists checks whether data exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// GetURL returns a URL a browser or mail client can fetch the object from.
	GetURL(ctx context.Context, path string) (string, error)
}

// UploadOptions carries optional object metadata.
type UploadOptions struct {
	ContentType string
}

// UploadOption sets a field of UploadOptions.
type UploadOption func(*UploadOptions)

// WithContentType sets the stored object's content type.
func WithContentType(contentType string) UploadOption {
	return func(o *UploadOptions) {
		o.ContentType = contentType
	}
}

func applyUploadOptions(opts []UploadOption) UploadOptions {
	var o UploadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Config selects and configures a BlobStorage implementation.
type Config struct {
	Type string // "local" or "s3"

	// BaseDir is the local storage root.
	BaseDir string

	// PublicBaseURL, when set, is joined with the object path to form URLs
	// instead of returning filesystem paths (local) or presigned URLs (s3).
	PublicBaseURL string

	S3Bucket        string
	S3Region        string
	S3PresignExpiry time.Duration
}

// New creates the BlobStorage described by cfg.
func New(cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "local":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base_dir is required for local storage")
		}
		local, err := NewLocalStorage(cfg.BaseDir)
		if err != nil {
			return nil, err
		}
		local.publicBaseURL = cfg.PublicBaseURL
		return local, nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		if cfg.S3Region == "" {
			return nil, fmt.Errorf("region is required for S3 storage")
		}

		s3Storage, err := NewS3Storage(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		if cfg.S3PresignExpiry > 0 {
			s3Storage.presignExpiration = cfg.S3PresignExpiry
		}
		s3Storage.publicBaseURL = cfg.PublicBaseURL
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func joinPublicURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
