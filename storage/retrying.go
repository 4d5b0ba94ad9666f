package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
)

// RetryingStorage retries idempotent operations of a delegate store with
// exponential backoff. Missing objects and invalid paths are not retried.
type RetryingStorage struct {
	BlobStorage
	buildBackoff func() backoff.BackOff
	logger       logger.Logger
}

// NewRetryingStorage wraps delegate. A nil factory selects exponential backoff
// giving up after 10s.
func NewRetryingStorage(delegate BlobStorage, factory func() backoff.BackOff, log logger.Logger) *RetryingStorage {
	if factory == nil {
		factory = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		}
	}
	return &RetryingStorage{BlobStorage: delegate, buildBackoff: factory, logger: log}
}

// Upload buffers reader so the body can be replayed between attempts.
func (s *RetryingStorage) Upload(ctx context.Context, path string, reader io.Reader, opts ...UploadOption) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}

	err = s.retry(ctx, "upload", path, func() error {
		return s.BlobStorage.Upload(ctx, path, bytes.NewReader(body), opts...)
	})
	if err != nil {
		return deperr.Unavailable("blob storage", err)
	}
	return nil
}

// Download retries opening the object.
func (s *RetryingStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.retry(ctx, "download", path, func() error {
		var err error
		rc, err = s.BlobStorage.Download(ctx, path)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrInvalidPath) {
			return nil, err
		}
		return nil, deperr.Unavailable("blob storage", err)
	}
	return rc, nil
}

// GetURL retries url resolution.
func (s *RetryingStorage) GetURL(ctx context.Context, path string) (string, error) {
	var url string
	err := s.retry(ctx, "get_url", path, func() error {
		var err error
		url, err = s.BlobStorage.GetURL(ctx, path)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrInvalidPath) {
			return "", err
		}
		return "", deperr.Unavailable("blob storage", err)
	}
	return url, nil
}

func (s *RetryingStorage) retry(ctx context.Context, op, path string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrInvalidPath) {
			return backoff.Permanent(err)
		}
		s.logger.Warn(ctx, "blob storage operation failed", map[string]interface{}{
			"operation": op,
			"path":      path,
			"attempt":   attempt,
			"error":     err.Error(),
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(s.buildBackoff(), ctx))
}
