// Package screenshot captures page snapshots, stores them in blob storage and
// returns the URL they can be retrieved from.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/storage"
)

const contentType = "image/png"

// Ref identifies what a screenshot belongs to. Final marks the end-of-run capture.
type Ref struct {
	RunID      string
	ScenarioID string
	StepID     int
	Final      bool
}

// Shot is a stored screenshot.
type Shot struct {
	URL  string
	Path string
	Data []byte
}

// Options configures a Recorder.
type Options struct {
	Prefix   string
	Timeout  time.Duration
	FullPage bool
}

// Recorder captures and stores screenshots. A nil run store disables live
// run updates.
type Recorder struct {
	blobs  storage.BlobStorage
	runs   run.Store
	logger logger.Logger
	opts   Options

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewRecorder(blobs storage.BlobStorage, runs run.Store, log logger.Logger, opts Options) *Recorder {
	if opts.Prefix == "" {
		opts.Prefix = "screenshots"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Recorder{
		blobs:  blobs,
		runs:   runs,
		logger: log,
		opts:   opts,
		now:    time.Now,
	}
}

// stamp returns a millisecond timestamp strictly greater than the previous one.
func (r *Recorder) stamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := r.now().UnixMilli()
	if ms <= r.last {
		ms = r.last + 1
	}
	r.last = ms
	return ms
}

// Name returns the object name for a capture taken at ms.
func Name(ref Ref, ms int64) string {
	owner := ref.ScenarioID
	if owner == "" {
		owner = ref.RunID
	}
	step := strconv.Itoa(ref.StepID)
	if ref.Final {
		step = "final"
	}
	return fmt.Sprintf("%s_step%s_%d.png", owner, step, ms)
}

// Capture takes a screenshot of page, stores it and records it as the run's
// latest screenshot.
func (r *Recorder) Capture(ctx context.Context, page browser.Page, ref Ref) (*Shot, error) {
	captureCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	data, err := page.Screenshot(captureCtx, r.opts.FullPage)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	objectPath := path.Join(r.opts.Prefix, Name(ref, r.stamp()))
	if err := r.blobs.Upload(ctx, objectPath, bytes.NewReader(data), storage.WithContentType(contentType)); err != nil {
		return nil, fmt.Errorf("failed to store screenshot: %w", err)
	}
	url, err := r.blobs.GetURL(ctx, objectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve screenshot url: %w", err)
	}

	if r.runs != nil && ref.RunID != "" {
		if err := r.runs.SetScreenshot(ctx, ref.RunID, url); err != nil {
			r.logger.Warn(ctx, "failed to update run screenshot", map[string]interface{}{
				"run_id": ref.RunID,
				"error":  err.Error(),
			})
		}
	}

	return &Shot{URL: url, Path: objectPath, Data: data}, nil
}
