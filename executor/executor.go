// Package executor performs element actions against a resolved locator.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/storage"
)

var (
	// ErrNoElementFound is returned when the locator matches nothing.
	ErrNoElementFound = errors.New("no element found")

	// ErrElementNotVisible is returned when no match is visible for an action that needs one.
	ErrElementNotVisible = errors.New("element not visible")

	// ErrActionTimeout is returned when a browser action exceeds its bound.
	ErrActionTimeout = errors.New("action timed out")

	// ErrValueMismatch is returned when a filled field does not hold the typed value.
	ErrValueMismatch = errors.New("field value does not match")

	// ErrNotElementAction is returned for steps that do not act on an element.
	ErrNotElementAction = errors.New("step does not act on an element")
)

// ElementError is an action failure on a resolved locator.
type ElementError struct {
	Action  scenario.ActionType
	Locator string
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("%s on %q: %v", strings.ToLower(string(e.Action)), e.Locator, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// Config holds action bounds. Zero settle delays disable waiting.
type Config struct {
	ActionTimeout    time.Duration
	ClickSettle      time.Duration
	UploadSettle     time.Duration
	HighlightColor   string
	UploadPrefix     string
	ScratchDir       string
	FileInputLocator string
}

func DefaultConfig() Config {
	return Config{
		ActionTimeout:    30 * time.Second,
		ClickSettle:      4 * time.Second,
		UploadSettle:     time.Second,
		HighlightColor:   "red",
		UploadPrefix:     "uploads",
		FileInputLocator: `input[type="file"]`,
	}
}

// Executor performs click, fill and upload actions.
type Executor struct {
	config Config
	blobs  storage.BlobStorage
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. blobs supplies upload fixtures.
func New(config Config, blobs storage.BlobStorage, log logger.Logger) *Executor {
	def := DefaultConfig()
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = def.ActionTimeout
	}
	if config.HighlightColor == "" {
		config.HighlightColor = def.HighlightColor
	}
	if config.FileInputLocator == "" {
		config.FileInputLocator = def.FileInputLocator
	}
	return &Executor{
		config: config,
		blobs:  blobs,
		logger: log,
		sleep:  sleep,
	}
}

// Execute performs action on locator.
func (e *Executor) Execute(ctx context.Context, page browser.Page, action scenario.Action, locator string) error {
	switch a := action.(type) {
	case scenario.ClickElement:
		return e.Click(ctx, page, locator)
	case scenario.FillInput:
		return e.Fill(ctx, page, locator, a.Value)
	case scenario.UploadFile:
		return e.Upload(ctx, page, locator, a.FileName)
	default:
		return ErrNotElementAction
	}
}

// Highlight outlines the element at locator so it shows in screenshots.
func (e *Executor) Highlight(ctx context.Context, page browser.Page, locator string) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.ActionTimeout)
	defer cancel()
	return page.Highlight(ctx, locator, e.config.HighlightColor)
}

// Click clicks the first visible match. When no match is visible every match
// is forced visible and the first one is clicked.
func (e *Executor) Click(ctx context.Context, page browser.Page, locator string) error {
	err := e.do(ctx, scenario.ActionClick, locator, func(ctx context.Context) error {
		idx, err := e.visibleIndex(ctx, page, locator, true)
		if err != nil {
			return err
		}
		return page.Click(ctx, locator, idx)
	})
	if err != nil {
		return err
	}
	return e.sleep(ctx, e.config.ClickSettle)
}

// Fill types value into the first visible match and reads it back.
func (e *Executor) Fill(ctx context.Context, page browser.Page, locator, value string) error {
	return e.do(ctx, scenario.ActionFill, locator, func(ctx context.Context) error {
		idx, err := e.visibleIndex(ctx, page, locator, false)
		if err != nil {
			return err
		}
		if err := page.Fill(ctx, locator, idx, value); err != nil {
			return err
		}
		got, err := page.Value(ctx, locator, idx)
		if err != nil {
			return fmt.Errorf("failed to read back value: %w", err)
		}
		if got != value {
			return fmt.Errorf("%w: want %q, got %q", ErrValueMismatch, value, got)
		}
		return nil
	})
}

// Upload attaches the stored file fileName. When locator is not itself a file
// input it is clicked to open the chooser and the file input is used instead.
func (e *Executor) Upload(ctx context.Context, page browser.Page, locator, fileName string) error {
	local, cleanup, err := e.fetch(ctx, fileName)
	if err != nil {
		return err
	}
	defer cleanup()

	err = e.do(ctx, scenario.ActionUploadFile, locator, func(ctx context.Context) error {
		idx, err := e.visibleIndex(ctx, page, locator, true)
		if err != nil {
			return err
		}
		isFile, err := page.IsFileInput(ctx, locator, idx)
		if err != nil {
			return err
		}
		if isFile {
			return page.SetFiles(ctx, locator, idx, []string{local})
		}

		if err := page.Click(ctx, locator, idx); err != nil {
			return fmt.Errorf("failed to open file chooser: %w", err)
		}
		n, err := page.Count(ctx, e.config.FileInputLocator)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no file input after opening chooser", ErrNoElementFound)
		}
		// The chooser input is the most recently added one.
		return page.SetFiles(ctx, e.config.FileInputLocator, n-1, []string{local})
	})
	if err != nil {
		return err
	}
	return e.sleep(ctx, e.config.UploadSettle)
}

func (e *Executor) visibleIndex(ctx context.Context, page browser.Page, locator string, force bool) (int, error) {
	n, err := page.Count(ctx, locator)
	if err != nil {
		return -1, err
	}
	if n == 0 {
		return -1, ErrNoElementFound
	}
	idx, err := page.FirstVisible(ctx, locator)
	if err != nil {
		return -1, err
	}
	if idx >= 0 {
		return idx, nil
	}
	if !force {
		return -1, ErrElementNotVisible
	}

	e.logger.Warn(ctx, "no visible match, forcing visibility", map[string]interface{}{
		"locator": locator,
		"matches": n,
	})
	if err := page.ForceVisible(ctx, locator); err != nil {
		return -1, fmt.Errorf("%w: %v", ErrElementNotVisible, err)
	}
	return 0, nil
}

// do runs fn under the action timeout and wraps failures in an ElementError.
func (e *Executor) do(ctx context.Context, action scenario.ActionType, locator string, fn func(ctx context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, e.config.ActionTimeout)
	defer cancel()

	err := fn(actx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %v", ErrActionTimeout, e.config.ActionTimeout, err)
	}
	return &ElementError{Action: action, Locator: locator, Err: err}
}

// fetch copies an upload fixture to a scratch directory. The returned cleanup
// removes it; failures there are only logged.
func (e *Executor) fetch(ctx context.Context, fileName string) (string, func(), error) {
	objectPath := fileName
	if e.config.UploadPrefix != "" {
		objectPath = path.Join(e.config.UploadPrefix, fileName)
	}
	rc, err := e.blobs.Download(ctx, objectPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch upload %q: %w", fileName, err)
	}
	defer rc.Close()

	dir, err := os.MkdirTemp(e.config.ScratchDir, "upload-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn(ctx, "failed to delete upload scratch file", map[string]interface{}{
				"path":  dir,
				"error": err.Error(),
			})
		}
	}

	local := filepath.Join(dir, filepath.Base(fileName))
	f, err := os.Create(local)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	_, err = io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	return local, cleanup, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
