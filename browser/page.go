// Package browser drives a live web page: navigation, screenshots, and element
// actions addressed by locator strings.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrEmptyLocator is returned when a locator string is blank.
	ErrEmptyLocator = errors.New("empty locator")

	// ErrElementIndex is returned when an element index is outside the matched set.
	ErrElementIndex = errors.New("element index out of range")
)

// Element is one interactive element found on the page, as presented to models
// that pick elements by index.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Role        string `json:"role,omitempty"`
	Text        string `json:"text,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	Selector    string `json:"selector"`
}

// Page is the browser driver contract the engine depends on. Element methods
// take a locator (see ParseLocator) and, where relevant, the index of the
// matched element to act on.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// Count returns how many elements match locator.
	Count(ctx context.Context, locator string) (int, error)
	// FirstVisible returns the index of the first visible match, or -1.
	FirstVisible(ctx context.Context, locator string) (int, error)
	// ForceVisible overrides styles so every match is rendered.
	ForceVisible(ctx context.Context, locator string) error

	Click(ctx context.Context, locator string, nth int) error
	Fill(ctx context.Context, locator string, nth int, value string) error
	Value(ctx context.Context, locator string, nth int) (string, error)
	IsFileInput(ctx context.Context, locator string, nth int) (bool, error)
	SetFiles(ctx context.Context, locator string, nth int, paths []string) error

	// Highlight outlines the first match and scrolls it into view.
	Highlight(ctx context.Context, locator, color string) error

	// ScrollBy scrolls vertically and reports whether the viewport moved.
	ScrollBy(ctx context.Context, dy int) (bool, error)
	ScrollTo(ctx context.Context, y int) error

	// Elements lists visible interactive elements in document order.
	Elements(ctx context.Context) ([]Element, error)

	Close() error
}
