// Package browsertest provides a scripted in-memory browser.Page.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
)

// Node is one element matched by a locator.
type Node struct {
	Visible   bool
	FileInput bool
	Value     string
	Files     []string
	Clicks    int
}

// Call records an operation performed on the page.
type Call struct {
	Op      string
	Locator string
	Nth     int
	Value   string
}

// Page is a browser.Page whose DOM is a map from locator string to matches.
// Exported fields may be set before use; after that, use the methods.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	Content    string
	Nodes      map[string][]*Node
	Items      []browser.Element

	// MaxScroll is the largest reachable vertical offset.
	MaxScroll int
	// RevealAt hides a locator's matches until the page is scrolled at least this far.
	RevealAt map[string]int

	NavigateErr   error
	ScreenshotErr error
	ClickErr      map[string]error
	FillErr       map[string]error
	// FillFilter rewrites filled values, e.g. to emulate an input mask.
	FillFilter func(string) string
	// OnClick runs after a successful click.
	OnClick func(p *Page, locator string, nth int)

	scrollY int
	shots   int
	calls   []Call
	closed  bool
}

var _ browser.Page = (*Page)(nil)

// New returns an empty page at url.
func New(url string) *Page {
	return &Page{
		CurrentURL: url,
		Nodes:      map[string][]*Node{},
		RevealAt:   map[string]int{},
		ClickErr:   map[string]error{},
		FillErr:    map[string]error{},
	}
}

// Add registers matches for locator.
func (p *Page) Add(locator string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Nodes[locator] = append(p.Nodes[locator], nodes...)
	return p
}

// Node returns the nth match for locator, or nil.
func (p *Page) Node(locator string, nth int) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	nodes := p.Nodes[locator]
	if nth < 0 || nth >= len(nodes) {
		return nil
	}
	return nodes[nth]
}

// Calls returns the recorded operations.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallsOf returns the recorded operations named op.
func (p *Page) CallsOf(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ScrollY returns the current vertical offset.
func (p *Page) ScrollY() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(c Call) {
	p.calls = append(p.calls, c)
}

// matches must be called with p.mu held.
func (p *Page) matches(locator string) []*Node {
	if at, ok := p.RevealAt[locator]; ok && p.scrollY < at {
		return nil
	}
	return p.Nodes[locator]
}

// nth must be called with p.mu held.
func (p *Page) nth(locator string, i int) (*Node, error) {
	if locator == "" {
		return nil, browser.ErrEmptyLocator
	}
	nodes := p.matches(locator)
	if i < 0 || i >= len(nodes) {
		return nil, browser.ErrElementIndex
	}
	return nodes[i], nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "navigate", Value: url})
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	return ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "screenshot", Value: fmt.Sprint(fullPage)})
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.shots++
	return []byte(fmt.Sprintf("png:%d:%s", p.shots, p.CurrentURL)), ctx.Err()
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Content, nil
}

func (p *Page) Count(_ context.Context, locator string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "count", Locator: locator})
	if locator == "" {
		return 0, browser.ErrEmptyLocator
	}
	return len(p.matches(locator)), nil
}

func (p *Page) FirstVisible(_ context.Context, locator string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, n := range p.matches(locator) {
		if n.Visible {
			return i, nil
		}
	}
	return -1, nil
}

func (p *Page) ForceVisible(_ context.Context, locator string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "forceVisible", Locator: locator})
	for _, n := range p.matches(locator) {
		n.Visible = true
	}
	return nil
}

func (p *Page) Click(_ context.Context, locator string, nth int) error {
	p.mu.Lock()
	p.record(Call{Op: "click", Locator: locator, Nth: nth})
	if err := p.ClickErr[locator]; err != nil {
		p.mu.Unlock()
		return err
	}
	n, err := p.nth(locator, nth)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	n.Clicks++
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, locator, nth)
	}
	return nil
}

func (p *Page) Fill(_ context.Context, locator string, nth int, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "fill", Locator: locator, Nth: nth, Value: value})
	if err := p.FillErr[locator]; err != nil {
		return err
	}
	n, err := p.nth(locator, nth)
	if err != nil {
		return err
	}
	if p.FillFilter != nil {
		value = p.FillFilter(value)
	}
	n.Value = value
	return nil
}

func (p *Page) Value(_ context.Context, locator string, nth int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.nth(locator, nth)
	if err != nil {
		return "", err
	}
	return n.Value, nil
}

func (p *Page) IsFileInput(_ context.Context, locator string, nth int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.nth(locator, nth)
	if err != nil {
		return false, err
	}
	return n.FileInput, nil
}

func (p *Page) SetFiles(_ context.Context, locator string, nth int, paths []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "setFiles", Locator: locator, Nth: nth, Value: fmt.Sprint(paths)})
	n, err := p.nth(locator, nth)
	if err != nil {
		return err
	}
	if !n.FileInput {
		return fmt.Errorf("element is not a file input")
	}
	n.Files = append([]string(nil), paths...)
	return nil
}

func (p *Page) Highlight(_ context.Context, locator, color string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "highlight", Locator: locator, Value: color})
	if len(p.matches(locator)) == 0 {
		return browser.ErrElementIndex
	}
	return nil
}

func (p *Page) ScrollBy(_ context.Context, dy int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "scrollBy", Value: fmt.Sprint(dy)})
	next := p.scrollY + dy
	if next > p.MaxScroll {
		next = p.MaxScroll
	}
	if next < 0 {
		next = 0
	}
	moved := next != p.scrollY
	p.scrollY = next
	return moved, nil
}

func (p *Page) ScrollTo(_ context.Context, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Op: "scrollTo", Value: fmt.Sprint(y)})
	p.scrollY = y
	return nil
}

func (p *Page) Elements(context.Context) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Element, len(p.Items))
	copy(out, p.Items)
	return out, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
