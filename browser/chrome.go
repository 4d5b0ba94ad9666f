package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

const elementLimit = 200

// ChromePage is a Page backed by a chromedp tab.
type ChromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

var _ Page = (*ChromePage)(nil)

// run executes actions on the tab, bounded by both the tab and ctx.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// eval installs the runtime and evaluates a __runner call into res.
func (p *ChromePage) eval(ctx context.Context, res interface{}, method string, args ...interface{}) error {
	expr, err := call(method, args...)
	if err != nil {
		return err
	}
	return p.run(ctx,
		chromedp.Evaluate(runtimeJS, nil),
		chromedp.Evaluate(expr, res),
	)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *ChromePage) Count(ctx context.Context, locator string) (int, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return 0, err
	}
	var n int
	if err := p.eval(ctx, &n, "count", loc); err != nil {
		return 0, fmt.Errorf("failed to evaluate locator %q: %w", locator, err)
	}
	return n, nil
}

func (p *ChromePage) FirstVisible(ctx context.Context, locator string) (int, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return -1, err
	}
	idx := -1
	if err := p.eval(ctx, &idx, "firstVisible", loc); err != nil {
		return -1, fmt.Errorf("failed to evaluate locator %q: %w", locator, err)
	}
	return idx, nil
}

func (p *ChromePage) ForceVisible(ctx context.Context, locator string) error {
	loc, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	var ok bool
	return p.eval(ctx, &ok, "forceVisible", loc)
}

func (p *ChromePage) Click(ctx context.Context, locator string, nth int) error {
	loc, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	var pt *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := p.eval(ctx, &pt, "point", loc, nth); err != nil {
		return err
	}
	if pt == nil {
		return ErrElementIndex
	}
	return p.run(ctx, chromedp.MouseClickXY(pt.X, pt.Y))
}

func (p *ChromePage) Fill(ctx context.Context, locator string, nth int, value string) error {
	loc, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	var mode string
	if err := p.eval(ctx, &mode, "prepareFill", loc, nth, value); err != nil {
		return err
	}
	switch mode {
	case "":
		return ErrElementIndex
	case "select":
		return nil
	}
	if value == "" {
		return nil
	}
	return p.run(ctx, chromedp.KeyEvent(value))
}

func (p *ChromePage) Value(ctx context.Context, locator string, nth int) (string, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return "", err
	}
	var v *string
	if err := p.eval(ctx, &v, "value", loc, nth); err != nil {
		return "", err
	}
	if v == nil {
		return "", ErrElementIndex
	}
	return *v, nil
}

func (p *ChromePage) IsFileInput(ctx context.Context, locator string, nth int) (bool, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := p.eval(ctx, &ok, "isFileInput", loc, nth); err != nil {
		return false, err
	}
	return ok, nil
}

// SetFiles tags the nth match with a temporary attribute so the file chooser
// can be addressed with a plain CSS query.
func (p *ChromePage) SetFiles(ctx context.Context, locator string, nth int, paths []string) error {
	loc, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	ref := uuid.NewString()
	var tagged bool
	if err := p.eval(ctx, &tagged, "tag", loc, nth, ref); err != nil {
		return err
	}
	if !tagged {
		return ErrElementIndex
	}
	defer func() {
		var ok bool
		_ = p.eval(context.WithoutCancel(ctx), &ok, "untag", ref)
	}()

	sel := fmt.Sprintf(`[data-runner-ref="%s"]`, ref)
	return p.run(ctx, chromedp.SetUploadFiles(sel, paths, chromedp.ByQuery))
}

func (p *ChromePage) Highlight(ctx context.Context, locator, color string) error {
	loc, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	if strings.TrimSpace(color) == "" {
		color = "red"
	}
	var ok bool
	return p.eval(ctx, &ok, "highlight", loc, color)
}

func (p *ChromePage) ScrollBy(ctx context.Context, dy int) (bool, error) {
	var moved bool
	expr := fmt.Sprintf(`(function () { var y = window.scrollY; window.scrollBy(0, %d); return window.scrollY !== y; })()`, dy)
	if err := p.run(ctx, chromedp.Evaluate(expr, &moved)); err != nil {
		return false, err
	}
	return moved, nil
}

func (p *ChromePage) ScrollTo(ctx context.Context, y int) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil))
}

func (p *ChromePage) Elements(ctx context.Context) ([]Element, error) {
	var els []Element
	if err := p.eval(ctx, &els, "elements", elementLimit); err != nil {
		return nil, fmt.Errorf("failed to list page elements: %w", err)
	}
	return els, nil
}

// Close closes the tab. The Chrome process stays up until the Launcher closes.
func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}
