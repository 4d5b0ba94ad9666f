package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
)

// Config controls how Chrome is started.
type Config struct {
	Headless       bool
	NoSandbox      bool
	ExecPath       string
	RemoteURL      string
	UserAgent      string
	Width          int
	Height         int
	StartupTimeout time.Duration
}

// DefaultConfig returns a headless 1280x800 configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		NoSandbox:      true,
		Width:          1280,
		Height:         800,
		StartupTimeout: 30 * time.Second,
	}
}

// Launcher owns a single Chrome process and hands out one tab per page.
type Launcher struct {
	cfg    Config
	logger logger.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewLauncher(cfg Config, log logger.Logger) *Launcher {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1280, 800
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	return &Launcher{cfg: cfg, logger: log}
}

// ensureAllocator starts Chrome if it is not running. Must be called with l.mu held.
func (l *Launcher) ensureAllocator() {
	if l.allocCtx != nil && l.allocCtx.Err() == nil {
		return
	}
	if l.allocCancel != nil {
		l.allocCancel()
	}

	base := context.Background()
	if remote := strings.TrimSpace(l.cfg.RemoteURL); remote != "" {
		l.allocCtx, l.allocCancel = chromedp.NewRemoteAllocator(base, remote)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", l.cfg.Headless),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(l.cfg.Width, l.cfg.Height),
	)
	if path := strings.TrimSpace(l.cfg.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if ua := strings.TrimSpace(l.cfg.UserAgent); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	l.allocCtx, l.allocCancel = chromedp.NewExecAllocator(base, opts...)
}

// NewPage opens a tab. If the first attempt fails, Chrome is restarted and the
// tab is opened once more.
func (l *Launcher) NewPage(ctx context.Context) (*ChromePage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tab, err := l.newTab(ctx)
	if err == nil {
		return tab, nil
	}
	l.logger.Warn(ctx, "failed to open browser tab, restarting chrome", map[string]interface{}{
		"error": err.Error(),
	})
	if l.allocCancel != nil {
		l.allocCancel()
		l.allocCtx, l.allocCancel = nil, nil
	}
	tab, err = l.newTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return tab, nil
}

func (l *Launcher) newTab(ctx context.Context) (*ChromePage, error) {
	l.ensureAllocator()

	tabCtx, cancel := chromedp.NewContext(l.allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		l.logger.Debug(context.Background(), "chromedp error", map[string]interface{}{
			"detail": fmt.Sprintf(format, args...),
		})
	}))

	l.acceptDialogs(tabCtx)

	probeCtx, probeCancel := context.WithTimeout(tabCtx, l.cfg.StartupTimeout)
	defer probeCancel()
	stop := context.AfterFunc(ctx, probeCancel)
	defer stop()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, err
	}
	return &ChromePage{tabCtx: tabCtx, cancel: cancel}, nil
}

// acceptDialogs dismisses alert, confirm and prompt dialogs as they open.
// An unanswered dialog blocks every later action on the tab.
func (l *Launcher) acceptDialogs(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		l.logger.Info(context.Background(), "accepting javascript dialog", map[string]interface{}{
			"type":    string(e.Type),
			"message": e.Message,
		})
		go func() {
			err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
				return page.HandleJavaScriptDialog(true).Do(ctx)
			}))
			if err != nil && tabCtx.Err() == nil {
				l.logger.Warn(context.Background(), "failed to accept javascript dialog", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	})
}

// Close terminates Chrome and every tab opened from it.
func (l *Launcher) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allocCancel != nil {
		l.allocCancel()
		l.allocCtx, l.allocCancel = nil, nil
	}
}
