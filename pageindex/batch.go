package pageindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
)

// ErrBatchTimeout is returned when a batch keeps exceeding its wall-clock limit.
var ErrBatchTimeout = errors.New("batch timed out")

// BatchConfig tunes the adaptive batch window.
type BatchConfig struct {
	InitialSize  int
	MaxSize      int
	InitialDelay time.Duration
	MinDelay     time.Duration
	DelayStep    time.Duration
	// Timeout bounds each batch. A batch that times out is run again.
	Timeout time.Duration
	// MaxRetries bounds consecutive timeouts or rate-limit failures.
	MaxRetries int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		InitialSize:  10,
		MaxSize:      50,
		InitialDelay: time.Second,
		MinDelay:     500 * time.Millisecond,
		DelayStep:    100 * time.Millisecond,
		Timeout:      time.Minute,
		MaxRetries:   5,
	}
}

// Batcher runs indexed work in concurrent batches. Each successful batch
// grows the window by one (up to MaxSize) and shortens the pause between
// batches; a rate-limited batch halves the window, doubles the pause and is
// run again.
type Batcher struct {
	cfg    BatchConfig
	logger logger.Logger

	sleep   func(ctx context.Context, d time.Duration) error
	onBatch func(start, size int, delay time.Duration)
}

func NewBatcher(cfg BatchConfig, log logger.Logger) *Batcher {
	def := DefaultBatchConfig()
	if cfg.InitialSize <= 0 {
		cfg.InitialSize = def.InitialSize
	}
	if cfg.MaxSize < cfg.InitialSize {
		cfg.MaxSize = cfg.InitialSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	return &Batcher{cfg: cfg, logger: log, sleep: sleepCtx}
}

// Run calls fn once for every index in [0, n). fn must honour ctx
// cancellation; results are collected by the caller by index.
func (b *Batcher) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	size, delay := b.cfg.InitialSize, b.cfg.InitialDelay
	failures := 0

	for start := 0; start < n; {
		end := start + size
		if end > n {
			end = n
		}
		if b.onBatch != nil {
			b.onBatch(start, end-start, delay)
		}

		err := b.runBatch(ctx, start, end, fn)
		switch {
		case err == nil:
			start = end
			failures = 0
			if size < b.cfg.MaxSize {
				size++
			}
			delay -= b.cfg.DelayStep
			if delay < b.cfg.MinDelay {
				delay = b.cfg.MinDelay
			}

		case ctx.Err() != nil:
			return ctx.Err()

		case errors.Is(err, ErrBatchTimeout):
			failures++
			if failures > b.cfg.MaxRetries {
				return fmt.Errorf("batch at %d: %w after %d attempts", start, ErrBatchTimeout, failures)
			}
			b.logger.Warn(ctx, "batch timed out, retrying", map[string]interface{}{
				"start":   start,
				"size":    end - start,
				"attempt": failures,
			})

		case deperr.IsRateLimited(err):
			failures++
			if failures > b.cfg.MaxRetries {
				return fmt.Errorf("batch at %d still rate limited: %w", start, err)
			}
			size /= 2
			if size < 1 {
				size = 1
			}
			delay *= 2
			if delay <= 0 {
				delay = b.cfg.MinDelay
			}
			b.logger.Warn(ctx, "rate limited, shrinking batch window", map[string]interface{}{
				"start":    start,
				"size":     size,
				"delay_ms": delay.Milliseconds(),
			})

		default:
			return err
		}

		if start < n {
			if err := b.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// runBatch races the batch against its wall-clock limit.
func (b *Batcher) runBatch(ctx context.Context, start, end int, fn func(ctx context.Context, i int) error) error {
	batchCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(batchCtx)
	for i := start; i < end; i++ {
		i := i
		g.Go(func() error { return fn(gctx, i) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(batchCtx.Err(), context.DeadlineExceeded) {
			return ErrBatchTimeout
		}
		return err
	case <-batchCtx.Done():
		<-done
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBatchTimeout
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
