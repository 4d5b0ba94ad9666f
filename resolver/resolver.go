// Package resolver turns a step's natural-language target into a locator on
// the live page, escalating through progressively more expensive strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/hairizuan-noorazman/scenario-runner/agent"
	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/metrics"
	"github.com/hairizuan-noorazman/scenario-runner/pageindex"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// Indexer embeds page content and searches it.
type Indexer interface {
	Ensure(ctx context.Context, url, html string, tracker *usage.Tracker) (string, error)
	Search(ctx context.Context, key, query string, topK int, tracker *usage.Tracker) ([]pageindex.Chunk, error)
}

// Operator performs an instruction on the page without an explicit locator.
type Operator interface {
	Perform(ctx context.Context, page browser.Page, in agent.Instruction, tracker *usage.Tracker) (*agent.Outcome, error)
}

// Config bounds the cascade.
type Config struct {
	ScrollStep int
	MaxScrolls int
	TopK       int
}

func DefaultConfig() Config {
	return Config{
		ScrollStep: 500,
		MaxScrolls: 20,
		TopK:       5,
	}
}

// Resolver runs the selector resolution cascade.
type Resolver struct {
	config   Config
	model    llm.Model
	index    Indexer
	operator Operator
	metrics  *metrics.Metrics
	logger   logger.Logger
}

type strategy struct {
	name string
	run  func(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error)
}

// New creates a Resolver. index, operator and m may be nil; the matching
// strategies are then skipped.
func New(config Config, model llm.Model, index Indexer, operator Operator, m *metrics.Metrics, log logger.Logger) *Resolver {
	def := DefaultConfig()
	if config.ScrollStep <= 0 {
		config.ScrollStep = def.ScrollStep
	}
	if config.MaxScrolls <= 0 {
		config.MaxScrolls = def.MaxScrolls
	}
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	return &Resolver{
		config:   config,
		model:    model,
		index:    index,
		operator: operator,
		metrics:  m,
		logger:   log,
	}
}

// Resolve runs the eligible strategies for t in order and returns the first
// success. Usage of every model call is recorded on tracker.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	switch t.Action {
	case scenario.ActionClick, scenario.ActionFill, scenario.ActionUploadFile:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t.Action)
	}

	visionEligible := !t.ImageOnlyAttempted && !t.RetryAfterFailure && !t.PresentInOverlay
	plan := r.plan(t, visionEligible)

	resErr := &ResolutionError{
		Description:        t.Description,
		ImageOnlyAttempted: t.ImageOnlyAttempted || visionEligible,
	}
	if len(plan) == 0 {
		resErr.Errors = append(resErr.Errors, fmt.Errorf("%w: no strategy applies to %s", ErrUnsupported, t.Action))
		return nil, resErr
	}

	fields := map[string]interface{}{
		"step_id": t.StepID,
		"attempt": t.Attempt,
		"target":  t.Description,
	}
	for _, s := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resErr.Tried = append(resErr.Tried, s.name)

		res, err := s.run(ctx, page, t, tracker)
		if err == nil {
			r.metrics.StrategyOutcome(s.name, "hit")
			res.Strategy = s.name
			res.Tried = resErr.Tried
			res.ImageOnlyAttempted = resErr.ImageOnlyAttempted
			r.logger.Info(ctx, "selector resolved", withFields(fields, map[string]interface{}{
				"strategy": s.name,
				"locator":  res.Locator,
				"result":   res.Kind.String(),
			}))
			return res, nil
		}

		r.metrics.StrategyOutcome(s.name, "miss")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn(ctx, "selector strategy failed", withFields(fields, map[string]interface{}{
			"strategy": s.name,
			"error":    err.Error(),
		}))
		resErr.Errors = append(resErr.Errors, &strategyError{strategy: s.name, err: err})
	}
	return nil, resErr
}

func (r *Resolver) plan(t Target, visionEligible bool) []strategy {
	var plan []strategy
	agentOK := r.operator != nil && t.Action != scenario.ActionUploadFile
	if t.PresentInOverlay {
		if agentOK {
			plan = append(plan, strategy{StrategyAgent, r.operate})
		}
		return plan
	}

	if visionEligible {
		plan = append(plan, strategy{StrategyVision, r.vision})
		if t.Action == scenario.ActionClick || t.Action == scenario.ActionFill {
			plan = append(plan, strategy{StrategyScroll, r.scroll})
		}
	}
	plan = append(plan, strategy{StrategyObserve, r.observe})
	if r.index != nil {
		plan = append(plan, strategy{StrategyPageIndex, r.pageIndex})
	}
	if agentOK {
		plan = append(plan, strategy{StrategyAgent, r.operate})
	}
	return plan
}

func (r *Resolver) query(t Target, shot []byte, purpose string) llm.SelectorQuery {
	q := llm.SelectorQuery{
		Kind:       string(t.Action),
		Value:      t.Value,
		Scenario:   t.Scenario,
		Errors:     t.Errors,
		Screenshot: shot,
		Purpose:    purpose,
	}
	if t.Action == scenario.ActionClick {
		q.Element = t.Description
	} else {
		q.Description = t.Description
	}
	return q
}

// accept checks that a candidate locator matches at least one element.
func (r *Resolver) accept(ctx context.Context, page browser.Page, locator string) (*Result, error) {
	n, err := page.Count(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("invalid locator %q: %w", locator, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, locator)
	}
	return &Result{Kind: ResultLocator, Locator: locator}, nil
}

func (r *Resolver) vision(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	shot, err := page.Screenshot(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to capture viewport: %w", err)
	}
	locator, err := llm.AskSelector(ctx, r.model, tracker, r.query(t, shot, llm.PurposeVision))
	if err != nil {
		return nil, err
	}
	return r.accept(ctx, page, locator)
}

// scroll repeats the vision strategy at successive scroll positions until the
// page stops moving. The page is scrolled back to the top when nothing is found.
func (r *Resolver) scroll(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	last := errors.New("page did not scroll")
	scrolls := 0
	for scrolls < r.config.MaxScrolls {
		moved, err := page.ScrollBy(ctx, r.config.ScrollStep)
		if err != nil {
			last = fmt.Errorf("failed to scroll: %w", err)
			break
		}
		if !moved {
			break
		}
		scrolls++

		res, err := r.vision(ctx, page, t, tracker)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = err
	}

	if err := page.ScrollTo(ctx, 0); err != nil {
		r.logger.Warn(ctx, "failed to scroll back to top", map[string]interface{}{
			"step_id": t.StepID,
			"error":   err.Error(),
		})
	}
	return nil, fmt.Errorf("not found after %d scrolls: %w", scrolls, last)
}

func (r *Resolver) observe(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	els, err := page.Elements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list page elements: %w", err)
	}
	if len(els) == 0 {
		return nil, errors.New("page has no interactive elements")
	}
	idx, err := llm.AskElement(ctx, r.model, tracker, r.query(t, nil, llm.PurposeObserve), els)
	if err != nil {
		return nil, err
	}
	return r.accept(ctx, page, els[idx].Selector)
}

func (r *Resolver) pageIndex(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	url := t.URL
	if url == "" {
		if url, err = page.URL(ctx); err != nil {
			return nil, fmt.Errorf("failed to read page url: %w", err)
		}
	}

	key, err := r.index.Ensure(ctx, url, html, tracker)
	if err != nil {
		return nil, err
	}
	chunks, err := r.index.Search(ctx, key, t.Description, r.config.TopK, tracker)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors.New("no page content matched the target")
	}

	// The screenshot is extra grounding only.
	shot, err := page.Screenshot(ctx, false)
	if err != nil {
		shot = nil
	}
	q := r.query(t, shot, llm.PurposeChunks)
	for _, c := range chunks {
		q.Chunks = append(q.Chunks, c.Content)
	}
	locator, err := llm.AskSelector(ctx, r.model, tracker, q)
	if err != nil {
		return nil, err
	}
	return r.accept(ctx, page, locator)
}

func (r *Resolver) operate(ctx context.Context, page browser.Page, t Target, tracker *usage.Tracker) (*Result, error) {
	out, err := r.operator.Perform(ctx, page, agent.Instruction{Goal: t.instruction(), Value: t.Value}, tracker)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultActionPerformed, Locator: out.Locator}, nil
}

func withFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
