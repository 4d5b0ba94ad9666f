// Package retry drives one element step through resolve, act and capture,
// re-resolving with the failure folded into the context until the attempt
// bound is reached.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/metrics"
	"github.com/hairizuan-noorazman/scenario-runner/resolver"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// DefaultMaxAttempts is the attempt bound per step.
const DefaultMaxAttempts = 3

// Resolver finds a locator for a step.
type Resolver interface {
	Resolve(ctx context.Context, page browser.Page, t resolver.Target, tracker *usage.Tracker) (*resolver.Result, error)
}

// Executor performs element actions.
type Executor interface {
	Highlight(ctx context.Context, page browser.Page, locator string) error
	Execute(ctx context.Context, page browser.Page, action scenario.Action, locator string) error
}

// Hooks connect the machine to the run. All are optional.
type Hooks struct {
	// Capture takes a screenshot of the highlighted element before each
	// action, and again after every attempt, successful or not.
	Capture func(ctx context.Context) error
	// Persist stores the step once it has succeeded.
	Persist func(ctx context.Context, step scenario.Step) error
	// Log writes a user-facing run log line.
	Log func(ctx context.Context, level run.Level, msg string)
}

// Task is one step to drive. Step is updated in place: Selector, Cache and
// ImageOnlyAttempted reflect the final attempt.
type Task struct {
	Page     browser.Page
	Step     *scenario.Step
	Scenario string
	Tracker  *usage.Tracker
	Hooks
}

// Report describes how a step was driven.
type Report struct {
	Attempts    int
	Strategies  []string
	Performed   bool
	Transitions []Transition
}

// StepError is returned when a step fails on its last attempt.
type StepError struct {
	StepID      int
	Action      scenario.ActionType
	Description string
	Locator     string
	Attempts    int
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed to %s %q with selector %q after %d attempts: %v",
		strings.ToLower(string(e.Action)), e.Description, e.Locator, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Controller runs the attempt machine.
type Controller struct {
	maxAttempts int
	resolver    Resolver
	executor    Executor
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// New creates a Controller. maxAttempts <= 0 uses DefaultMaxAttempts.
func New(maxAttempts int, r Resolver, e Executor, m *metrics.Metrics, log logger.Logger) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controller{
		maxAttempts: maxAttempts,
		resolver:    r,
		executor:    e,
		metrics:     m,
		logger:      log,
	}
}

type machine struct {
	c       *Controller
	task    Task
	state   State
	attempt int
	errs    []string
	lastErr error
	locator string
	report  *Report
}

// Run drives task to success or to a StepError.
func (c *Controller) Run(ctx context.Context, task Task) (*Report, error) {
	if task.Step == nil || task.Step.Action == nil {
		return nil, errors.New("retry: task has no step")
	}
	m := &machine{
		c:       c,
		task:    task,
		state:   StateStart,
		attempt: 1,
		report:  &Report{},
	}

	step := task.Step
	if step.Cache && step.Selector != "" {
		m.locator = step.Selector
		m.to(StateHighlight)
	} else {
		m.to(StateResolve)
	}

	for {
		switch m.state {
		case StateResolve:
			m.resolve(ctx)

		case StateHighlight:
			if err := c.executor.Highlight(ctx, task.Page, step.Selector); err != nil {
				c.logger.Warn(ctx, "failed to highlight element", m.fields(map[string]interface{}{
					"error": err.Error(),
				}))
			}
			m.capture(ctx)
			m.to(StateAct)

		case StateAct:
			if err := c.executor.Execute(ctx, task.Page, step.Action, step.Selector); err != nil {
				m.failed(err, step.Selector)
				continue
			}
			m.to(StateCapture)

		case StateCapture:
			m.capture(ctx)
			m.to(StatePersist)

		case StatePersist:
			if step.Selector != "" {
				step.Cache = true
			}
			if task.Persist != nil {
				if err := task.Persist(ctx, *step); err != nil {
					c.logger.Warn(ctx, "failed to persist step selector", m.fields(map[string]interface{}{
						"error": err.Error(),
					}))
				}
			}
			m.to(StateSuccess)

		case StateRecover:
			m.recover(ctx)

		case StateSuccess:
			m.report.Attempts = m.attempt
			return m.report, nil

		case StateFailed:
			m.report.Attempts = m.attempt
			return m.report, &StepError{
				StepID:      step.ID,
				Action:      step.Action.Kind(),
				Description: step.Target(),
				Locator:     m.locator,
				Attempts:    m.attempt,
				Err:         m.lastErr,
			}
		}
	}
}

func (m *machine) to(next State) {
	if !CanTransition(m.state, next) {
		panic(fmt.Sprintf("retry: illegal transition %s -> %s", m.state, next))
	}
	m.report.Transitions = append(m.report.Transitions, Transition{From: m.state, To: next, Attempt: m.attempt})
	m.state = next
}

func (m *machine) resolve(ctx context.Context) {
	step := m.task.Step
	// an earlier attempt may have navigated away
	if url, err := m.task.Page.URL(ctx); err == nil && url != "" {
		step.CurrentURL = url
	}
	target := resolver.TargetFor(*step, m.task.Scenario)
	if m.attempt > 1 {
		target = target.WithRetry(m.attempt, m.errs)
	}

	res, err := m.c.resolver.Resolve(ctx, m.task.Page, target, m.task.Tracker)
	if err != nil {
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			step.ImageOnlyAttempted = resErr.ImageOnlyAttempted
		}
		m.failed(err, "")
		return
	}

	step.ImageOnlyAttempted = res.ImageOnlyAttempted
	step.Selector = res.Locator
	if res.Locator != "" {
		m.locator = res.Locator
	}
	m.report.Strategies = append(m.report.Strategies, res.Strategy)

	if res.Kind == resolver.ResultActionPerformed {
		m.report.Performed = true
		m.to(StateCapture)
		return
	}
	m.to(StateHighlight)
}

// failed records err for the next resolution. locator is the one the
// action ran against, if any.
func (m *machine) failed(err error, locator string) {
	m.lastErr = err
	if locator != "" {
		m.errs = append(m.errs, fmt.Sprintf("selector %q: %v", locator, err))
	} else {
		m.errs = append(m.errs, err.Error())
	}
	m.to(StateRecover)
}

func (m *machine) recover(ctx context.Context) {
	step := m.task.Step
	m.capture(ctx)
	m.log(ctx, run.LevelWarning, fmt.Sprintf("Attempt %d of %d failed for step %d: %v",
		m.attempt, m.c.maxAttempts, step.ID, m.lastErr))

	if ctx.Err() != nil || m.attempt >= m.c.maxAttempts {
		m.to(StateFailed)
		return
	}

	m.c.metrics.Retry(string(step.Action.Kind()))

	step.Invalidate()
	m.attempt++
	m.to(StateResolve)
}

func (m *machine) capture(ctx context.Context) {
	if m.task.Capture == nil {
		return
	}
	if err := m.task.Capture(ctx); err != nil {
		m.c.logger.Warn(ctx, "failed to capture step screenshot", m.fields(map[string]interface{}{
			"error": err.Error(),
		}))
	}
}

func (m *machine) log(ctx context.Context, level run.Level, msg string) {
	if m.task.Log != nil {
		m.task.Log(ctx, level, msg)
		return
	}
	m.c.logger.Info(ctx, msg, m.fields(nil))
}

func (m *machine) fields(extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"step_id": m.task.Step.ID,
		"attempt": m.attempt,
		"state":   string(m.state),
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
