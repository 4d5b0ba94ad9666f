// Package engine runs scenarios: it opens a page, interprets each step in
// order and records logs, screenshots and model usage for the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/metrics"
	"github.com/hairizuan-noorazman/scenario-runner/notify"
	"github.com/hairizuan-noorazman/scenario-runner/retry"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/screenshot"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// Browser opens a fresh page for a run.
type Browser interface {
	Open(ctx context.Context) (browser.Page, error)
}

// BrowserFunc adapts a function to Browser.
type BrowserFunc func(ctx context.Context) (browser.Page, error)

func (f BrowserFunc) Open(ctx context.Context) (browser.Page, error) { return f(ctx) }

// StepRunner drives one element step to completion.
type StepRunner interface {
	Run(ctx context.Context, task retry.Task) (*retry.Report, error)
}

// Config holds run timing.
type Config struct {
	StepPause         time.Duration
	NavigationTimeout time.Duration
	NotifyTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		StepPause:         time.Second,
		NavigationTimeout: time.Minute,
		NotifyTimeout:     30 * time.Second,
	}
}

// Deps are the collaborators of an Engine. Notifier, Links, Pricing and
// Metrics are optional.
type Deps struct {
	Browser   Browser
	Scenarios scenario.Store
	Runs      run.Store
	Shots     *screenshot.Recorder
	Steps     StepRunner
	Model     llm.Model
	Notifier  notify.Sender
	// Links returns the page a report email points at.
	Links   func(runID string) string
	Pricing map[string]usage.Price
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Engine executes scenarios.
type Engine struct {
	config Config
	deps   Deps
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func New(config Config, deps Deps) *Engine {
	def := DefaultConfig()
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = def.NavigationTimeout
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = def.NotifyTimeout
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopSender{}
	}
	return &Engine{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		sleep:  sleep,
		now:    time.Now,
	}
}

// Request starts a run.
type Request struct {
	// RunID correlates the run with its caller. Generated when empty.
	RunID    string
	Scenario scenario.Scenario
	// Email receives the run report when set.
	Email string
}

// Result is what the caller sees once the run ends.
type Result struct {
	Status      run.Status     `json:"status"`
	Message     string         `json:"message,omitempty"`
	Logs        run.Logs       `json:"logs"`
	Screenshots []string       `json:"screenShots"`
	Steps       scenario.Steps `json:"steps,omitempty"`
	RunID       string         `json:"runId"`
	TokenUsage  *usage.Summary `json:"tokenUsage,omitempty"`
}

// RunAbortedError is returned when a step fails for good.
type RunAbortedError struct {
	StepID int
	// Position is the 1-based position of the step in its list.
	Position int
	Err      error
}

func (e *RunAbortedError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Position, e.Err)
}

func (e *RunAbortedError) Unwrap() error {
	return e.Err
}

// ErrMissingScenario is returned when a request has no name, start url or steps.
var ErrMissingScenario = errors.New("name, startUrl and steps are required")

// runContext is the state shared by the steps of one scenario list.
type runContext struct {
	page     browser.Page
	journal  *run.Journal
	tracker  *usage.Tracker
	runID    string
	scenario scenario.Scenario
	steps    scenario.Steps
	// reusable marks a list executed on behalf of an import.
	reusable bool
}

func (rc *runContext) scenarioRef() string {
	if rc.scenario.ID == uuid.Nil {
		return ""
	}
	return rc.scenario.ID.String()
}

// Run executes req.Scenario. A failed run returns both a Result describing
// it and the error.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	sc := req.Scenario
	if sc.Name == "" || sc.StartURL == "" || len(sc.Steps) == 0 {
		return nil, ErrMissingScenario
	}
	if err := sc.Steps.Validate(); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = run.NewID()
	}

	started := e.now()
	if err := e.deps.Runs.Create(ctx, &run.Run{
		RunID:      req.RunID,
		ScenarioID: sc.ID,
		Name:       sc.Name,
		Status:     run.StatusRunning,
		StartedAt:  &started,
	}); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.deps.Metrics.RunStarted()

	rc := &runContext{
		journal:  run.NewJournal(req.RunID, e.deps.Runs, e.logger),
		tracker:  usage.NewTracker(e.deps.Pricing),
		runID:    req.RunID,
		scenario: sc,
		steps:    sc.Steps.Clone(),
	}
	rc.journal.Log(ctx, run.LevelInfo, "Starting scenario: "+sc.Name)

	runErr := e.execute(ctx, rc)

	// Final bookkeeping survives caller cancellation.
	finalCtx := context.WithoutCancel(ctx)
	summary := rc.tracker.Summary()
	result := &Result{
		RunID:      req.RunID,
		TokenUsage: &summary,
	}
	if runErr == nil {
		rc.journal.Log(finalCtx, run.LevelSuccess, "Test completed successfully")
		result.Status = run.StatusSuccess
		result.Steps = rc.steps
	} else {
		result.Status = run.StatusError
		result.Message = "Error during test execution: " + runErr.Error()
	}
	result.Logs = rc.journal.Logs()
	result.Screenshots = rc.journal.Screenshots()

	outcome := run.Outcome{
		Status:     result.Status,
		Logs:       result.Logs,
		Screenshot: rc.journal.LastScreenshot(),
		Usage:      run.Usage(summary),
	}
	if runErr != nil {
		outcome.Error = runErr.Error()
	}
	if err := e.deps.Runs.Complete(finalCtx, req.RunID, outcome); err != nil {
		e.logger.Error(finalCtx, "failed to store run outcome", map[string]interface{}{
			"run_id": req.RunID,
			"error":  err.Error(),
		})
	}

	e.report(finalCtx, req, rc, runErr == nil, summary)
	e.deps.Metrics.ModelUsage(summary.PromptTokens, summary.CompletionTokens, summary.ImageTokens, summary.EstimatedCost)
	e.deps.Metrics.RunFinished(string(result.Status), e.now().Sub(started))

	e.logger.Info(finalCtx, "run finished", map[string]interface{}{
		"run_id":      req.RunID,
		"status":      string(result.Status),
		"screenshots": len(result.Screenshots),
		"tokens":      summary.TotalTokens,
	})
	return result, runErr
}

// execute opens the page, navigates and runs the top-level steps. On failure
// a final screenshot is attempted.
func (e *Engine) execute(ctx context.Context, rc *runContext) error {
	page, err := e.deps.Browser.Open(ctx)
	if err != nil {
		err = fmt.Errorf("failed to open browser: %w", err)
		rc.journal.Log(ctx, run.LevelError, "Error: "+err.Error())
		return err
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Warn(ctx, "failed to close page", map[string]interface{}{
				"run_id": rc.runID,
				"error":  err.Error(),
			})
		}
	}()
	rc.page = page

	err = e.navigate(ctx, rc)
	if err == nil {
		err = e.executeSteps(ctx, rc)
	}
	if err != nil {
		e.capture(context.WithoutCancel(ctx), rc, screenshot.Ref{Final: true})
	}
	return err
}

func (e *Engine) navigate(ctx context.Context, rc *runContext) error {
	navCtx, cancel := context.WithTimeout(ctx, e.config.NavigationTimeout)
	defer cancel()
	if err := rc.page.Navigate(navCtx, rc.scenario.StartURL); err != nil {
		err = fmt.Errorf("failed to navigate to %s: %w", rc.scenario.StartURL, err)
		rc.journal.Log(ctx, run.LevelError, "Error: "+err.Error())
		return err
	}
	rc.journal.Log(ctx, run.LevelSuccess, "Navigated to "+rc.scenario.StartURL)
	return nil
}

func (e *Engine) report(ctx context.Context, req Request, rc *runContext, success bool, summary usage.Summary) {
	if req.Email == "" {
		return
	}
	link := ""
	if e.deps.Links != nil {
		link = e.deps.Links(req.RunID)
	}
	r := notify.Report{
		Name:       rc.scenario.Name,
		Success:    success,
		RunID:      req.RunID,
		Link:       link,
		Cost:       summary.EstimatedCost,
		Screenshot: rc.journal.LastScreenshot(),
		RanAt:      e.now(),
	}
	html, err := notify.RenderReport(r)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, e.config.NotifyTimeout)
		err = e.deps.Notifier.Send(sendCtx, req.Email, r.Subject(), html)
		cancel()
	}
	if err != nil {
		e.logger.Warn(ctx, "failed to send run report", map[string]interface{}{
			"run_id": req.RunID,
			"error":  err.Error(),
		})
	}
}

// capture stores a screenshot and adds it to the run timeline. Failures are
// logged and reported as nil.
func (e *Engine) capture(ctx context.Context, rc *runContext, ref screenshot.Ref) *screenshot.Shot {
	ref.RunID = rc.runID
	ref.ScenarioID = rc.scenarioRef()
	shot, err := e.deps.Shots.Capture(ctx, rc.page, ref)
	if err != nil {
		e.logger.Warn(ctx, "failed to capture screenshot", map[string]interface{}{
			"run_id":  rc.runID,
			"step_id": ref.StepID,
			"error":   err.Error(),
		})
		return nil
	}
	rc.journal.AddScreenshot(shot.URL)
	return shot
}

func sleep(ctx context.Context, d time.Duration) error {
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
