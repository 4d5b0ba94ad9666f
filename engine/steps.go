package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/retry"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/screenshot"
)

// executeSteps runs rc.steps in order, stopping at the first failure.
func (e *Engine) executeSteps(ctx context.Context, rc *runContext) error {
	for i := range rc.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := &rc.steps[i]
		rc.journal.Log(ctx, run.LevelInfo, fmt.Sprintf("Step %d: %s", i+1, step.Describe()))
		if url, err := rc.page.URL(ctx); err == nil {
			step.CurrentURL = url
		}

		err := e.executeStep(ctx, rc, step)
		status := "success"
		if err != nil {
			status = "error"
		}
		e.deps.Metrics.StepFinished(string(step.Action.Kind()), status)
		if err != nil {
			rc.journal.Log(ctx, run.LevelError, fmt.Sprintf("Error in step %d: %v", i+1, err))
			return &RunAbortedError{StepID: step.ID, Position: i + 1, Err: err}
		}

		if err := e.sleep(ctx, e.config.StepPause); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) executeStep(ctx context.Context, rc *runContext, step *scenario.Step) error {
	switch a := step.Action.(type) {
	case scenario.Delay:
		return e.delay(ctx, rc, step, a)
	case scenario.VisualAssertion:
		return e.assert(ctx, rc, step, a)
	case scenario.ImportReusableTest:
		return e.importScenario(ctx, rc, a)
	case scenario.ClickElement, scenario.FillInput, scenario.UploadFile:
		return e.elementStep(ctx, rc, step)
	default:
		return scenario.ErrUnknownAction
	}
}

func (e *Engine) delay(ctx context.Context, rc *runContext, step *scenario.Step, a scenario.Delay) error {
	e.capture(ctx, rc, screenshot.Ref{StepID: step.ID})
	rc.journal.Log(ctx, run.LevelInfo, fmt.Sprintf("Waiting for %s", a.Duration))
	if err := e.sleep(ctx, a.Duration); err != nil {
		return err
	}
	e.capture(ctx, rc, screenshot.Ref{StepID: step.ID})
	rc.journal.Log(ctx, run.LevelSuccess, "Wait completed")
	return nil
}

// assert logs the model's verdict. A negative verdict does not fail the run.
func (e *Engine) assert(ctx context.Context, rc *runContext, step *scenario.Step, a scenario.VisualAssertion) error {
	shot := e.capture(ctx, rc, screenshot.Ref{StepID: step.ID})
	if shot == nil {
		return errors.New("no screenshot available for visual assertion")
	}
	if e.deps.Model == nil {
		return errors.New("no model configured for visual assertion")
	}
	verdict, err := llm.AskVerdict(ctx, e.deps.Model, rc.tracker, a.Question, shot.Data)
	if err != nil {
		return fmt.Errorf("visual assertion failed: %w", err)
	}
	rc.journal.Log(ctx, run.LevelInfo, fmt.Sprintf("AI analysis result: %s", verdict))
	return nil
}

// importScenario runs another scenario's steps on the same page. Nested
// imports are skipped so a scenario importing itself cannot recurse.
func (e *Engine) importScenario(ctx context.Context, rc *runContext, a scenario.ImportReusableTest) error {
	if rc.reusable {
		rc.journal.Log(ctx, run.LevelWarning, "Skipping nested import of reusable test to prevent recursion")
		return nil
	}
	id, err := uuid.Parse(a.ScenarioID)
	if err != nil {
		return fmt.Errorf("invalid reusable test id %q: %w", a.ScenarioID, err)
	}
	child, err := e.deps.Scenarios.FetchByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load reusable test %s: %w", a.ScenarioID, err)
	}
	rc.journal.Log(ctx, run.LevelInfo, "Running reusable test: "+child.Name)

	sub := &runContext{
		page:     rc.page,
		journal:  rc.journal.Fork(),
		tracker:  rc.tracker,
		runID:    rc.runID,
		scenario: *child,
		steps:    child.Steps.Clone(),
		reusable: true,
	}
	err = e.executeSteps(ctx, sub)
	rc.journal.MergeScreenshots(sub.journal.Screenshots())
	if err != nil {
		return fmt.Errorf("reusable test %s failed: %w", child.Name, err)
	}
	rc.journal.Log(ctx, run.LevelSuccess, "Completed reusable test: "+child.Name)
	return nil
}

// elementStep drives a click, fill or upload through the retry machine.
// Resolved locators are written back to the scenario the list belongs to.
func (e *Engine) elementStep(ctx context.Context, rc *runContext, step *scenario.Step) error {
	task := retry.Task{
		Page:     rc.page,
		Step:     step,
		Scenario: rc.scenario.Name,
		Tracker:  rc.tracker,
		Hooks: retry.Hooks{
			Capture: func(ctx context.Context) error {
				if e.capture(ctx, rc, screenshot.Ref{StepID: step.ID}) == nil {
					return errors.New("screenshot not captured")
				}
				return nil
			},
			Persist: func(ctx context.Context, _ scenario.Step) error {
				return e.persist(ctx, rc)
			},
			Log: rc.journal.Log,
		},
	}
	_, err := e.deps.Steps.Run(ctx, task)
	return err
}

// persist stores the memo fields of rc.steps. Ad hoc scenarios have no
// stored copy and are skipped.
func (e *Engine) persist(ctx context.Context, rc *runContext) error {
	if rc.scenario.ID == uuid.Nil || e.deps.Scenarios == nil {
		return nil
	}
	return e.deps.Scenarios.UpdateSteps(ctx, rc.scenario.ID, rc.steps.Clone())
}
