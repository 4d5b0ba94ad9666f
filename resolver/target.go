package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/scenario-runner/scenario"
)

// Strategy names, in cascade order.
const (
	StrategyVision    = "vision"
	StrategyScroll    = "scroll"
	StrategyObserve   = "observe"
	StrategyPageIndex = "page_index"
	StrategyAgent     = "agent"
)

// Target is the immutable context of one resolution attempt.
type Target struct {
	StepID      int
	Action      scenario.ActionType
	Description string
	Value       string
	Scenario    string
	URL         string
	// Errors carries messages from earlier failed attempts of the same step.
	Errors []string
	Attempt int
	// RetryAfterFailure is set when an earlier attempt resolved a locator
	// that then failed to execute.
	RetryAfterFailure  bool
	ImageOnlyAttempted bool
	PresentInOverlay   bool
}

// TargetFor builds the attempt context for step.
func TargetFor(step scenario.Step, scenarioName string) Target {
	t := Target{
		StepID:             step.ID,
		Description:        step.Target(),
		Scenario:           scenarioName,
		URL:                step.CurrentURL,
		Attempt:            1,
		ImageOnlyAttempted: step.ImageOnlyAttempted,
		PresentInOverlay:   step.PresentInOverlay,
	}
	if step.Action != nil {
		t.Action = step.Action.Kind()
	}
	if fill, ok := step.Action.(scenario.FillInput); ok {
		t.Value = fill.Value
	}
	return t
}

// WithRetry returns a copy of t for attempt n after a failed execution.
func (t Target) WithRetry(n int, errs []string) Target {
	t.Attempt = n
	t.RetryAfterFailure = true
	t.Errors = append([]string(nil), errs...)
	return t
}

// instruction renders t as a one-line task for the agent.
func (t Target) instruction() string {
	switch t.Action {
	case scenario.ActionFill:
		return fmt.Sprintf("fill input %s with %s", t.Description, t.Value)
	default:
		return "click on " + t.Description
	}
}

// ResultKind tells the executor what a resolution produced.
type ResultKind int

const (
	// ResultLocator means the executor must act on Locator.
	ResultLocator ResultKind = iota
	// ResultActionPerformed means the action already happened.
	ResultActionPerformed
)

func (k ResultKind) String() string {
	if k == ResultActionPerformed {
		return "action_performed"
	}
	return "locator"
}

// Result is a successful resolution.
type Result struct {
	Kind     ResultKind
	Locator  string
	Strategy string
	// ImageOnlyAttempted is the step's new vision flag.
	ImageOnlyAttempted bool
	Tried              []string
}

// ResolutionError is returned when every eligible strategy failed.
type ResolutionError struct {
	Description        string
	Tried              []string
	Errors             []error
	ImageOnlyAttempted bool
}

func (e *ResolutionError) Error() string {
	causes := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		causes = append(causes, err.Error())
	}
	return fmt.Sprintf("no selector found for %q after trying %s: %s",
		e.Description, strings.Join(e.Tried, ", "), strings.Join(causes, "; "))
}

func (e *ResolutionError) Unwrap() []error {
	return e.Errors
}

// strategyError ties a failure to the strategy that produced it.
type strategyError struct {
	strategy string
	err      error
}

func (e *strategyError) Error() string { return e.strategy + ": " + e.err.Error() }
func (e *strategyError) Unwrap() error { return e.err }

// ErrNoMatch is returned when a candidate locator matches no element.
var ErrNoMatch = errors.New("locator matched no elements")

// ErrUnsupported is returned when no strategy applies to the action.
var ErrUnsupported = errors.New("action has no element target")
