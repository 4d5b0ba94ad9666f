package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ActionType is the wire name of a step kind.
type ActionType string

const (
	ActionClick      ActionType = "Click Element"
	ActionFill       ActionType = "Fill Input"
	ActionAssert     ActionType = "AI Visual Assertion"
	ActionDelay      ActionType = "Delay"
	ActionImport     ActionType = "Import Reusable Test"
	ActionUploadFile ActionType = "Upload File"
)

var (
	// ErrUnknownAction is returned when a step carries an unsupported actionType.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrMissingStepField is returned when a step lacks a field its action requires.
	ErrMissingStepField = errors.New("missing step field")
)

// Action is the closed set of step payloads. Only types in this package implement it.
type Action interface {
	Kind() ActionType
	action()
}

// ClickElement clicks the element described by Element.
type ClickElement struct {
	Element string
}

// FillInput types Value into the field described by Description.
// Element is an optional alternate description some authoring tools send.
type FillInput struct {
	Description string
	Element     string
	Value       string
}

// VisualAssertion asks a vision model a yes/no question about the current screen.
type VisualAssertion struct {
	Question string
}

// Delay pauses the run.
type Delay struct {
	Duration time.Duration
}

// ImportReusableTest runs another scenario's steps inline.
type ImportReusableTest struct {
	ScenarioID string
}

// UploadFile attaches the stored file FileName through the chooser described by Description.
type UploadFile struct {
	Description string
	FileName    string
}

func (ClickElement) Kind() ActionType       { return ActionClick }
func (FillInput) Kind() ActionType          { return ActionFill }
func (VisualAssertion) Kind() ActionType    { return ActionAssert }
func (Delay) Kind() ActionType              { return ActionDelay }
func (ImportReusableTest) Kind() ActionType { return ActionImport }
func (UploadFile) Kind() ActionType         { return ActionUploadFile }

func (ClickElement) action()       {}
func (FillInput) action()          {}
func (VisualAssertion) action()    {}
func (Delay) action()              {}
func (ImportReusableTest) action() {}
func (UploadFile) action()         {}

// Step is one declarative action in a scenario plus the engine's per-step memo.
// Selector is only trusted when Cache is true.
type Step struct {
	ID                 int
	Action             Action
	Cache              bool
	Selector           string
	CurrentURL         string
	ImageOnlyAttempted bool
	PresentInOverlay   bool
}

// Target returns the natural-language description of the element an element
// action operates on, or "" for actions without a target.
func (s Step) Target() string {
	switch a := s.Action.(type) {
	case ClickElement:
		return a.Element
	case FillInput:
		if a.Description != "" {
			return a.Description
		}
		return a.Element
	case UploadFile:
		return a.Description
	default:
		return ""
	}
}

// Describe renders a one-line human summary used in run logs.
func (s Step) Describe() string {
	switch a := s.Action.(type) {
	case ClickElement:
		return fmt.Sprintf("Click Element %q", a.Element)
	case FillInput:
		return fmt.Sprintf("Fill Input %q with %q", s.Target(), a.Value)
	case VisualAssertion:
		return fmt.Sprintf("AI Visual Assertion %q", a.Question)
	case Delay:
		return fmt.Sprintf("Delay %s", a.Duration)
	case ImportReusableTest:
		return fmt.Sprintf("Import Reusable Test %s", a.ScenarioID)
	case UploadFile:
		return fmt.Sprintf("Upload File %q via %q", a.FileName, a.Description)
	default:
		return "unknown step"
	}
}

// Invalidate drops the memoized locator so the next attempt re-resolves.
func (s *Step) Invalidate() {
	s.Cache = false
}

// Validate checks that the step carries the payload its action requires.
func (s Step) Validate() error {
	switch a := s.Action.(type) {
	case ClickElement:
		if a.Element == "" {
			return fmt.Errorf("%w: step %d: details.element", ErrMissingStepField, s.ID)
		}
	case FillInput:
		if s.Target() == "" {
			return fmt.Errorf("%w: step %d: details.description", ErrMissingStepField, s.ID)
		}
	case VisualAssertion:
		if a.Question == "" {
			return fmt.Errorf("%w: step %d: question", ErrMissingStepField, s.ID)
		}
	case Delay:
		if a.Duration < 0 {
			return fmt.Errorf("%w: step %d: delayTime must not be negative", ErrMissingStepField, s.ID)
		}
	case ImportReusableTest:
		if a.ScenarioID == "" {
			return fmt.Errorf("%w: step %d: importedTestId", ErrMissingStepField, s.ID)
		}
	case UploadFile:
		if a.Description == "" || a.FileName == "" {
			return fmt.Errorf("%w: step %d: details.description and details.file_content", ErrMissingStepField, s.ID)
		}
	default:
		return fmt.Errorf("%w: step %d", ErrUnknownAction, s.ID)
	}
	return nil
}

type wireDetails struct {
	Element     string `json:"element,omitempty"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
	FileContent string `json:"file_content,omitempty"`
}

type wireStep struct {
	ID                 int          `json:"id"`
	ActionType         ActionType   `json:"actionType"`
	Details            *wireDetails `json:"details,omitempty"`
	Question           string       `json:"question,omitempty"`
	DelayTime          *millis      `json:"delayTime,omitempty"`
	ImportedTestID     string       `json:"importedTestId,omitempty"`
	Cache              bool         `json:"cache"`
	Selector           *string      `json:"selector"`
	CurrentURL         string       `json:"currentUrl,omitempty"`
	ImageOnlyAttempted bool         `json:"imageOnlyAttempted"`
	PresentInOverlay   bool         `json:"presentInOverlay,omitempty"`
}

// millis accepts delayTime as a JSON number or a numeric string.
type millis int64

// maxMillis is the largest delay that fits in a time.Duration.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func (m *millis) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		*m = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("delayTime: %w", err)
	}
	if math.IsNaN(v) || math.Abs(v) > float64(maxMillis) {
		return fmt.Errorf("delayTime: %s is out of range, must be at most %d milliseconds", data, maxMillis)
	}
	*m = millis(v)
	return nil
}

// MarshalJSON encodes the step in the authoring tool's wire shape.
func (s Step) MarshalJSON() ([]byte, error) {
	w := wireStep{
		ID:                 s.ID,
		Cache:              s.Cache,
		CurrentURL:         s.CurrentURL,
		ImageOnlyAttempted: s.ImageOnlyAttempted,
		PresentInOverlay:   s.PresentInOverlay,
	}
	if s.Selector != "" {
		sel := s.Selector
		w.Selector = &sel
	}

	switch a := s.Action.(type) {
	case ClickElement:
		w.Details = &wireDetails{Element: a.Element}
	case FillInput:
		w.Details = &wireDetails{Description: a.Description, Element: a.Element, Value: a.Value}
	case VisualAssertion:
		w.Question = a.Question
	case Delay:
		ms := millis(a.Duration / time.Millisecond)
		w.DelayTime = &ms
	case ImportReusableTest:
		w.ImportedTestID = a.ScenarioID
	case UploadFile:
		w.Details = &wireDetails{Description: a.Description, FileContent: a.FileName}
	default:
		return nil, fmt.Errorf("%w: step %d", ErrUnknownAction, s.ID)
	}
	w.ActionType = s.Action.Kind()

	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape into the matching Action variant.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w wireStep
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	d := wireDetails{}
	if w.Details != nil {
		d = *w.Details
	}

	var action Action
	switch w.ActionType {
	case ActionClick:
		action = ClickElement{Element: d.Element}
	case ActionFill:
		action = FillInput{Description: d.Description, Element: d.Element, Value: d.Value}
	case ActionAssert:
		action = VisualAssertion{Question: w.Question}
	case ActionDelay:
		var ms millis
		if w.DelayTime != nil {
			ms = *w.DelayTime
		}
		action = Delay{Duration: time.Duration(ms) * time.Millisecond}
	case ActionImport:
		action = ImportReusableTest{ScenarioID: w.ImportedTestID}
	case ActionUploadFile:
		action = UploadFile{Description: d.Description, FileName: d.FileContent}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, w.ActionType)
	}

	*s = Step{
		ID:                 w.ID,
		Action:             action,
		Cache:              w.Cache,
		CurrentURL:         w.CurrentURL,
		ImageOnlyAttempted: w.ImageOnlyAttempted,
		PresentInOverlay:   w.PresentInOverlay,
	}
	if w.Selector != nil {
		s.Selector = *w.Selector
	}
	return nil
}
