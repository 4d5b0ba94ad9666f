package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrIterationLimit is returned when the operator runs out of rounds
	// without acting.
	ErrIterationLimit = errors.New("agent iteration limit reached")

	// ErrNothingDone is returned when the model declares the instruction
	// complete without having acted.
	ErrNothingDone = errors.New("agent finished without performing an action")
)

// Instruction is a one-line natural-language task such as
// "click on Submit" or "fill input email field with a@b.com".
type Instruction struct {
	Goal  string
	Value string
}

// Decision is the model's answer for one round.
type Decision struct {
	Action string `json:"action"` // click, fill, done or fail
	Index  int    `json:"index"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
	// Done marks the action as the last one the instruction needs.
	Done bool `json:"done"`
}

// Interaction records one round of the loop.
type Interaction struct {
	Iteration int    `json:"iteration"`
	Action    string `json:"action"`
	Locator   string `json:"locator,omitempty"`
	Value     string `json:"value,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome describes what the operator did.
type Outcome struct {
	Performed bool
	// Locator is the element acted on last.
	Locator      string
	Interactions []Interaction
}

// GiveUpError is returned when the model reports it cannot complete the instruction.
type GiveUpError struct {
	Reason string
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("agent gave up: %s", e.Reason)
}
