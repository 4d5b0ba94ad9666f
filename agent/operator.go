// Package agent implements an autonomous browser operator: given a one-line
// instruction it observes the page, lets a vision model pick an element and
// acts on it, repeating until the model reports the instruction is done.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// Operator runs the observe, decide and act loop.
type Operator struct {
	config Config
	model  llm.Model
	logger logger.Logger
}

// NewOperator creates an operator. Zero config fields take their defaults.
func NewOperator(config Config, model llm.Model, log logger.Logger) *Operator {
	def := DefaultConfig()
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.TimeLimit <= 0 {
		config.TimeLimit = def.TimeLimit
	}
	return &Operator{config: config, model: model, logger: log}
}

// Perform carries out in on page. Model usage is recorded on tracker.
func (o *Operator) Perform(ctx context.Context, page browser.Page, in Instruction, tracker *usage.Tracker) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.TimeLimit)
	defer cancel()

	o.logger.Info(ctx, "agent starting instruction", map[string]interface{}{
		"instruction": in.Goal,
	})

	out := &Outcome{}
	for i := 1; i <= o.config.MaxIterations; i++ {
		decision, els, err := o.decide(ctx, page, in, out.Interactions, tracker)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return o.finish(ctx, out, fmt.Errorf("agent time limit exceeded: %w", err))
			}
			var syntaxErr *invalidAnswerError
			if errors.As(err, &syntaxErr) {
				out.Interactions = append(out.Interactions, Interaction{Iteration: i, Action: "invalid", Error: err.Error()})
				continue
			}
			return nil, err
		}

		switch decision.Action {
		case "done":
			if !out.Performed {
				return nil, ErrNothingDone
			}
			return out, nil

		case "fail":
			return o.finish(ctx, out, &GiveUpError{Reason: decision.Reason})

		case "click", "fill":
			step := Interaction{Iteration: i, Action: decision.Action, Reason: decision.Reason}
			if decision.Index < 0 || decision.Index >= len(els) {
				step.Error = fmt.Sprintf("element %d does not exist", decision.Index)
				out.Interactions = append(out.Interactions, step)
				continue
			}
			step.Locator = els[decision.Index].Selector

			var actErr error
			if decision.Action == "click" {
				actErr = page.Click(ctx, step.Locator, 0)
			} else {
				step.Value = decision.Value
				if step.Value == "" {
					step.Value = in.Value
				}
				actErr = page.Fill(ctx, step.Locator, 0, step.Value)
			}
			if actErr != nil {
				step.Error = actErr.Error()
				out.Interactions = append(out.Interactions, step)
				o.logger.Warn(ctx, "agent action failed", map[string]interface{}{
					"action":  step.Action,
					"locator": step.Locator,
					"error":   actErr.Error(),
				})
				continue
			}

			out.Performed = true
			out.Locator = step.Locator
			out.Interactions = append(out.Interactions, step)
			o.logger.Info(ctx, "agent performed action", map[string]interface{}{
				"action":    step.Action,
				"locator":   step.Locator,
				"iteration": i,
			})
			if decision.Done {
				return out, nil
			}
			if err := settle(ctx, o.config.SettleDelay); err != nil {
				return o.finish(ctx, out, fmt.Errorf("agent time limit exceeded: %w", err))
			}

		default:
			out.Interactions = append(out.Interactions, Interaction{
				Iteration: i,
				Action:    decision.Action,
				Error:     "unknown action",
			})
		}
	}
	return o.finish(ctx, out, ErrIterationLimit)
}

// finish returns out when an action was already performed, so a late failure
// does not hide work that changed the page.
func (o *Operator) finish(ctx context.Context, out *Outcome, err error) (*Outcome, error) {
	if out.Performed {
		o.logger.Warn(ctx, "agent stopped after acting", map[string]interface{}{
			"error": err.Error(),
		})
		return out, nil
	}
	return nil, err
}

type invalidAnswerError struct {
	err error
}

func (e *invalidAnswerError) Error() string { return "invalid agent answer: " + e.err.Error() }
func (e *invalidAnswerError) Unwrap() error { return e.err }

func (o *Operator) decide(ctx context.Context, page browser.Page, in Instruction, history []Interaction, tracker *usage.Tracker) (*Decision, []browser.Element, error) {
	shot, err := page.Screenshot(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("agent failed to observe page: %w", err)
	}
	els, err := page.Elements(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("agent failed to observe page: %w", err)
	}

	resp, err := o.model.Complete(ctx, llm.Request{
		System:    operatorSystemPrompt,
		Prompt:    buildPrompt(in, els, history),
		Image:     shot,
		MaxTokens: 300,
		Purpose:   llm.PurposeAgent,
	})
	if err != nil {
		return nil, nil, err
	}
	tracker.Record(resp.Usage)

	var d Decision
	if err := llm.DecodeJSON(resp.Text, &d); err != nil {
		return nil, nil, &invalidAnswerError{err: err}
	}
	return &d, els, nil
}

func settle(ctx context.Context, d time.Duration) error {
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
