package run

import "context"

// Store persists run snapshots. Logs and the latest screenshot are written as
// the run progresses so a run can be followed while it executes.
type Store interface {
	Create(ctx context.Context, r *Run) error
	Get(ctx context.Context, runID string) (*Run, error)
	AppendLog(ctx context.Context, runID string, entry LogEntry) error
	SetScreenshot(ctx context.Context, runID, url string) error
	Complete(ctx context.Context, runID string, outcome Outcome) error
}

// Outcome is the final snapshot written when a run ends.
type Outcome struct {
	Status     Status
	Logs       Logs
	Screenshot string
	Usage      Usage
	Error      string
}
