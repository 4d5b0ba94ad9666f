package run

import (
	"context"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
)

type logSink struct {
	mu      sync.Mutex
	entries Logs
}

// Journal is the in-memory record of a run in progress: ordered log lines and
// an ordered screenshot timeline. Log lines are mirrored to the logger and,
// best effort, to the run store so followers see them live.
type Journal struct {
	runID  string
	store  Store
	logger logger.Logger
	now    func() time.Time

	logs *logSink

	mu          sync.Mutex
	screenshots []string
}

// NewJournal creates a journal for runID. store may be nil.
func NewJournal(runID string, store Store, log logger.Logger) *Journal {
	return &Journal{
		runID:  runID,
		store:  store,
		logger: log.WithField("run_id", runID),
		now:    time.Now,
		logs:   &logSink{},
	}
}

// Fork returns a journal that shares this journal's log but keeps its own
// screenshot timeline. Imported scenarios run on a fork.
func (j *Journal) Fork() *Journal {
	return &Journal{
		runID:  j.runID,
		store:  j.store,
		logger: j.logger,
		now:    j.now,
		logs:   j.logs,
	}
}

// RunID returns the correlation id of the run.
func (j *Journal) RunID() string {
	return j.runID
}

// Log appends a line to the run log.
func (j *Journal) Log(ctx context.Context, level Level, msg string) {
	entry := LogEntry{Message: msg, Status: level, Timestamp: j.now().UTC()}

	j.logs.mu.Lock()
	j.logs.entries = append(j.logs.entries, entry)
	j.logs.mu.Unlock()

	fields := map[string]interface{}{"status": string(level)}
	switch level {
	case LevelError:
		j.logger.Error(ctx, msg, fields)
	case LevelWarning:
		j.logger.Warn(ctx, msg, fields)
	default:
		j.logger.Info(ctx, msg, fields)
	}

	if j.store == nil {
		return
	}
	if err := j.store.AppendLog(ctx, j.runID, entry); err != nil {
		j.logger.Warn(ctx, "failed to persist run log", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Logs returns a copy of the log lines so far.
func (j *Journal) Logs() Logs {
	j.logs.mu.Lock()
	defer j.logs.mu.Unlock()
	return append(Logs(nil), j.logs.entries...)
}

// AddScreenshot appends ref unless it equals the most recent entry.
// It reports whether ref was appended.
func (j *Journal) AddScreenshot(ref string) bool {
	if ref == "" {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.screenshots); n > 0 && j.screenshots[n-1] == ref {
		return false
	}
	j.screenshots = append(j.screenshots, ref)
	return true
}

// MergeScreenshots appends refs in order with the same adjacency rule.
func (j *Journal) MergeScreenshots(refs []string) {
	for _, ref := range refs {
		j.AddScreenshot(ref)
	}
}

// Screenshots returns a copy of the screenshot timeline.
func (j *Journal) Screenshots() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.screenshots...)
}

// LastScreenshot returns the most recent screenshot or "".
func (j *Journal) LastScreenshot() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.screenshots) == 0 {
		return ""
	}
	return j.screenshots[len(j.screenshots)-1]
}
