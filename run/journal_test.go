package run

import (
	"context"
	"errors"
	"testing"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_AddScreenshot(t *testing.T) {
	j := NewJournal("r", nil, logger.NewTestLogger())

	tests := []struct {
		ref  string
		want bool
	}{
		{ref: "a.png", want: true},
		{ref: "a.png", want: false},
		{ref: "b.png", want: true},
		{ref: "a.png", want: true},
		{ref: "", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, j.AddScreenshot(tt.ref), tt.ref)
	}
	assert.Equal(t, []string{"a.png", "b.png", "a.png"}, j.Screenshots())
	assert.Equal(t, "a.png", j.LastScreenshot())
}

func TestJournal_ForkSharesLogsNotScreenshots(t *testing.T) {
	ctx := context.Background()
	parent := NewJournal("r", nil, logger.NewTestLogger())
	parent.AddScreenshot("p1.png")

	child := parent.Fork()
	child.Log(ctx, LevelInfo, "child step")
	child.AddScreenshot("p1.png")
	child.AddScreenshot("c1.png")

	assert.Equal(t, []string{"p1.png"}, parent.Screenshots())
	require.Len(t, parent.Logs(), 1)

	parent.MergeScreenshots(child.Screenshots())
	assert.Equal(t, []string{"p1.png", "c1.png"}, parent.Screenshots())
}

type failingStore struct {
	Store
	appended int
}

func (f *failingStore) AppendLog(ctx context.Context, runID string, entry LogEntry) error {
	f.appended++
	return errors.New("db down")
}

func TestJournal_LogPersistsBestEffort(t *testing.T) {
	log := logger.NewTestLogger()
	store := &failingStore{}
	j := NewJournal("r-9", store, log)

	j.Log(context.Background(), LevelError, "Error in step 1: boom")

	assert.Equal(t, 1, store.appended)
	assert.Len(t, j.Logs(), 1)
	assert.True(t, log.HasMessage("error", "Error in step 1"))
	assert.True(t, log.HasMessage("warn", "failed to persist run log"))
}
