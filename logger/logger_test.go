package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLogger_DerivedLoggersShareEntries(t *testing.T) {
	ctx := context.Background()
	base := NewTestLogger()
	child := base.WithField("run_id", "r-1")

	base.Info(ctx, "run started", nil)
	child.Warn(ctx, "nested import skipped", map[string]interface{}{"step_id": 3})

	entries := base.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[1].Level)
	assert.Equal(t, "r-1", entries[1].Fields["run_id"])
	assert.Equal(t, 3, entries[1].Fields["step_id"])
	assert.True(t, base.HasMessage("warn", "import skipped"))
	assert.False(t, base.HasMessage("error", "import skipped"))

	base.Reset()
	assert.Empty(t, child.(*TestLogger).Entries())
}

func TestNewLogrusLogger_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	log := NewLogrusLogger("debug", &FileOutput{Path: path, MaxSizeMB: 1})

	log.WithField("run_id", "r-2").Info(context.Background(), "step executed", map[string]interface{}{"step_id": 1})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"step executed"`)
	assert.Contains(t, string(data), `"run_id":"r-2"`)
}

func TestNewLogrusLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := NewLogrusLogger("verbose", nil)
	assert.Equal(t, "info", log.logger.GetLevel().String())
}
