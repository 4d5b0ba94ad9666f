package screenshot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/browser/browsertest"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/storage"
)

type runStoreStub struct {
	run.Store
	shots []string
	err   error
}

func (s *runStoreStub) SetScreenshot(_ context.Context, _ string, url string) error {
	s.shots = append(s.shots, url)
	return s.err
}

func newLocal(t *testing.T) *storage.LocalStorage {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return local
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{name: "step", ref: Ref{ScenarioID: "scn", RunID: "r1", StepID: 3}, want: "scn_step3_1700000000000.png"},
		{name: "final", ref: Ref{ScenarioID: "scn", Final: true}, want: "scn_stepfinal_1700000000000.png"},
		{name: "no scenario", ref: Ref{RunID: "r1", StepID: 1}, want: "r1_step1_1700000000000.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.ref, 1700000000000))
		})
	}
}

func TestCapture(t *testing.T) {
	local := newLocal(t)
	runs := &runStoreStub{}
	rec := NewRecorder(local, runs, logger.NewTestLogger(), Options{})
	fixed := time.UnixMilli(1700000000000)
	rec.now = func() time.Time { return fixed }

	page := browsertest.New("https://example.com/login")
	ctx := context.Background()

	first, err := rec.Capture(ctx, page, Ref{RunID: "r1", ScenarioID: "scn", StepID: 1})
	require.NoError(t, err)
	second, err := rec.Capture(ctx, page, Ref{RunID: "r1", ScenarioID: "scn", StepID: 1})
	require.NoError(t, err)

	assert.Equal(t, "screenshots/scn_step1_1700000000000.png", first.Path)
	assert.Equal(t, "screenshots/scn_step1_1700000000001.png", second.Path)
	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, []string{first.URL, second.URL}, runs.shots)

	rc, err := local.Download(ctx, first.Path)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, first.Data, stored)
}

func TestCapture_RunStoreFailureIsNotFatal(t *testing.T) {
	log := logger.NewTestLogger()
	rec := NewRecorder(newLocal(t), &runStoreStub{err: errors.New("db down")}, log, Options{})

	shot, err := rec.Capture(context.Background(), browsertest.New("https://example.com"), Ref{RunID: "r1", StepID: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, shot.URL)
	assert.True(t, log.HasMessage("warn", "failed to update run screenshot"))
}

func TestCapture_PageError(t *testing.T) {
	page := browsertest.New("https://example.com")
	page.ScreenshotErr = errors.New("target closed")
	rec := NewRecorder(newLocal(t), nil, logger.NewTestLogger(), Options{})

	_, err := rec.Capture(context.Background(), page, Ref{RunID: "r1", StepID: 1})
	assert.ErrorIs(t, err, page.ScreenshotErr)
}
