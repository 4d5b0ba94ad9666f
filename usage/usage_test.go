package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Record(t *testing.T) {
	tr := NewTracker(map[string]Price{
		"vision":      {Input: 1.0, Output: 2.0},
		"vision-mini": {Input: 0.5, Output: 1.0},
	})

	tr.Record(Call{Model: "vision-large", Purpose: "selector", PromptTokens: 1000, CompletionTokens: 500, Images: 1})
	tr.Record(Call{Model: "vision-mini-1", Purpose: "assertion", PromptTokens: 2000, CompletionTokens: 0})

	s := tr.Summary()
	assert.Equal(t, 3000, s.PromptTokens)
	assert.Equal(t, 500, s.CompletionTokens)
	assert.Equal(t, ImageTokens, s.ImageTokens)
	assert.Equal(t, 3500+ImageTokens, s.TotalTokens)
	require.Len(t, s.Calls, 2)

	want := (1000.0+ImageTokens)/1e6*1.0 + 500.0/1e6*2.0 + 2000.0/1e6*0.5
	assert.InDelta(t, want, s.EstimatedCost, 1e-12)
}

func TestTracker_UnknownModelUsesFallback(t *testing.T) {
	tr := NewTracker(map[string]Price{})
	tr.Record(Call{Model: "mystery", PromptTokens: 1_000_000})
	assert.InDelta(t, fallbackPrice.Input, tr.Summary().EstimatedCost, 1e-9)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(Call{Model: "text-embedding-004", PromptTokens: 10})
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, tr.Summary().PromptTokens)
	assert.Len(t, tr.Summary().Calls, 50)
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tr *Tracker
	tr.Record(Call{Model: "x", PromptTokens: 1})
	assert.Equal(t, Summary{}, tr.Summary())
}
