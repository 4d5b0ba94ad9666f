package pageindex

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/llm/llmtest"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

const loginPage = `<html><head><script>track()</script></head><body>
<p>Welcome to the pricing page with plans and tiers</p>
<form><input id="email" placeholder="Email address"/></form>
<footer>Copyright contact support team</footer>
</body></html>`

func testConfig() Config {
	return Config{
		CacheSize:     4,
		Splitter:      Splitter{Size: 70, Overlap: 0, Separators: []string{"\n", " ", ""}},
		EmbedAttempts: 3,
		EmbedDelay:    time.Millisecond,
		CountTokens:   EstimateTokens,
	}
}

func newTestIndex(t *testing.T, embedder *llmtest.Embedder, cfg Config) *Index {
	t.Helper()
	x, err := New(embedder, logger.NewTestLogger(), cfg)
	require.NoError(t, err)
	return x
}

func TestIndex_EnsureAndSearch(t *testing.T) {
	embedder := llmtest.NewEmbedder()
	x := newTestIndex(t, embedder, testConfig())
	tracker := usage.NewTracker(nil)
	ctx := context.Background()

	key, err := x.Ensure(ctx, "https://example.com/login", loginPage, tracker)
	require.NoError(t, err)
	embedded := embedder.Calls()
	assert.Greater(t, embedded, 1)

	again, err := x.Ensure(ctx, "https://example.com/login", loginPage, tracker)
	require.NoError(t, err)
	assert.Equal(t, key, again)
	assert.Equal(t, embedded, embedder.Calls())

	chunks, err := x.Search(ctx, key, "email address", 1, tracker)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, `id="email"`)

	summary := tracker.Summary()
	require.Len(t, summary.Calls, 2)
	assert.Equal(t, PurposeEmbedding, summary.Calls[0].Purpose)
	assert.Greater(t, summary.Calls[0].PromptTokens, 0)
}

func TestIndex_SearchClampsTopK(t *testing.T) {
	x := newTestIndex(t, llmtest.NewEmbedder(), testConfig())
	ctx := context.Background()

	key, err := x.Ensure(ctx, "https://example.com", loginPage, nil)
	require.NoError(t, err)

	chunks, err := x.Search(ctx, key, "support", 50, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 50)
}

func TestIndex_ContentChangeReindexes(t *testing.T) {
	x := newTestIndex(t, llmtest.NewEmbedder(), testConfig())
	ctx := context.Background()

	first, err := x.Ensure(ctx, "https://example.com", loginPage, nil)
	require.NoError(t, err)
	second, err := x.Ensure(ctx, "https://example.com", strings.Replace(loginPage, "Copyright", "Imprint", 1), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestIndex_EvictsLeastRecentPage(t *testing.T) {
	cfg := testConfig()
	cfg.CacheSize = 1
	x := newTestIndex(t, llmtest.NewEmbedder(), cfg)
	ctx := context.Background()

	first, err := x.Ensure(ctx, "https://example.com/a", loginPage, nil)
	require.NoError(t, err)
	_, err = x.Ensure(ctx, "https://example.com/b", loginPage, nil)
	require.NoError(t, err)

	_, err = x.Search(ctx, first, "email", 1, nil)
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestIndex_EmbedRetries(t *testing.T) {
	embedder := llmtest.NewEmbedder()
	embedder.Fail = func(_ string, call int) error {
		if call <= 2 {
			return errors.New("connection reset")
		}
		return nil
	}
	x := newTestIndex(t, embedder, testConfig())

	_, err := x.Ensure(context.Background(), "https://example.com", `<body><p>one chunk</p></body>`, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.Calls())
}

func TestIndex_EmbedGivesUp(t *testing.T) {
	embedder := llmtest.NewEmbedder()
	embedder.Fail = func(string, int) error { return errors.New("connection refused") }
	x := newTestIndex(t, embedder, testConfig())

	_, err := x.Ensure(context.Background(), "https://example.com", `<body><p>one chunk</p></body>`, nil)
	assert.ErrorIs(t, err, deperr.ErrUnavailable)
	assert.Equal(t, 3, embedder.Calls())
}

func TestIndex_EmptyPage(t *testing.T) {
	x := newTestIndex(t, llmtest.NewEmbedder(), testConfig())
	_, err := x.Ensure(context.Background(), "https://example.com", `<script>only()</script>`, nil)
	assert.ErrorIs(t, err, ErrEmptyPage)
}
