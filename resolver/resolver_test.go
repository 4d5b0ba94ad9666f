package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/agent"
	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/browser/browsertest"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/llm/llmtest"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/pageindex"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

type indexStub struct {
	chunks  []pageindex.Chunk
	err     error
	ensured []string
	queries []string
}

func (s *indexStub) Ensure(_ context.Context, url, _ string, _ *usage.Tracker) (string, error) {
	s.ensured = append(s.ensured, url)
	if s.err != nil {
		return "", s.err
	}
	return "page-key", nil
}

func (s *indexStub) Search(_ context.Context, _ string, query string, _ int, _ *usage.Tracker) ([]pageindex.Chunk, error) {
	s.queries = append(s.queries, query)
	return s.chunks, nil
}

type operatorStub struct {
	out  *agent.Outcome
	err  error
	seen []agent.Instruction
}

func (s *operatorStub) Perform(_ context.Context, _ browser.Page, in agent.Instruction, _ *usage.Tracker) (*agent.Outcome, error) {
	s.seen = append(s.seen, in)
	return s.out, s.err
}

func clickTarget() Target {
	return TargetFor(scenario.Step{ID: 2, Action: scenario.ClickElement{Element: "Submit"}}, "login")
}

func fillTarget() Target {
	return TargetFor(scenario.Step{ID: 1, Action: scenario.FillInput{Description: "email field", Value: "a@b.com"}}, "login")
}

func newResolver(model llm.Model, index Indexer, op Operator) *Resolver {
	return New(Config{}, model, index, op, nil, logger.NewTestLogger())
}

func TestTargetFor(t *testing.T) {
	step := scenario.Step{
		ID:                 4,
		Action:             scenario.FillInput{Description: "email", Value: "x@y.z"},
		CurrentURL:         "https://app.test/login",
		ImageOnlyAttempted: true,
	}
	target := TargetFor(step, "signup")
	assert.Equal(t, 4, target.StepID)
	assert.Equal(t, scenario.ActionFill, target.Action)
	assert.Equal(t, "email", target.Description)
	assert.Equal(t, "x@y.z", target.Value)
	assert.Equal(t, "https://app.test/login", target.URL)
	assert.True(t, target.ImageOnlyAttempted)
	assert.False(t, target.RetryAfterFailure)

	errs := []string{"first"}
	retry := target.WithRetry(2, errs)
	errs[0] = "changed"
	assert.Equal(t, 2, retry.Attempt)
	assert.True(t, retry.RetryAfterFailure)
	assert.Equal(t, []string{"first"}, retry.Errors)
	assert.False(t, target.RetryAfterFailure)
}

func TestResolve_VisionHit(t *testing.T) {
	page := browsertest.New("https://app.test/login")
	page.Add("button#submit", &browsertest.Node{Visible: true})
	model := llmtest.NewModel().Queue(llm.PurposeVision, llmtest.Reply{Text: `{"selector": "button#submit"}`})
	tracker := usage.NewTracker(nil)

	res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, clickTarget(), tracker)
	require.NoError(t, err)
	assert.Equal(t, ResultLocator, res.Kind)
	assert.Equal(t, "button#submit", res.Locator)
	assert.Equal(t, StrategyVision, res.Strategy)
	assert.Equal(t, []string{StrategyVision}, res.Tried)
	assert.True(t, res.ImageOnlyAttempted)

	reqs := model.RequestsFor(llm.PurposeVision)
	require.Len(t, reqs, 1)
	assert.NotEmpty(t, reqs[0].Image)
	assert.Len(t, tracker.Summary().Calls, 1)
}

func TestResolve_ScrollSweepFindsLowerElement(t *testing.T) {
	page := browsertest.New("https://app.test/list")
	page.MaxScroll = 3000
	page.Add("#load-more", &browsertest.Node{Visible: true})
	page.RevealAt["#load-more"] = 1000
	model := llmtest.NewModel()
	model.Respond = func(req llm.Request) (string, error) {
		if req.Purpose == llm.PurposeVision {
			return `{"selector": "#load-more"}`, nil
		}
		return "", llmtest.ErrExhausted
	}

	res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, clickTarget(), usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, StrategyScroll, res.Strategy)
	assert.Equal(t, "#load-more", res.Locator)
	assert.Equal(t, 1000, page.ScrollY())
	assert.Len(t, page.CallsOf("scrollBy"), 2)
	assert.Empty(t, page.CallsOf("scrollTo"))
	// one vision call before the sweep, one per scroll position
	assert.Len(t, model.RequestsFor(llm.PurposeVision), 3)
}

func TestResolve_ScrollSweepStopsAtBottom(t *testing.T) {
	page := browsertest.New("https://app.test/list")
	page.MaxScroll = 1200
	page.Add("form > button", &browsertest.Node{Visible: true})
	page.Items = []browser.Element{{Index: 0, Tag: "button", Text: "Submit", Selector: "form > button"}}
	model := llmtest.NewModel().Queue(llm.PurposeObserve, llmtest.Reply{Text: `{"index": 0}`})
	model.Respond = func(req llm.Request) (string, error) {
		return `{"selector": "", "found": false}`, nil
	}

	res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, clickTarget(), usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, StrategyObserve, res.Strategy)
	assert.Equal(t, []string{StrategyVision, StrategyScroll, StrategyObserve}, res.Tried)
	// 500, 1000, 1200, then no movement
	assert.Len(t, page.CallsOf("scrollBy"), 4)
	require.Len(t, page.CallsOf("scrollTo"), 1)
	assert.Equal(t, 0, page.ScrollY())
}

func TestResolve_ScrollSweepStopsAtMaxScrolls(t *testing.T) {
	page := browsertest.New("https://app.test/feed")
	page.MaxScroll = 1 << 30
	page.Add("form > button", &browsertest.Node{Visible: true})
	page.Items = []browser.Element{{Index: 0, Tag: "button", Text: "Submit", Selector: "form > button"}}
	model := llmtest.NewModel().Queue(llm.PurposeObserve, llmtest.Reply{Text: `{"index": 0}`})
	model.Respond = func(req llm.Request) (string, error) {
		return `{"selector": "", "found": false}`, nil
	}

	res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, clickTarget(), usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, StrategyObserve, res.Strategy)
	assert.Equal(t, "form > button", res.Locator)
	assert.Equal(t, []string{StrategyVision, StrategyScroll, StrategyObserve}, res.Tried)

	assert.Len(t, page.CallsOf("scrollBy"), DefaultConfig().MaxScrolls)
	assert.Len(t, model.RequestsFor(llm.PurposeVision), DefaultConfig().MaxScrolls+1)
	scrollTo := page.CallsOf("scrollTo")
	require.Len(t, scrollTo, 1)
	assert.Equal(t, "0", scrollTo[0].Value)
	assert.Equal(t, 0, page.ScrollY())
}

func TestResolve_VisionSkipped(t *testing.T) {
	tests := []struct {
		name   string
		target func() Target
	}{
		{
			name: "already attempted",
			target: func() Target {
				target := clickTarget()
				target.ImageOnlyAttempted = true
				return target
			},
		},
		{
			name: "retry after failed execution",
			target: func() Target {
				return clickTarget().WithRetry(2, []string{"click failed"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.New("https://app.test/login")
			page.MaxScroll = 5000
			page.Add("form > button", &browsertest.Node{Visible: true})
			page.Items = []browser.Element{
				{Index: 0, Tag: "a", Text: "Home", Selector: "nav > a"},
				{Index: 1, Tag: "button", Text: "Submit", Selector: "form > button"},
			}
			model := llmtest.NewModel().Queue(llm.PurposeObserve, llmtest.Reply{Text: `{"index": 1}`})

			res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, tt.target(), usage.NewTracker(nil))
			require.NoError(t, err)
			assert.Equal(t, StrategyObserve, res.Strategy)
			assert.Equal(t, "form > button", res.Locator)
			assert.Equal(t, []string{StrategyObserve}, res.Tried)
			assert.Empty(t, model.RequestsFor(llm.PurposeVision))
			assert.Empty(t, page.CallsOf("scrollBy"))
		})
	}
}

func TestResolve_RejectsLocatorWithoutMatches(t *testing.T) {
	page := browsertest.New("https://app.test/login")
	page.Add("input[name=email]", &browsertest.Node{Visible: true})
	page.Items = []browser.Element{{Index: 0, Tag: "input", Name: "email", Selector: "input[name=email]"}}
	model := llmtest.NewModel().
		Queue(llm.PurposeVision, llmtest.Reply{Text: `{"selector": "#ghost"}`}).
		Queue(llm.PurposeObserve, llmtest.Reply{Text: `{"index": 0}`})

	target := fillTarget()
	res, err := newResolver(model, nil, nil).Resolve(context.Background(), page, target, usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, "input[name=email]", res.Locator)
	assert.Equal(t, StrategyObserve, res.Strategy)
	assert.True(t, res.ImageOnlyAttempted)
}

func TestResolve_PageIndexUsesChunks(t *testing.T) {
	page := browsertest.New("https://app.test/checkout")
	page.Content = `<form><button id="pay">Pay now</button></form>`
	page.Add("#pay", &browsertest.Node{Visible: true})
	index := &indexStub{chunks: []pageindex.Chunk{{Content: `<button id="pay">Pay now</button>`, Similarity: 0.9}}}
	model := llmtest.NewModel().Queue(llm.PurposeChunks, llmtest.Reply{Text: "```json\n{\"selector\": \"#pay\"}\n```"})

	target := clickTarget().WithRetry(2, []string{`selector "button.pay" failed: element not visible`})
	target.URL = "https://app.test/checkout?step=2"
	res, err := newResolver(model, index, nil).Resolve(context.Background(), page, target, usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, StrategyPageIndex, res.Strategy)
	assert.Equal(t, "#pay", res.Locator)
	assert.Equal(t, []string{"https://app.test/checkout?step=2"}, index.ensured)
	assert.Equal(t, []string{"Submit"}, index.queries)

	reqs := model.RequestsFor(llm.PurposeChunks)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, `id="pay"`)
	assert.Contains(t, reqs[0].Prompt, "button.pay")
}

func TestResolve_AgentLastResort(t *testing.T) {
	page := browsertest.New("https://app.test/login")
	op := &operatorStub{out: &agent.Outcome{Performed: true, Locator: "form > button"}}
	index := &indexStub{err: errors.New("embedding service unavailable")}

	res, err := newResolver(llmtest.NewModel(), index, op).Resolve(context.Background(), page, fillTarget(), usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, ResultActionPerformed, res.Kind)
	assert.Equal(t, StrategyAgent, res.Strategy)
	assert.Equal(t, "form > button", res.Locator)
	assert.Equal(t, []string{StrategyVision, StrategyScroll, StrategyObserve, StrategyPageIndex, StrategyAgent}, res.Tried)
	require.Len(t, op.seen, 1)
	assert.Equal(t, "fill input email field with a@b.com", op.seen[0].Goal)
	assert.Equal(t, "a@b.com", op.seen[0].Value)
}

func TestResolve_OverlayGoesStraightToAgent(t *testing.T) {
	page := browsertest.New("https://app.test/login")
	op := &operatorStub{out: &agent.Outcome{Performed: true, Locator: "#accept"}}
	model := llmtest.NewModel()

	target := clickTarget()
	target.PresentInOverlay = true
	res, err := newResolver(model, &indexStub{}, op).Resolve(context.Background(), page, target, usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, StrategyAgent, res.Strategy)
	assert.Equal(t, []string{StrategyAgent}, res.Tried)
	assert.False(t, res.ImageOnlyAttempted)
	assert.Empty(t, model.Requests())
	assert.Equal(t, "click on Submit", op.seen[0].Goal)
}

func TestResolve_Exhausted(t *testing.T) {
	page := browsertest.New("https://app.test/upload")
	op := &operatorStub{out: &agent.Outcome{Performed: true}}
	target := TargetFor(scenario.Step{ID: 3, Action: scenario.UploadFile{Description: "resume picker", FileName: "cv.pdf"}}, "apply")

	_, err := newResolver(llmtest.NewModel(), nil, op).Resolve(context.Background(), page, target, usage.NewTracker(nil))
	require.Error(t, err)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	// uploads have no scroll sweep and are never delegated to the agent
	assert.Equal(t, []string{StrategyVision, StrategyObserve}, resErr.Tried)
	assert.True(t, resErr.ImageOnlyAttempted)
	assert.True(t, errors.Is(err, llmtest.ErrExhausted))
	assert.Contains(t, err.Error(), `"resume picker"`)
	assert.Empty(t, op.seen)
}

func TestResolve_UnsupportedAction(t *testing.T) {
	target := TargetFor(scenario.Step{ID: 1, Action: scenario.Delay{}}, "x")
	_, err := newResolver(llmtest.NewModel(), nil, nil).Resolve(context.Background(), browsertest.New("about:blank"), target, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestResolve_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newResolver(llmtest.NewModel(), nil, nil).Resolve(ctx, browsertest.New("about:blank"), clickTarget(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
