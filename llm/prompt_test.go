package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/llm/llmtest"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

func TestSelectorPrompt(t *testing.T) {
	prompt := llm.SelectorPrompt(llm.SelectorQuery{
		Kind:        "Fill Input",
		Description: "email field",
		Scenario:    "Login",
		Errors:      []string{`#email: no element found`},
		Chunks:      []string{`<input id="email">`},
		Screenshot:  []byte("png"),
	})

	assert.Contains(t, prompt, "<scenario>Login</scenario>")
	assert.Contains(t, prompt, "description: email field")
	assert.Contains(t, prompt, "<html_chunks>")
	assert.Contains(t, prompt, `<input id="email">`)
	assert.Contains(t, prompt, "- #email: no element found")
	assert.Contains(t, prompt, "input field")
	assert.Contains(t, prompt, "attached screenshot")
}

func TestAskSelector(t *testing.T) {
	tests := []struct {
		name    string
		reply   llmtest.Reply
		want    string
		wantErr error
	}{
		{name: "json answer", reply: llmtest.Reply{Text: `{"selector": "#submit"}`}, want: "#submit"},
		{name: "bare locator", reply: llmtest.Reply{Text: "`button#go`"}, want: "button#go"},
		{name: "not found", reply: llmtest.Reply{Text: `{"selector": "", "found": false}`}, wantErr: llm.ErrNotFound},
		{name: "provider error", reply: llmtest.Reply{Err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.NewModel().Queue(llm.PurposeVision, tt.reply)
			tracker := usage.NewTracker(nil)

			got, err := llm.AskSelector(context.Background(), model, tracker, llm.SelectorQuery{
				Kind:       "Click Element",
				Element:    "Submit",
				Screenshot: []byte("png"),
			})
			if tt.reply.Err != nil {
				assert.ErrorIs(t, err, tt.reply.Err)
				assert.Empty(t, tracker.Summary().Calls)
				return
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			summary := tracker.Summary()
			require.Len(t, summary.Calls, 1)
			assert.Equal(t, usage.ImageTokens, summary.ImageTokens)
		})
	}
}

func TestAskElement(t *testing.T) {
	els := []browser.Element{
		{Index: 0, Tag: "a", Text: "Home", Selector: "#home"},
		{Index: 1, Tag: "button", Text: "Submit", Selector: "form > button"},
	}
	model := llmtest.NewModel().
		Queue(llm.PurposeObserve, llmtest.Reply{Text: `{"index": 1}`}, llmtest.Reply{Text: `{"index": 7}`})

	idx, err := llm.AskElement(context.Background(), model, nil, llm.SelectorQuery{Kind: "Click Element", Element: "Submit"}, els)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	req := model.RequestsFor(llm.PurposeObserve)[0]
	assert.Nil(t, req.Image)
	assert.Contains(t, req.Prompt, "[1] <button> Submit")

	_, err = llm.AskElement(context.Background(), model, nil, llm.SelectorQuery{Kind: "Click Element", Element: "Submit"}, els)
	assert.ErrorIs(t, err, llm.ErrNotFound)
}

func TestAskVerdict(t *testing.T) {
	model := llmtest.NewModel().Queue(llm.PurposeVerdict, llmtest.Reply{Text: " true \n"})

	verdict, err := llm.AskVerdict(context.Background(), model, nil, "Is the dashboard shown?", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "true", verdict)

	req := model.Requests()[0]
	assert.Equal(t, "Is the dashboard shown? only answer in true or false dont elaborate your answer", req.Prompt)
	assert.Equal(t, []byte("png"), req.Image)
}

func TestFormatElements(t *testing.T) {
	out := llm.FormatElements([]browser.Element{
		{Index: 0, Tag: "input", Type: "email", Placeholder: "Email", Name: "email"},
	})
	assert.Equal(t, "[0] <input type=\"email\" name=\"email\" placeholder=\"Email\">\n", out)
}
