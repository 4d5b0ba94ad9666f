package scenario

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Step
	}{
		{
			name: "click with cached selector",
			raw:  `{"id":2,"actionType":"Click Element","details":{"element":"Submit"},"cache":true,"selector":"button#submit","imageOnlyAttempted":true}`,
			want: Step{ID: 2, Action: ClickElement{Element: "Submit"}, Cache: true, Selector: "button#submit", ImageOnlyAttempted: true},
		},
		{
			name: "fill with null selector",
			raw:  `{"id":1,"actionType":"Fill Input","details":{"description":"email field","value":"a@b.com"},"cache":false,"selector":null}`,
			want: Step{ID: 1, Action: FillInput{Description: "email field", Value: "a@b.com"}},
		},
		{
			name: "assertion",
			raw:  `{"id":3,"actionType":"AI Visual Assertion","question":"Is the dashboard visible?"}`,
			want: Step{ID: 3, Action: VisualAssertion{Question: "Is the dashboard visible?"}},
		},
		{
			name: "delay as number",
			raw:  `{"id":4,"actionType":"Delay","delayTime":1500}`,
			want: Step{ID: 4, Action: Delay{Duration: 1500 * time.Millisecond}},
		},
		{
			name: "delay as string",
			raw:  `{"id":5,"actionType":"Delay","delayTime":"250"}`,
			want: Step{ID: 5, Action: Delay{Duration: 250 * time.Millisecond}},
		},
		{
			name: "import",
			raw:  `{"id":6,"actionType":"Import Reusable Test","importedTestId":"5b0c2f7e-1d7e-4a44-9d4a-3b2f1f4f8c11"}`,
			want: Step{ID: 6, Action: ImportReusableTest{ScenarioID: "5b0c2f7e-1d7e-4a44-9d4a-3b2f1f4f8c11"}},
		},
		{
			name: "upload in overlay",
			raw:  `{"id":7,"actionType":"Upload File","details":{"description":"avatar picker","file_content":"avatar.png"},"presentInOverlay":true,"currentUrl":"https://x.test/profile"}`,
			want: Step{ID: 7, Action: UploadFile{Description: "avatar picker", FileName: "avatar.png"}, PresentInOverlay: true, CurrentURL: "https://x.test/profile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Step
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStep_UnmarshalJSON_UnknownAction(t *testing.T) {
	var s Step
	err := json.Unmarshal([]byte(`{"id":1,"actionType":"Hover"}`), &s)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestStep_UnmarshalJSON_DelayOutOfRange(t *testing.T) {
	tests := []string{
		`{"id":1,"actionType":"Delay","delayTime":1e13}`,
		`{"id":1,"actionType":"Delay","delayTime":"1e13"}`,
		`{"id":1,"actionType":"Delay","delayTime":-1e13}`,
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			var s Step
			err := json.Unmarshal([]byte(raw), &s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}

	var s Step
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"actionType":"Delay","delayTime":9223372036854}`), &s))
	assert.Equal(t, Delay{Duration: 9223372036854 * time.Millisecond}, s.Action)
}

func TestStep_MarshalJSON_WireShape(t *testing.T) {
	s := Step{ID: 2, Action: ClickElement{Element: "Submit"}, Cache: true, Selector: "text=Submit"}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Click Element", raw["actionType"])
	assert.Equal(t, "text=Submit", raw["selector"])
	assert.Equal(t, true, raw["cache"])
	assert.Equal(t, "Submit", raw["details"].(map[string]interface{})["element"])

	uncached, err := json.Marshal(Step{ID: 3, Action: Delay{Duration: time.Second}})
	require.NoError(t, err)
	assert.Contains(t, string(uncached), `"selector":null`)
	assert.Contains(t, string(uncached), `"delayTime":1000`)
}

func TestStep_MarshalJSON_NilAction(t *testing.T) {
	_, err := json.Marshal(Step{ID: 1})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestStep_Target(t *testing.T) {
	assert.Equal(t, "Submit", Step{Action: ClickElement{Element: "Submit"}}.Target())
	assert.Equal(t, "email", Step{Action: FillInput{Description: "email", Element: "other"}}.Target())
	assert.Equal(t, "other", Step{Action: FillInput{Element: "other"}}.Target())
	assert.Equal(t, "chooser", Step{Action: UploadFile{Description: "chooser"}}.Target())
	assert.Empty(t, Step{Action: Delay{}}.Target())
}

func TestStep_Validate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr error
	}{
		{name: "valid click", step: Step{ID: 1, Action: ClickElement{Element: "Go"}}},
		{name: "click without element", step: Step{ID: 1, Action: ClickElement{}}, wantErr: ErrMissingStepField},
		{name: "assertion without question", step: Step{ID: 1, Action: VisualAssertion{}}, wantErr: ErrMissingStepField},
		{name: "negative delay", step: Step{ID: 1, Action: Delay{Duration: -time.Second}}, wantErr: ErrMissingStepField},
		{name: "upload without file", step: Step{ID: 1, Action: UploadFile{Description: "chooser"}}, wantErr: ErrMissingStepField},
		{name: "nil action", step: Step{ID: 1}, wantErr: ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSteps_Clone(t *testing.T) {
	original := loginScenario().Steps
	clone := original.Clone()

	clone[1].Cache = true
	clone[1].Selector = "button[type=submit]"
	clone[0].Action = FillInput{Description: "changed"}

	assert.False(t, original[1].Cache)
	assert.Empty(t, original[1].Selector)
	assert.Equal(t, "email field", original[0].Target())
	assert.Nil(t, Steps(nil).Clone())
}

func TestSteps_Validate_DuplicateIDs(t *testing.T) {
	steps := Steps{
		{ID: 1, Action: ClickElement{Element: "a"}},
		{ID: 1, Action: ClickElement{Element: "b"}},
	}
	assert.ErrorIs(t, steps.Validate(), ErrInvalidSteps)
}
