package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain object", input: `{"selector": "#submit"}`, want: "#submit"},
		{name: "fenced", input: "```json\n{\"selector\": \"#submit\"}\n```", want: "#submit"},
		{name: "prose around object", input: `Sure! {"selector": "button:has-text(\"Go\")"} is the answer.`, want: `button:has-text("Go")`},
		{name: "braces inside string", input: `{"selector": "a[data-x='{}']"}`, want: "a[data-x='{}']"},
		{name: "trailing comma", input: `{"selector": "#a",}`, want: "#a"},
		{name: "missing closing brace", input: `{"selector": "#a"`, want: "#a"},
		{name: "no object", input: `the selector is #a`, wantErr: ErrNoJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Selector string `json:"selector"`
			}
			err := DecodeJSON(tt.input, &out)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Selector)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
	assert.Equal(t, "", StripFences("```"))
}
