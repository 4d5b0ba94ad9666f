package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBedrockRequestBody(t *testing.T) {
	payload, err := bedrockRequestBody(Request{System: "sys", Prompt: "find it", Image: []byte("png")})
	require.NoError(t, err)

	var body struct {
		Version   string `json:"anthropic_version"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
		Messages  []struct {
			Role    string                   `json:"role"`
			Content []map[string]interface{} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))

	assert.Equal(t, "bedrock-2023-05-31", body.Version)
	assert.Equal(t, defaultMaxTokens, body.MaxTokens)
	assert.Equal(t, "sys", body.System)
	require.Len(t, body.Messages, 1)
	require.Len(t, body.Messages[0].Content, 2)
	assert.Equal(t, "image", body.Messages[0].Content[0]["type"])
	assert.Equal(t, "text", body.Messages[0].Content[1]["type"])
	assert.Equal(t, "find it", body.Messages[0].Content[1]["text"])
}

func TestParseBedrockResponse(t *testing.T) {
	resp, text, err := parseBedrockResponse([]byte(`{
		"content": [{"type": "text", "text": " {\"selector\": \"#a\"} "}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 120, "output_tokens": 8}
	}`))
	require.NoError(t, err)
	assert.Equal(t, `{"selector": "#a"}`, text)
	assert.Equal(t, 120, resp.Usage.InputTokens)
	assert.Equal(t, 8, resp.Usage.OutputTokens)

	_, _, err = parseBedrockResponse([]byte(`{"content": []}`))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
