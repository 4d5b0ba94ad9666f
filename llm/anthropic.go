package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// AnthropicModel implements Model with the Anthropic Messages API.
type AnthropicModel struct {
	client anthropic.Client
	model  string
}

func NewAnthropicModel(apiKey, model string) *AnthropicModel {
	return &AnthropicModel{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (m *AnthropicModel) Name() string { return m.model }

func (m *AnthropicModel) Complete(ctx context.Context, req Request) (*Response, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if len(req.Image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(req.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(maxTokens(req)),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, deperr.Unavailable("anthropic", fmt.Errorf("Claude API call failed: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Text: strings.TrimSpace(text.String()),
		Usage: usage.Call{
			Model:            m.model,
			Purpose:          req.Purpose,
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			Images:           imageCount(req),
		},
	}, nil
}
