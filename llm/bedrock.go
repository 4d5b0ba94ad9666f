package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// BedrockModel implements Model with Anthropic models hosted on AWS Bedrock.
type BedrockModel struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockModel creates a Bedrock-backed model using the default AWS credential chain.
func NewBedrockModel(ctx context.Context, region, modelID string) (*BedrockModel, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &BedrockModel{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

func (m *BedrockModel) Name() string { return m.modelID }

// bedrockRequestBody builds the anthropic messages payload for InvokeModel.
func bedrockRequestBody(req Request) ([]byte, error) {
	content := make([]map[string]interface{}, 0, 2)
	if len(req.Image) > 0 {
		content = append(content, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": "image/png",
				"data":       base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}
	content = append(content, map[string]interface{}{
		"type": "text",
		"text": req.Prompt,
	})

	body := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens(req),
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": content,
			},
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return payload, nil
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseBedrockResponse(body []byte) (*bedrockResponse, string, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, "", ErrEmptyResponse
	}
	return &resp, out, nil
}

func (m *BedrockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	payload, err := bedrockRequestBody(req)
	if err != nil {
		return nil, err
	}

	output, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, deperr.Unavailable("bedrock", fmt.Errorf("failed to invoke Bedrock model: %w", err))
	}

	resp, text, err := parseBedrockResponse(output.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Text: text,
		Usage: usage.Call{
			Model:            m.modelID,
			Purpose:          req.Purpose,
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			Images:           imageCount(req),
		},
	}, nil
}
