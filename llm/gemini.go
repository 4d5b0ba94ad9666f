package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiModel implements Model with the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiModel{client: client, model: model}, nil
}

func (m *GeminiModel) Name() string { return m.model }

func (m *GeminiModel) Complete(ctx context.Context, req Request) (*Response, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, "image/png"))
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		return nil, deperr.Unavailable("gemini", fmt.Errorf("Gemini API call failed: %w", err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	call := usage.Call{
		Model:   m.model,
		Purpose: req.Purpose,
		Images:  imageCount(req),
	}
	if resp.UsageMetadata != nil {
		call.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		call.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return &Response{Text: text, Usage: call}, nil
}

// GeminiEmbedder implements Embedder with Gemini embedding models.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

func (e *GeminiEmbedder) Model() string { return e.model }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		cfg.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, deperr.Unavailable("gemini embeddings", fmt.Errorf("embedding generation failed: %w", err))
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	embedding := result.Embeddings[0].Values
	if e.dimension > 0 && len(embedding) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(embedding))
	}
	return embedding, nil
}
