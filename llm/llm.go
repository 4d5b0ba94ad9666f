// Package llm defines the vision/text model and embedding contracts used to
// turn natural-language step targets into locators, with provider
// implementations for AWS Bedrock, Anthropic and Google Gemini.
package llm

import (
	"context"
	"errors"

	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

var (
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrNoJSON is returned when an answer contains no JSON object.
	ErrNoJSON = errors.New("no JSON object in model response")
)

// Request is a single completion request. Image, when set, is a PNG screenshot.
type Request struct {
	System    string
	Prompt    string
	Image     []byte
	MaxTokens int
	Purpose   string
}

// Response carries the answer text and the usage of the call that produced it.
type Response struct {
	Text  string
	Usage usage.Call
}

// Model is a vision-capable completion model.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

const defaultMaxTokens = 1024

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func imageCount(req Request) int {
	if len(req.Image) > 0 {
		return 1
	}
	return 0
}
