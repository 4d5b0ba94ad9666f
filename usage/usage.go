// Package usage accumulates model token usage and estimated cost for a single run.
package usage

import (
	"strings"
	"sync"
)

// ImageTokens is the flat token charge applied per image sent to a vision model.
const ImageTokens = 85

// Price is the cost in USD per one million tokens.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// DefaultPricing is keyed by model name prefix. The longest matching prefix wins.
var DefaultPricing = map[string]Price{
	"gpt-4o":                  {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":             {Input: 0.15, Output: 0.60},
	"claude-sonnet":           {Input: 3.00, Output: 15.00},
	"claude-haiku":            {Input: 0.80, Output: 4.00},
	"claude-opus":             {Input: 15.00, Output: 75.00},
	"anthropic.claude-sonnet": {Input: 3.00, Output: 15.00},
	"anthropic.claude-haiku":  {Input: 0.80, Output: 4.00},
	"gemini-2.5-flash":        {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":          {Input: 1.25, Output: 10.00},
	"gemini-embedding":        {Input: 0.15, Output: 0},
	"text-embedding-004":      {Input: 0.025, Output: 0},
	"text-embedding-3-small":  {Input: 0.02, Output: 0},
}

// fallbackPrice applies to models missing from the pricing table.
var fallbackPrice = Price{Input: 2.50, Output: 10.00}

// Call is one model invocation.
type Call struct {
	Model            string `json:"model"`
	Purpose          string `json:"purpose"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Images           int    `json:"images,omitempty"`
}

// Summary is the accumulated usage of a run.
type Summary struct {
	TotalTokens      int     `json:"totalTokens"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	ImageTokens      int     `json:"imageTokens"`
	EstimatedCost    float64 `json:"estimatedCost"`
	Calls            []Call  `json:"calls,omitempty"`
}

// Tracker is safe for concurrent use; embedding fan-out records from several goroutines.
type Tracker struct {
	mu      sync.Mutex
	pricing map[string]Price
	summary Summary
}

// NewTracker creates a tracker. A nil pricing table selects DefaultPricing.
func NewTracker(pricing map[string]Price) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Tracker{pricing: pricing}
}

// Record adds a call to the running totals. Recording on a nil tracker is a no-op.
func (t *Tracker) Record(c Call) {
	if t == nil {
		return
	}
	imageTokens := c.Images * ImageTokens
	price := t.priceFor(c.Model)
	cost := float64(c.PromptTokens+imageTokens)/1e6*price.Input +
		float64(c.CompletionTokens)/1e6*price.Output

	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.PromptTokens += c.PromptTokens
	t.summary.CompletionTokens += c.CompletionTokens
	t.summary.ImageTokens += imageTokens
	t.summary.TotalTokens += c.PromptTokens + c.CompletionTokens + imageTokens
	t.summary.EstimatedCost += cost
	t.summary.Calls = append(t.summary.Calls, c)
}

// Summary returns a snapshot of the accumulated usage.
func (t *Tracker) Summary() Summary {
	if t == nil {
		return Summary{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.summary
	s.Calls = append([]Call(nil), t.summary.Calls...)
	return s
}

func (t *Tracker) priceFor(model string) Price {
	model = strings.ToLower(model)
	best, bestLen := fallbackPrice, -1
	for prefix, p := range t.pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
		}
	}
	return best
}
