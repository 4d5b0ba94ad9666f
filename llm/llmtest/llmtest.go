// Package llmtest provides scripted llm.Model and llm.Embedder fakes.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// ErrExhausted is returned when a Model has no scripted reply left.
var ErrExhausted = errors.New("llmtest: no scripted reply")

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Model answers requests from per-purpose queues, falling back to a
// responder function. Every request is recorded.
type Model struct {
	ModelName string
	// Respond answers requests whose purpose queue is empty.
	Respond func(req llm.Request) (string, error)
	// PromptTokens and CompletionTokens are reported for every call.
	PromptTokens     int
	CompletionTokens int

	mu       sync.Mutex
	queues   map[string][]Reply
	requests []llm.Request
}

var _ llm.Model = (*Model)(nil)

func NewModel() *Model {
	return &Model{ModelName: "test-model", PromptTokens: 100, CompletionTokens: 10, queues: map[string][]Reply{}}
}

// Queue appends replies for requests with the given purpose.
func (m *Model) Queue(purpose string, replies ...Reply) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[purpose] = append(m.queues[purpose], replies...)
	return m
}

// Requests returns the recorded requests.
func (m *Model) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// RequestsFor returns the recorded requests with the given purpose.
func (m *Model) RequestsFor(purpose string) []llm.Request {
	var out []llm.Request
	for _, r := range m.Requests() {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

func (m *Model) Name() string { return m.ModelName }

func (m *Model) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var reply Reply
	queued := false
	if q := m.queues[req.Purpose]; len(q) > 0 {
		reply, m.queues[req.Purpose] = q[0], q[1:]
		queued = true
	}
	respond := m.Respond
	m.mu.Unlock()

	switch {
	case queued:
	case respond != nil:
		reply.Text, reply.Err = respond(req)
	default:
		reply.Err = ErrExhausted
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	images := 0
	if len(req.Image) > 0 {
		images = 1
	}
	return &llm.Response{
		Text: reply.Text,
		Usage: usage.Call{
			Model:            m.ModelName,
			Purpose:          req.Purpose,
			PromptTokens:     m.PromptTokens,
			CompletionTokens: m.CompletionTokens,
			Images:           images,
		},
	}, nil
}

// Embedder returns deterministic bag-of-words vectors so that texts sharing
// words are similar.
type Embedder struct {
	Dim int
	// Fail, when set, is consulted before every call.
	Fail func(text string, call int) error

	mu    sync.Mutex
	calls int
}

var _ llm.Embedder = (*Embedder)(nil)

func NewEmbedder() *Embedder { return &Embedder{Dim: 256} }

func (e *Embedder) Model() string { return "test-embedding" }

// Calls returns how many times Embed was invoked.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	fail := e.Fail
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail != nil {
		if err := fail(text, call); err != nil {
			return nil, err
		}
	}

	vec := make([]float32, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.Dim)]++
	}
	vec[0] += 0.01
	return vec, nil
}
