package pageindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/hairizuan-noorazman/scenario-runner/internal/deperr"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

var (
	// ErrEmptyPage is returned when a page has no indexable content.
	ErrEmptyPage = errors.New("page has no indexable content")

	// ErrUnknownPage is returned when searching a key that is not indexed.
	ErrUnknownPage = errors.New("page is not indexed")
)

// PurposeEmbedding is recorded with the usage of page and query embeddings.
const PurposeEmbedding = "page_embedding"

// Chunk is a retrieved piece of page markup.
type Chunk struct {
	Content    string
	Similarity float32
}

// Config configures an Index.
type Config struct {
	// CacheSize is the number of pages kept indexed.
	CacheSize int
	Splitter  Splitter
	Batch     BatchConfig
	// EmbedAttempts and EmbedDelay set the linear retry of single embeddings:
	// attempt n waits n*EmbedDelay before the next one.
	EmbedAttempts int
	EmbedDelay    time.Duration
	// CountTokens estimates embedding usage. Defaults to CountTokens.
	CountTokens func(string) int
}

func DefaultConfig() Config {
	return Config{
		CacheSize:     32,
		Splitter:      DefaultSplitter(),
		Batch:         DefaultBatchConfig(),
		EmbedAttempts: 5,
		EmbedDelay:    time.Second,
		CountTokens:   CountTokens,
	}
}

// Index embeds page markup on demand and answers similarity queries against it.
// Pages are keyed by URL and content, so an unchanged page is embedded once.
type Index struct {
	embedder llm.Embedder
	logger   logger.Logger
	cfg      Config
	batcher  *Batcher
	db       *chromem.DB
	pages    *lru.Cache[string, string]

	mu sync.Mutex
}

func New(embedder llm.Embedder, log logger.Logger, cfg Config) (*Index, error) {
	def := DefaultConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.Splitter.Size <= 0 {
		cfg.Splitter = def.Splitter
	}
	if cfg.EmbedAttempts <= 0 {
		cfg.EmbedAttempts = def.EmbedAttempts
	}
	if cfg.CountTokens == nil {
		cfg.CountTokens = CountTokens
	}

	x := &Index{
		embedder: embedder,
		logger:   log,
		cfg:      cfg,
		batcher:  NewBatcher(cfg.Batch, log),
		db:       chromem.NewDB(),
	}
	pages, err := lru.NewWithEvict[string, string](cfg.CacheSize, func(key, url string) {
		if err := x.db.DeleteCollection(key); err != nil {
			x.logger.Warn(context.Background(), "failed to drop page collection", map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	x.pages = pages
	return x, nil
}

// Key identifies a page by URL and cleaned content.
func Key(url, content string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + content))
	return "page-" + hex.EncodeToString(sum[:12])
}

// Ensure indexes the page unless an identical copy is already indexed, and
// returns its key.
func (x *Index) Ensure(ctx context.Context, url, html string, tracker *usage.Tracker) (string, error) {
	cleaned, err := CleanHTML(html)
	if err != nil {
		return "", err
	}
	key := Key(url, cleaned)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.pages.Contains(key) {
		return key, nil
	}

	chunks := x.cfg.Splitter.Split(cleaned)
	if len(chunks) == 0 {
		return "", ErrEmptyPage
	}

	vectors := make([][]float32, len(chunks))
	err = x.batcher.Run(ctx, len(chunks), func(ctx context.Context, i int) error {
		v, err := x.embed(ctx, chunks[i])
		if err != nil {
			return err
		}
		vectors[i] = v
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to embed page: %w", err)
	}

	collection, err := x.db.GetOrCreateCollection(key, map[string]string{"url": url}, x.embed)
	if err != nil {
		return "", fmt.Errorf("create page collection: %w", err)
	}
	tokens := 0
	for i, chunk := range chunks {
		err := collection.AddDocument(ctx, chromem.Document{
			ID:        fmt.Sprintf("%s-%d", key, i),
			Content:   chunk,
			Embedding: vectors[i],
			Metadata:  map[string]string{"url": url},
		})
		if err != nil {
			_ = x.db.DeleteCollection(key)
			return "", fmt.Errorf("add chunk %d: %w", i, err)
		}
		tokens += x.cfg.CountTokens(chunk)
	}
	tracker.Record(usage.Call{
		Model:        x.embedder.Model(),
		Purpose:      PurposeEmbedding,
		PromptTokens: tokens,
	})

	x.pages.Add(key, url)
	x.logger.Info(ctx, "page indexed", map[string]interface{}{
		"url":    url,
		"key":    key,
		"chunks": len(chunks),
		"tokens": tokens,
	})
	return key, nil
}

// Search returns up to topK chunks of the page most similar to query.
func (x *Index) Search(ctx context.Context, key, query string, topK int, tracker *usage.Tracker) ([]Chunk, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.pages.Get(key); !ok {
		return nil, ErrUnknownPage
	}
	collection := x.db.GetCollection(key, x.embed)
	if collection == nil {
		return nil, ErrUnknownPage
	}

	if topK <= 0 {
		topK = 5
	}
	if n := collection.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query page collection: %w", err)
	}
	tracker.Record(usage.Call{
		Model:        x.embedder.Model(),
		Purpose:      PurposeEmbedding,
		PromptTokens: x.cfg.CountTokens(query),
	})

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{Content: r.Content, Similarity: r.Similarity})
	}
	return chunks, nil
}

// embed calls the embedder with linear backoff between attempts.
func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: x.cfg.EmbedDelay}, uint64(x.cfg.EmbedAttempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		v, err := x.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}, b)
	if err != nil {
		return nil, deperr.Unavailable("embedding service", err)
	}
	return vec, nil
}

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
