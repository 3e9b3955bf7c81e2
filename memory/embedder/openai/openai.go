// Package openai provides the remote embedding client backed by the
// OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"math"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/daybook-ai/memengine/memory"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// Config configures the embedding client.
type Config struct {
	// APIKey authenticates against the embeddings API. Required.
	APIKey string

	// Model selects the embedding model. Default: DefaultModel.
	Model string

	// Dimensions overrides the vector size implied by the model.
	Dimensions int

	// MaxConcurrency bounds EmbedBatch fan-out. Default: 8.
	MaxConcurrency int
}

// Client embeds text via the OpenAI API. It performs no retries; retry
// policy belongs to the orchestrator.
type Client struct {
	api         *openai.Client
	model       string
	dims        int
	concurrency int
}

// New creates an embedding client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions(model)
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       model,
		dims:        dims,
		concurrency: concurrency,
	}, nil
}

// Embed converts one text to a unit-normalized embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &memory.ValidationError{Field: "text", Reason: "empty"}
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, &memory.ExternalServiceError{Service: "embedding", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &memory.ExternalServiceError{Service: "embedding", Err: errors.New("no embedding returned")}
	}
	raw := resp.Data[0].Embedding
	v := make([]float32, len(raw))
	for i := range raw {
		v[i] = float32(raw[i])
	}
	l2normalize(v)
	return v, nil
}

// EmbedBatch embeds texts concurrently with bounded fan-out. The result
// is index-aligned with the input; the first failure aborts the batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, t := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t string) {
			defer wg.Done()
			defer func() { <-sem }()
			vectors[i], errs[i] = c.Embed(ctx, t)
		}(i, t)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (c *Client) Dimensions() int { return c.dims }

func modelDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// l2normalize scales v to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
