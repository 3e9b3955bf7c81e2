package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/classify"
	"github.com/daybook-ai/memengine/config"
	"github.com/daybook-ai/memengine/memory"
	"github.com/daybook-ai/memengine/memory/embedder/cached"
	"github.com/daybook-ai/memengine/memory/embedder/mock"
	"github.com/daybook-ai/memengine/memory/embedder/openai"
	chromemstore "github.com/daybook-ai/memengine/memory/store/chromem"
	sqlitestore "github.com/daybook-ai/memengine/memory/store/sqlite"
)

// components holds every wired dependency for a command run.
type components struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     memory.Store
	embedder  memory.Embedder
	pipeline  *memory.Pipeline
	retriever *memory.Retriever
	suggester memory.TagSuggester

	cache *cached.Embedder
}

// initComponents loads config and wires the store, embedders, classifier
// and services. Missing API keys degrade rather than fail: without an
// embedding key a deterministic offline embedder is used, and without a
// classifier key every document falls back to the "general" category.
func initComponents() (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	var base memory.Embedder
	if key := cfg.EmbeddingAPIKey(); key != "" {
		client, err := openai.New(openai.Config{
			APIKey:     key,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		base = client
	} else {
		logger.Warn("no embedding API key, using deterministic offline embedder",
			zap.String("env", cfg.Embedding.APIKeyEnv))
		base = mock.New(cfg.Embedding.Dimensions)
	}
	cache, err := cached.New(base, cfg.Embedding.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	var store memory.Store
	switch cfg.Store.Type {
	case "chromem":
		store, err = chromemstore.New(cache.Dimensions(), chromemstore.WithLogger(logger))
	case "sqlite":
		store, err = sqlitestore.New(cfg.Store.Path, cache.Dimensions())
	default:
		err = fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var categorizer memory.Categorizer
	var suggester memory.TagSuggester
	if key := cfg.ClassifierAPIKey(); key != "" {
		classifier, err := classify.New(key,
			classify.WithModel(cfg.Classifier.Model),
			classify.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("init classifier: %w", err)
		}
		categorizer = classifier
		suggester = classify.NewSuggester(classifier.Client(),
			classify.WithModel(cfg.Tags.Model),
			classify.WithLogger(logger))
	} else {
		logger.Warn("no classifier API key, all documents will be categorized as general",
			zap.String("env", cfg.Classifier.APIKeyEnv))
		categorizer = unavailableCategorizer{}
	}

	pipeline := memory.NewPipeline(store, cache, categorizer,
		memory.WithChunker(memory.NewChunker(cfg.Chunker.MaxChunkLength)),
		memory.WithPipelineLogger(logger))
	retriever := memory.NewRetriever(store, cache,
		memory.WithSearchDefaults(cfg.Retrieval.TopK, cfg.Retrieval.Threshold),
		memory.WithRetrieverLogger(logger))

	return &components{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		embedder:  cache,
		pipeline:  pipeline,
		retriever: retriever,
		suggester: suggester,
		cache:     cache,
	}, nil
}

// close releases store and cache resources.
func (c *components) close() {
	if err := c.store.Close(); err != nil {
		c.logger.Warn("store close failed", zap.Error(err))
	}
	c.cache.Close()
	_ = c.logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// unavailableCategorizer always fails, which makes the pipeline apply
// its deterministic fallback classification.
type unavailableCategorizer struct{}

func (unavailableCategorizer) Categorize(ctx context.Context, content string) (memory.Classification, error) {
	return memory.Classification{}, &memory.ExternalServiceError{
		Service: "classification",
		Err:     errors.New("classifier not configured"),
	}
}
