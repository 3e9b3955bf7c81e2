// Package classify provides the Claude-backed categorizer and tag
// suggester. Both speak strict JSON to the model and validate everything
// that comes back; callers decide what a failure means (the ingestion
// pipeline falls back to a deterministic classification, the tag
// endpoint returns an empty list).
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/memory"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// maxContentChars bounds how much content is sent to the model per call.
const maxContentChars = 2000

const classifySystemPrompt = `You analyze a personal document and respond with a single JSON object, nothing else. Schema:
{"summary": "one or two sentence summary", "entities_or_insights": ["notable entities, amounts, dates or insights"], "category": "finance|work|health|general"}
The category must be exactly one of: finance, work, health, general. Do not wrap the JSON in markdown fences.`

// Classifier categorizes content with Claude. It implements
// memory.Categorizer.
type Classifier struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(c *Classifier) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the classifier logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Classifier with its own Claude client.
func New(apiKey string, opts ...Option) (*Classifier, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewWithClient(&client, opts...), nil
}

// NewWithClient creates a Classifier around an existing Claude client.
func NewWithClient(client *anthropic.Client, opts ...Option) *Classifier {
	c := &Classifier{
		client: client,
		model:  DefaultModel,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client exposes the underlying Claude client so siblings like the tag
// suggester can share one connection.
func (c *Classifier) Client() *anthropic.Client { return c.client }

// classificationWire is the JSON shape the model is asked to return.
type classificationWire struct {
	Summary            string   `json:"summary"`
	EntitiesOrInsights []string `json:"entities_or_insights"`
	Category           string   `json:"category"`
}

// Categorize asks Claude to summarize and classify content. Any remote
// or parse failure comes back as an ExternalServiceError; the caller
// applies its own fallback.
func (c *Classifier) Categorize(ctx context.Context, content string) (memory.Classification, error) {
	if strings.TrimSpace(content) == "" {
		return memory.Classification{}, &memory.ValidationError{Field: "content", Reason: "empty"}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(truncate(content, maxContentChars))),
		},
		System: []anthropic.TextBlockParam{
			{Text: classifySystemPrompt},
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return memory.Classification{}, &memory.ExternalServiceError{Service: "classification", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	var wire classificationWire
	if err := json.Unmarshal([]byte(extractJSON(text)), &wire); err != nil {
		c.logger.Warn("unparseable classification response", zap.Error(err))
		return memory.Classification{}, &memory.ExternalServiceError{
			Service: "classification",
			Err:     fmt.Errorf("parse response: %w", err),
		}
	}

	category, err := memory.ParseCategory(wire.Category)
	if err != nil {
		return memory.Classification{}, &memory.ExternalServiceError{
			Service: "classification",
			Err:     fmt.Errorf("model returned unknown category %q", wire.Category),
		}
	}
	if strings.TrimSpace(wire.Summary) == "" {
		return memory.Classification{}, &memory.ExternalServiceError{
			Service: "classification",
			Err:     errors.New("model returned empty summary"),
		}
	}

	return memory.Classification{
		Summary:            strings.TrimSpace(wire.Summary),
		EntitiesOrInsights: wire.EntitiesOrInsights,
		Category:           category,
	}, nil
}

// truncate limits s to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object. Models occasionally fence output despite
// instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
