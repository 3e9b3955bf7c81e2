package classify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/daybook-ai/memengine/memory"
)

// TagPalette is the fixed set of colors a suggestion may carry. Unknown
// colors from the model are remapped onto it.
var TagPalette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#14b8a6", // teal
	"#3b82f6", // blue
	"#6366f1", // indigo
	"#8b5cf6", // violet
	"#ec4899", // pink
	"#64748b", // slate
}

const (
	minSuggestions = 3
	maxSuggestions = 5
)

const tagSystemPrompt = `You suggest organizational tags for a personal productivity item. Respond with a single JSON array, nothing else. Each element:
{"name": "lowercase tag, one or two words", "color": "hex color", "confidence": 0.0-1.0, "reasoning": "one short sentence"}
Suggest 3 to 5 tags. Pick colors from: #ef4444, #f97316, #eab308, #22c55e, #14b8a6, #3b82f6, #6366f1, #8b5cf6, #ec4899, #64748b.
Prefer tags distinct from the existing ones listed in the request. Do not wrap the JSON in markdown fences.`

// Suggester proposes tags for content with Claude. It implements
// memory.TagSuggester.
type Suggester struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewSuggester creates a Suggester around an existing Claude client.
func NewSuggester(client *anthropic.Client, opts ...Option) *Suggester {
	c := NewWithClient(client, opts...)
	return &Suggester{client: c.client, model: c.model, logger: c.logger}
}

// tagWire is the JSON element shape the model is asked to return.
type tagWire struct {
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SuggestTags asks Claude for 3 to 5 tag suggestions. Suggestions are
// validated and coerced onto the palette; near-duplicates of existing
// tags are dropped. Remote or parse failures return an error so the
// caller can degrade to an empty list.
func (s *Suggester) SuggestTags(ctx context.Context, req memory.TagRequest) ([]memory.TagSuggestion, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &memory.ValidationError{Field: "content", Reason: "empty"}
	}
	if _, err := memory.ParseTagResourceType(string(req.ResourceType)); err != nil {
		return nil, err
	}

	var prompt strings.Builder
	prompt.WriteString("Resource type: ")
	prompt.WriteString(string(req.ResourceType))
	prompt.WriteString("\n")
	if len(req.ExistingTags) > 0 {
		prompt.WriteString("Existing tags: ")
		prompt.WriteString(strings.Join(req.ExistingTags, ", "))
		prompt.WriteString("\n")
	}
	prompt.WriteString("Content:\n")
	prompt.WriteString(truncate(req.Content, maxContentChars))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.String())),
		},
		System: []anthropic.TextBlockParam{
			{Text: tagSystemPrompt},
		},
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &memory.ExternalServiceError{Service: "tag suggestion", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	var wire []tagWire
	if err := json.Unmarshal([]byte(extractJSONArray(text)), &wire); err != nil {
		s.logger.Warn("unparseable tag response", zap.Error(err))
		return nil, &memory.ExternalServiceError{Service: "tag suggestion", Err: err}
	}

	suggestions := coerceSuggestions(wire, req.ExistingTags)
	if len(suggestions) < minSuggestions {
		s.logger.Debug("too few valid tag suggestions", zap.Int("count", len(suggestions)))
	}
	return suggestions, nil
}

// coerceSuggestions normalizes raw model output into valid suggestions:
// names lowercased and limited to two words, confidence clamped to
// [0,1], colors mapped onto the palette, duplicates of existing tags
// dropped, at most maxSuggestions kept.
func coerceSuggestions(wire []tagWire, existing []string) []memory.TagSuggestion {
	existingSet := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		existingSet[normalizeTagName(name)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []memory.TagSuggestion
	for i, w := range wire {
		name := normalizeTagName(w.Name)
		if name == "" || len(strings.Fields(name)) > 2 {
			continue
		}
		if _, dup := existingSet[name]; dup {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		out = append(out, memory.TagSuggestion{
			Name:       name,
			Color:      paletteColor(w.Color, i),
			Confidence: clamp01(w.Confidence),
			Reasoning:  strings.TrimSpace(w.Reasoning),
		})
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func normalizeTagName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// paletteColor returns the color if it is on the palette, otherwise a
// palette color picked by position so remapped tags stay distinct.
func paletteColor(color string, i int) string {
	color = strings.ToLower(strings.TrimSpace(color))
	for _, p := range TagPalette {
		if color == p {
			return p
		}
	}
	return TagPalette[i%len(TagPalette)]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// extractJSONArray keeps the outermost JSON array from s, stripping any
// fences or prose around it.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
