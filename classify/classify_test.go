package classify

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"category":"work"}`, `{"category":"work"}`},
		{"fenced", "```json\n{\"category\":\"work\"}\n```", `{"category":"work"}`},
		{"surrounded by prose", `Here you go: {"category":"work"} hope that helps`, `{"category":"work"}`},
		{"no object", "sorry, I cannot", "sorry, I cannot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.in); got != tc.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	in := "```json\n[{\"name\":\"budget\"}]\n```"
	want := `[{"name":"budget"}]`
	if got := extractJSONArray(in); got != want {
		t.Errorf("extractJSONArray = %q, want %q", got, want)
	}
}

func TestCoerceSuggestions_NormalizesAndCaps(t *testing.T) {
	wire := []tagWire{
		{Name: "  Budget  Planning ", Color: "#3b82f6", Confidence: 0.9, Reasoning: "money"},
		{Name: "HEALTH", Color: "not-a-color", Confidence: 1.7, Reasoning: "clamped"},
		{Name: "too many words here", Color: "#3b82f6", Confidence: 0.5},
		{Name: "budget planning", Color: "#3b82f6", Confidence: 0.8, Reasoning: "duplicate"},
		{Name: "one", Color: "#ef4444", Confidence: 0.6},
		{Name: "two", Color: "#ef4444", Confidence: 0.6},
		{Name: "three", Color: "#ef4444", Confidence: 0.6},
		{Name: "four", Color: "#ef4444", Confidence: 0.6},
	}

	got := coerceSuggestions(wire, nil)
	if len(got) != maxSuggestions {
		t.Fatalf("Expected %d suggestions, got %d", maxSuggestions, len(got))
	}
	if got[0].Name != "budget planning" {
		t.Errorf("Expected normalized name, got %q", got[0].Name)
	}
	if got[1].Name != "health" {
		t.Errorf("Expected lowercased name, got %q", got[1].Name)
	}
	if got[1].Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %v", got[1].Confidence)
	}
	if !onPalette(got[1].Color) {
		t.Errorf("Expected unknown color remapped onto palette, got %q", got[1].Color)
	}
}

func TestCoerceSuggestions_DropsExisting(t *testing.T) {
	wire := []tagWire{
		{Name: "groceries", Color: "#22c55e", Confidence: 0.9},
		{Name: "Groceries", Color: "#22c55e", Confidence: 0.9},
		{Name: "errands", Color: "#22c55e", Confidence: 0.7},
	}
	got := coerceSuggestions(wire, []string{"groceries"})
	if len(got) != 1 || got[0].Name != "errands" {
		t.Errorf("Expected only the new tag, got %v", got)
	}
}

func TestPaletteColor(t *testing.T) {
	if got := paletteColor("#3B82F6", 0); got != "#3b82f6" {
		t.Errorf("Expected case-insensitive palette match, got %q", got)
	}
	if got := paletteColor("blue", 3); !onPalette(got) {
		t.Errorf("Expected fallback onto palette, got %q", got)
	}
}

func onPalette(color string) bool {
	for _, p := range TagPalette {
		if color == p {
			return true
		}
	}
	return false
}
