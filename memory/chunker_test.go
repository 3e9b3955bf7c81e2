package memory_test

import (
	"strings"
	"testing"

	"github.com/daybook-ai/memengine/memory"
)

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := memory.NewChunker(1000)
	text := "Paid rent $1200 on the 1st. Renewed car insurance for $800/year."

	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Errorf("Expected chunk to equal input, got %q", chunks[0])
	}
}

func TestChunker_RespectsMaxLength(t *testing.T) {
	c := memory.NewChunker(50)
	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("Chunk %d exceeds max length: %d chars: %q", i, len(chunk), chunk)
		}
	}
}

func TestChunker_RoundTrip(t *testing.T) {
	c := memory.NewChunker(40)
	text := "Met with the doctor today. Blood pressure was normal! Next checkup in six months? Remember to fast beforehand."

	chunks := c.Chunk(text)
	rejoined := strings.Join(chunks, " ")
	if rejoined != text {
		t.Errorf("Round trip mismatch:\n  input:    %q\n  rejoined: %q", text, rejoined)
	}
}

func TestChunker_DecimalNotSplit(t *testing.T) {
	c := memory.NewChunker(1000)
	text := "The rate is 1.5 percent. That is low."

	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "1.5 percent") {
		t.Errorf("Decimal was split: %q", chunks[0])
	}
}

func TestChunker_OversizedSentenceOwnChunk(t *testing.T) {
	c := memory.NewChunker(20)
	long := strings.Repeat("word ", 10) + "end."
	text := "Short one. " + long

	chunks := c.Chunk(text)
	found := false
	for _, chunk := range chunks {
		if len(chunk) > 20 {
			found = true
			if chunk != strings.TrimSpace(long) {
				t.Errorf("Oversized chunk was altered: %q", chunk)
			}
		}
	}
	if !found {
		t.Error("Expected the oversized sentence to be emitted as its own chunk")
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := memory.NewChunker(1000)
	if chunks := c.Chunk("   \n  "); chunks != nil {
		t.Errorf("Expected nil for whitespace input, got %v", chunks)
	}
}

func TestChunker_DefaultMaxLength(t *testing.T) {
	c := memory.NewChunker(0)
	if c.MaxLength() != memory.DefaultMaxChunkLength {
		t.Errorf("Expected default max length %d, got %d", memory.DefaultMaxChunkLength, c.MaxLength())
	}
}
