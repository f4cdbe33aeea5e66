package tokens

import (
	"testing"

	"github.com/backlane/agentstream/sse"
)

func blockStart(index int, blockType string) sse.Event {
	return sse.Event{
		Name: sse.EventContentBlockStart,
		Payload: sse.Payload{
			Index:        index,
			ContentBlock: &sse.ContentBlock{Type: blockType},
		},
	}
}

func textDelta(index int, text string) sse.Event {
	return sse.Event{
		Name: sse.EventContentBlockDelta,
		Payload: sse.Payload{
			Index: index,
			Delta: &sse.Delta{Type: "text_delta", Text: text},
		},
	}
}

func thinkingDelta(index int, text string) sse.Event {
	return sse.Event{
		Name: sse.EventContentBlockDelta,
		Payload: sse.Payload{
			Index: index,
			Delta: &sse.Delta{Type: "thinking_delta", Thinking: text},
		},
	}
}

func blockStop(index int) sse.Event {
	return sse.Event{
		Name:    sse.EventContentBlockStop,
		Payload: sse.Payload{Index: index},
	}
}

func TestClassifyTextDeltaByBlockKind(t *testing.T) {
	tests := []struct {
		name      string
		blockType string
		want      Kind
	}{
		{"thinking block yields reasoning", "thinking", KindReasoning},
		{"text block yields answer", "text", KindAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier()
			if toks := c.Classify(blockStart(0, tt.blockType)); len(toks) != 0 {
				t.Fatalf("Expected no tokens at block start, got %d", len(toks))
			}
			toks := c.Classify(textDelta(0, "A"))
			if len(toks) != 1 {
				t.Fatalf("Expected exactly 1 token, got %d", len(toks))
			}
			if toks[0].Kind != tt.want {
				t.Errorf("Expected kind %v, got %v", tt.want, toks[0].Kind)
			}
			if toks[0].Text != "A" {
				t.Errorf("Expected text 'A', got %q", toks[0].Text)
			}
		})
	}
}

func TestClassifyThinkingDeltaAlwaysReasoning(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "text"))
	toks := c.Classify(thinkingDelta(0, "hmm"))
	if len(toks) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(toks))
	}
	if toks[0].Kind != KindReasoning {
		t.Errorf("Expected reasoning for thinking_delta, got %v", toks[0].Kind)
	}
}

func TestClassifyThinkingSummaryEmittedAtBlockStart(t *testing.T) {
	c := NewClassifier()
	ev := sse.Event{
		Name: sse.EventContentBlockStart,
		Payload: sse.Payload{
			Index:        2,
			ContentBlock: &sse.ContentBlock{Type: "thinking_summary", Summary: "the plan"},
		},
	}
	toks := c.Classify(ev)
	if len(toks) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(toks))
	}
	if toks[0].Kind != KindReasoning {
		t.Errorf("Expected reasoning, got %v", toks[0].Kind)
	}
	if toks[0].Text != "the plan" {
		t.Errorf("Expected summary text, got %q", toks[0].Text)
	}
	if toks[0].Metadata["block_index"] != 2 {
		t.Errorf("Expected block_index 2, got %v", toks[0].Metadata["block_index"])
	}
}

func TestClassifyRedactedThinking(t *testing.T) {
	c := NewClassifier()
	toks := c.Classify(blockStart(0, "redacted_thinking"))
	if len(toks) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(toks))
	}
	if toks[0].Kind != KindReasoning {
		t.Errorf("Expected reasoning, got %v", toks[0].Kind)
	}
	if toks[0].Text != "[REDACTED]" {
		t.Errorf("Expected placeholder text, got %q", toks[0].Text)
	}
	if redacted, ok := toks[0].Metadata["redacted"].(bool); !ok || !redacted {
		t.Errorf("Expected redacted metadata flag, got %v", toks[0].Metadata["redacted"])
	}
}

func TestClassifyEmptyDeltaEmitsNothing(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "text"))
	if toks := c.Classify(textDelta(0, "")); len(toks) != 0 {
		t.Errorf("Expected no tokens for empty text, got %d", len(toks))
	}
	if toks := c.Classify(thinkingDelta(0, "")); len(toks) != 0 {
		t.Errorf("Expected no tokens for empty thinking text, got %d", len(toks))
	}
}

func TestClassifyResetClearsPendingBlock(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "thinking"))
	c.Reset()
	toks := c.Classify(textDelta(0, "A"))
	if len(toks) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(toks))
	}
	if toks[0].Kind != KindAnswer {
		t.Errorf("Expected answer after reset, got %v", toks[0].Kind)
	}
}

func TestClassifyBlockStopClearsThatIndexOnly(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "thinking"))
	c.Classify(blockStart(1, "text"))
	c.Classify(blockStop(0))

	toks := c.Classify(textDelta(0, "orphan"))
	if len(toks) != 1 || toks[0].Kind != KindAnswer {
		t.Errorf("Expected orphan delta after stop to classify as answer, got %+v", toks)
	}
	toks = c.Classify(textDelta(1, "still open"))
	if len(toks) != 1 || toks[0].Kind != KindAnswer {
		t.Errorf("Expected open text block to classify as answer, got %+v", toks)
	}
}

func TestClassifyInterleavedBlocksTrackedPerIndex(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "thinking"))
	c.Classify(blockStart(1, "text"))

	thinking := c.Classify(textDelta(0, "deliberating"))
	answer := c.Classify(textDelta(1, "final"))

	if len(thinking) != 1 || thinking[0].Kind != KindReasoning {
		t.Errorf("Expected reasoning for index 0, got %+v", thinking)
	}
	if len(answer) != 1 || answer[0].Kind != KindAnswer {
		t.Errorf("Expected answer for index 1, got %+v", answer)
	}
}

func TestClassifyIgnoresOtherEvents(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "thinking"))
	for _, name := range []sse.EventName{
		sse.EventMessageStart, sse.EventMessageDelta, sse.EventMessageStop,
		sse.EventPing, sse.EventError, sse.EventUnrecognized,
	} {
		if toks := c.Classify(sse.Event{Name: name}); len(toks) != 0 {
			t.Errorf("Expected no tokens for %v, got %d", name, len(toks))
		}
	}
	// State must be untouched: the thinking block is still open.
	toks := c.Classify(textDelta(0, "A"))
	if len(toks) != 1 || toks[0].Kind != KindReasoning {
		t.Errorf("Expected thinking block state preserved, got %+v", toks)
	}
}

func TestClassifyOneTokenPerDelta(t *testing.T) {
	c := NewClassifier()
	c.Classify(blockStart(0, "text"))
	var total int
	for _, text := range []string{"a", "b", "c"} {
		total += len(c.Classify(textDelta(0, text)))
	}
	if total != 3 {
		t.Errorf("Expected 3 tokens from 3 deltas, got %d", total)
	}
}
