// Package tokens classifies parsed stream events into reasoning and answer
// tokens based on the content block each incremental payload belongs to.
package tokens

import (
	"github.com/backlane/agentstream/sse"
)

// Kind is the semantic category of a classified token.
type Kind string

const (
	KindReasoning Kind = "reasoning"
	KindAnswer    Kind = "answer"
)

// BlockKind is the closed set of content block kinds the classifier
// understands. Anything else maps to BlockUnrecognized and classifies as
// answer content.
type BlockKind string

const (
	BlockText             BlockKind = "text"
	BlockThinking         BlockKind = "thinking"
	BlockThinkingSummary  BlockKind = "thinking_summary"
	BlockRedactedThinking BlockKind = "redacted_thinking"
	BlockToolUse          BlockKind = "tool_use"
	BlockUnrecognized     BlockKind = "unrecognized"
)

// Delta sub-kinds carried by content_block_delta frames.
const (
	deltaText     = "text_delta"
	deltaThinking = "thinking_delta"
)

func blockKindOf(wire string) BlockKind {
	switch wire {
	case "text":
		return BlockText
	case "thinking":
		return BlockThinking
	case "thinking_summary":
		return BlockThinkingSummary
	case "redacted_thinking":
		return BlockRedactedThinking
	case "tool_use":
		return BlockToolUse
	default:
		return BlockUnrecognized
	}
}

func (k BlockKind) reasoning() bool {
	switch k {
	case BlockThinking, BlockThinkingSummary, BlockRedactedThinking:
		return true
	default:
		return false
	}
}

// Token is a single classified piece of streamed content.
type Token struct {
	Kind     Kind
	Text     string
	Metadata map[string]any
}

// Classifier tracks open content blocks for a single streaming turn.
// Block kind is recorded per open index, so interleaved blocks classify
// against the block they actually belong to. One Classifier serves one
// in-flight turn; it must not be shared across concurrent streams.
type Classifier struct {
	open map[int]BlockKind
}

// NewClassifier returns a Classifier with no open blocks.
func NewClassifier() *Classifier {
	return &Classifier{open: make(map[int]BlockKind)}
}

// Reset clears all open block state. Call it before reusing the classifier
// for a new turn.
func (c *Classifier) Reset() {
	c.open = make(map[int]BlockKind)
}

// Classify consumes one parsed event and returns the tokens it produces, in
// order. Events other than block start/delta/stop yield nothing and leave
// state untouched. Tokens already emitted are never revised.
func (c *Classifier) Classify(ev sse.Event) []Token {
	switch ev.Name {
	case sse.EventContentBlockStart:
		return c.handleBlockStart(ev)
	case sse.EventContentBlockDelta:
		return c.handleBlockDelta(ev)
	case sse.EventContentBlockStop:
		delete(c.open, ev.Payload.Index)
	}
	return nil
}

// handleBlockStart records the new block's kind and emits a complete
// reasoning token for the terminal reasoning variants, which never receive
// incremental payloads.
func (c *Classifier) handleBlockStart(ev sse.Event) []Token {
	block := ev.Payload.ContentBlock
	kind := BlockText
	if block != nil {
		kind = blockKindOf(block.Type)
	}
	index := ev.Payload.Index
	c.open[index] = kind

	switch kind {
	case BlockThinkingSummary:
		text := ""
		if block != nil {
			text = block.Summary
			if text == "" {
				text = block.Text
			}
		}
		return []Token{{
			Kind: KindReasoning,
			Text: text,
			Metadata: map[string]any{
				"block_type":  string(kind),
				"block_index": index,
			},
		}}
	case BlockRedactedThinking:
		text := "[REDACTED]"
		if block != nil && block.Text != "" {
			text = block.Text
		}
		return []Token{{
			Kind: KindReasoning,
			Text: text,
			Metadata: map[string]any{
				"block_type":  string(kind),
				"block_index": index,
				"redacted":    true,
			},
		}}
	}
	return nil
}

// handleBlockDelta classifies an incremental payload. Plain text is
// classified by the kind of the block it belongs to; thinking deltas are
// reasoning regardless.
func (c *Classifier) handleBlockDelta(ev sse.Event) []Token {
	delta := ev.Payload.Delta
	if delta == nil {
		return nil
	}
	index := ev.Payload.Index

	switch delta.Type {
	case deltaText:
		if delta.Text == "" {
			return nil
		}
		blockKind, ok := c.open[index]
		if !ok {
			blockKind = BlockUnrecognized
		}
		kind := KindAnswer
		if blockKind.reasoning() {
			kind = KindReasoning
		}
		metadata := map[string]any{
			"block_type":  string(blockKind),
			"block_index": index,
		}
		if delta.StopReason != "" {
			metadata["stop_reason"] = delta.StopReason
		}
		return []Token{{Kind: kind, Text: delta.Text, Metadata: metadata}}

	case deltaThinking:
		if delta.Thinking == "" {
			return nil
		}
		blockKind, ok := c.open[index]
		if !ok {
			blockKind = BlockThinking
		}
		return []Token{{
			Kind: KindReasoning,
			Text: delta.Thinking,
			Metadata: map[string]any{
				"block_type":  string(blockKind),
				"block_index": index,
			},
		}}
	}
	return nil
}
