package llm

import (
	"encoding/json"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a conversation turn. Content is an
// ordered list of typed segments; segment order is preserved end to end.
type Message struct {
	Role    MessageRole
	Content []ContentBlock
}

// ContentBlock represents a single content segment within a message.
// It can be text, a tool use, or a tool result.
type ContentBlock struct {
	Type       ContentBlockType
	Text       string           // For text blocks
	ToolUse    *ToolUseBlock    // For tool use blocks
	ToolResult *ToolResultBlock // For tool result blocks
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ToolUseBlock represents a capability invocation requested by the assistant.
// Input is assembled from streamed fragments and parsed once complete; if the
// fragments were not valid JSON it holds an empty map.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolResultBlock represents the result of a capability invocation. It is
// created once by execution and never mutated afterwards.
type ToolResultBlock struct {
	ID      string
	Content string
	IsError bool
}

// NewTextMessage creates a new message with a single text segment.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeText,
				Text: text,
			},
		},
	}
}

// NewAssistantMessage creates an assistant message with an optional leading
// text segment followed by one tool use segment per invocation, in order.
func NewAssistantMessage(text string, toolUses []ToolUseBlock) Message {
	content := make([]ContentBlock, 0, len(toolUses)+1)
	if text != "" {
		content = append(content, ContentBlock{
			Type: ContentBlockTypeText,
			Text: text,
		})
	}
	for i := range toolUses {
		content = append(content, ContentBlock{
			Type:    ContentBlockTypeToolUse,
			ToolUse: &toolUses[i],
		})
	}
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// NewToolResultMessage creates a user message carrying one result segment per
// invocation, in the order the invocations were requested.
func NewToolResultMessage(toolResults []ToolResultBlock) Message {
	content := make([]ContentBlock, len(toolResults))
	for i, tr := range toolResults {
		trCopy := tr
		content[i] = ContentBlock{
			Type:       ContentBlockTypeToolResult,
			ToolResult: &trCopy,
		}
	}
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// ExtractToolResults returns the result segments of a message in order.
func ExtractToolResults(msg Message) []ToolResultBlock {
	var results []ToolResultBlock
	for _, block := range msg.Content {
		if block.Type == ContentBlockTypeToolResult && block.ToolResult != nil {
			results = append(results, *block.ToolResult)
		}
	}
	return results
}

// TextContent concatenates the text segments of a message in order.
func TextContent(msg Message) string {
	var text string
	for _, block := range msg.Content {
		if block.Type == ContentBlockTypeText {
			text += block.Text
		}
	}
	return text
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
