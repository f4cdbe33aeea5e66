package llm

import (
	"testing"
)

func TestNewTextMessage(t *testing.T) {
	msg := NewTextMessage(RoleUser, "Hello, world!")
	if msg.Role != RoleUser {
		t.Errorf("Expected role %v, got %v", RoleUser, msg.Role)
	}
	if len(msg.Content) != 1 {
		t.Errorf("Expected 1 content block, got %d", len(msg.Content))
	}
	if msg.Content[0].Type != ContentBlockTypeText {
		t.Errorf("Expected text block type, got %v", msg.Content[0].Type)
	}
	if msg.Content[0].Text != "Hello, world!" {
		t.Errorf("Expected text 'Hello, world!', got %q", msg.Content[0].Text)
	}
}

func TestNewAssistantMessageOrdering(t *testing.T) {
	toolUses := []ToolUseBlock{
		{ID: "tool-1", Name: "first_tool", Input: map[string]interface{}{"arg": "a"}},
		{ID: "tool-2", Name: "second_tool", Input: map[string]interface{}{"arg": "b"}},
	}
	msg := NewAssistantMessage("answer text", toolUses)
	if msg.Role != RoleAssistant {
		t.Errorf("Expected role %v, got %v", RoleAssistant, msg.Role)
	}
	if len(msg.Content) != 3 {
		t.Fatalf("Expected 3 content blocks, got %d", len(msg.Content))
	}
	if msg.Content[0].Type != ContentBlockTypeText || msg.Content[0].Text != "answer text" {
		t.Errorf("Expected leading text segment, got %+v", msg.Content[0])
	}
	if msg.Content[1].ToolUse == nil || msg.Content[1].ToolUse.ID != "tool-1" {
		t.Errorf("Expected tool-1 first, got %+v", msg.Content[1].ToolUse)
	}
	if msg.Content[2].ToolUse == nil || msg.Content[2].ToolUse.ID != "tool-2" {
		t.Errorf("Expected tool-2 second, got %+v", msg.Content[2].ToolUse)
	}
}

func TestNewAssistantMessageWithoutText(t *testing.T) {
	msg := NewAssistantMessage("", []ToolUseBlock{{ID: "tool-1", Name: "t"}})
	if len(msg.Content) != 1 {
		t.Fatalf("Expected 1 content block, got %d", len(msg.Content))
	}
	if msg.Content[0].Type != ContentBlockTypeToolUse {
		t.Errorf("Expected tool use block, got %v", msg.Content[0].Type)
	}
}

func TestToolResultRoundTrip(t *testing.T) {
	results := []ToolResultBlock{
		{ID: "tool-1", Content: `{"result": "success"}`, IsError: false},
		{ID: "tool-2", Content: "boom", IsError: true},
	}
	msg := NewToolResultMessage(results)
	if msg.Role != RoleUser {
		t.Errorf("Expected role %v, got %v", RoleUser, msg.Role)
	}

	extracted := ExtractToolResults(msg)
	if len(extracted) != len(results) {
		t.Fatalf("Expected %d results, got %d", len(results), len(extracted))
	}
	for i, want := range results {
		got := extracted[i]
		if got.ID != want.ID || got.Content != want.Content || got.IsError != want.IsError {
			t.Errorf("Result %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestTextContentConcatenatesInOrder(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			{Type: ContentBlockTypeText, Text: "Hello, "},
			{Type: ContentBlockTypeToolUse, ToolUse: &ToolUseBlock{ID: "x", Name: "t"}},
			{Type: ContentBlockTypeText, Text: "world"},
		},
	}
	if got := TextContent(msg); got != "Hello, world" {
		t.Errorf("Expected 'Hello, world', got %q", got)
	}
}
