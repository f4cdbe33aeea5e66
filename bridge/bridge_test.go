package bridge

import (
	"context"
	"errors"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/backlane/agentstream/llm"
	"github.com/backlane/agentstream/mcp"
)

func TestFromDescriptorSchemaKeySpellings(t *testing.T) {
	schema := map[string]interface{}{"type": "object"}

	tests := []struct {
		name       string
		descriptor map[string]interface{}
	}{
		{"camelCase key", map[string]interface{}{"name": "clock", "description": "tells time", "inputSchema": schema}},
		{"snake_case key", map[string]interface{}{"name": "clock", "description": "tells time", "input_schema": schema}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := FromDescriptor(tt.descriptor)
			if def.Name != "clock" {
				t.Errorf("Expected name 'clock', got %q", def.Name)
			}
			if def.Description != "tells time" {
				t.Errorf("Expected description, got %q", def.Description)
			}
			if def.InputSchema["type"] != "object" {
				t.Errorf("Expected schema carried over, got %v", def.InputSchema)
			}
		})
	}
}

func TestFromDescriptorMissingSchema(t *testing.T) {
	def := FromDescriptor(map[string]interface{}{"name": "clock"})
	if def.InputSchema == nil {
		t.Error("Expected empty schema map, got nil")
	}
}

func TestFromDefinitions(t *testing.T) {
	defs := FromDefinitions([]mcp.ToolDefinition{
		{Name: "a", Description: "first", InputSchema: map[string]interface{}{"type": "object"}},
		{Name: "b"},
	})
	if len(defs) != 2 {
		t.Fatalf("Expected 2 defs, got %d", len(defs))
	}
	if defs[0].Name != "a" || defs[0].InputSchema["type"] != "object" {
		t.Errorf("Unexpected first def: %+v", defs[0])
	}
	if defs[1].InputSchema == nil {
		t.Error("Expected nil schema replaced with empty map")
	}
}

func TestValidateInput(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"city":    map[string]interface{}{"type": "string"},
			"days":    map[string]interface{}{"type": "number"},
			"verbose": map[string]interface{}{"type": "boolean"},
			"filters": map[string]interface{}{"type": "object"},
			"tags":    map[string]interface{}{"type": "array"},
		},
		"required": []interface{}{"city"},
	}

	tests := []struct {
		name    string
		input   map[string]interface{}
		wantMsg string
	}{
		{"valid full input", map[string]interface{}{
			"city":    "Oslo",
			"days":    float64(3),
			"verbose": true,
			"filters": map[string]interface{}{"a": 1},
			"tags":    []interface{}{"x"},
		}, ""},
		{"missing required", map[string]interface{}{"days": float64(1)}, "Missing required field: city"},
		{"wrong string type", map[string]interface{}{"city": 42}, "Field city must be a string"},
		{"wrong number type", map[string]interface{}{"city": "Oslo", "days": "three"}, "Field days must be a number"},
		{"wrong boolean type", map[string]interface{}{"city": "Oslo", "verbose": "yes"}, "Field verbose must be a boolean"},
		{"wrong object type", map[string]interface{}{"city": "Oslo", "filters": "none"}, "Field filters must be an object"},
		{"wrong array type", map[string]interface{}{"city": "Oslo", "tags": "x"}, "Field tags must be an array"},
		{"unknown fields ignored", map[string]interface{}{"city": "Oslo", "extra": struct{}{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateInput(schema, tt.input); got != tt.wantMsg {
				t.Errorf("Expected %q, got %q", tt.wantMsg, got)
			}
		})
	}
}

func TestValidateInputNilSchema(t *testing.T) {
	if got := ValidateInput(nil, map[string]interface{}{"anything": 1}); got != "" {
		t.Errorf("Expected nil schema to validate, got %q", got)
	}
}

// scriptedInvoker returns a fixed result or error.
type scriptedInvoker struct {
	result any
	err    error
	calls  int
}

func (s *scriptedInvoker) Invoke(ctx context.Context, name string, input map[string]interface{}) (any, error) {
	s.calls++
	return s.result, s.err
}

func TestExecuteToolInvalidInputNeverCallsProvider(t *testing.T) {
	invoker := &scriptedInvoker{result: "should not be seen"}
	schema := map[string]interface{}{"required": []interface{}{"city"}}
	use := &llm.ToolUseBlock{ID: "toolu_1", Name: "weather", Input: map[string]interface{}{}}

	result := ExecuteTool(context.Background(), invoker, use, schema, zerolog.Nop())
	if !result.IsError {
		t.Error("Expected error result for invalid input")
	}
	if result.Content != "Invalid arguments: Missing required field: city" {
		t.Errorf("Unexpected content: %q", result.Content)
	}
	if invoker.calls != 0 {
		t.Errorf("Expected provider not to be called, got %d calls", invoker.calls)
	}
	if result.ID != "toolu_1" {
		t.Errorf("Expected result tied to invocation id, got %q", result.ID)
	}
}

func TestExecuteToolProviderError(t *testing.T) {
	invoker := &scriptedInvoker{err: errors.New("provider exploded")}
	use := &llm.ToolUseBlock{ID: "toolu_2", Name: "weather", Input: map[string]interface{}{}}

	result := ExecuteTool(context.Background(), invoker, use, nil, zerolog.Nop())
	if !result.IsError {
		t.Error("Expected error result for provider failure")
	}
	if result.Content != "Tool execution failed: provider exploded" {
		t.Errorf("Unexpected content: %q", result.Content)
	}
}

func TestExecuteToolSuccess(t *testing.T) {
	invoker := &scriptedInvoker{result: "sunny"}
	use := &llm.ToolUseBlock{ID: "toolu_3", Name: "weather", Input: map[string]interface{}{}}

	result := ExecuteTool(context.Background(), invoker, use, nil, zerolog.Nop())
	if result.IsError {
		t.Errorf("Expected success, got error result %q", result.Content)
	}
	if result.Content != "sunny" {
		t.Errorf("Expected 'sunny', got %q", result.Content)
	}
}

func TestFlattenResultShapes(t *testing.T) {
	callResult := &mcpgo.CallToolResult{
		Content: []mcpgo.Content{
			mcpgo.NewTextContent("line one"),
			mcpgo.NewTextContent("line two"),
		},
	}

	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"plain string", "hello", "hello"},
		{"call result parts joined by newline", callResult, "line one\nline two"},
		{"map with text string", map[string]interface{}{"text": "from map"}, "from map"},
		{"map with text list", map[string]interface{}{"text": []interface{}{"a", "b"}}, "a\nb"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenResult(tt.result); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFlattenResultStructuredFallback(t *testing.T) {
	got := FlattenResult(map[string]interface{}{"status": "done"})
	if got != "{\n  \"status\": \"done\"\n}" {
		t.Errorf("Expected indented JSON fallback, got %q", got)
	}
}
