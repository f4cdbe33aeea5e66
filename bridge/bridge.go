// Package bridge translates between the capability provider's tool
// descriptors/results and the wire format the model API expects, and executes
// validated invocations.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/backlane/agentstream/anthropic"
	"github.com/backlane/agentstream/llm"
	"github.com/backlane/agentstream/mcp"
)

// Invoker executes a capability by name. *mcp.Manager satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, input map[string]interface{}) (any, error)
}

// FromDefinitions converts provider tool definitions to model-facing
// descriptors.
func FromDefinitions(tools []mcp.ToolDefinition) []anthropic.ToolDef {
	return lo.Map(tools, func(tool mcp.ToolDefinition, _ int) anthropic.ToolDef {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]interface{}{}
		}
		return anthropic.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		}
	})
}

// FromDescriptor converts a raw descriptor map to a model-facing descriptor.
// The schema is accepted under either "inputSchema" or "input_schema".
func FromDescriptor(descriptor map[string]interface{}) anthropic.ToolDef {
	def := anthropic.ToolDef{
		InputSchema: map[string]interface{}{},
	}
	if name, ok := descriptor["name"].(string); ok {
		def.Name = name
	}
	if desc, ok := descriptor["description"].(string); ok {
		def.Description = desc
	}
	if schema, ok := descriptor["inputSchema"].(map[string]interface{}); ok {
		def.InputSchema = schema
	} else if schema, ok := descriptor["input_schema"].(map[string]interface{}); ok {
		def.InputSchema = schema
	}
	return def
}

// ValidateInput checks an invocation's input against a tool schema: presence
// of every required field, then primitive type agreement for input fields the
// schema's property map covers. Validation is shallow; nested schemas are not
// recursed into. Returns a descriptive message for the first mismatch found,
// or "" when valid. A nil schema validates everything.
func ValidateInput(schema map[string]interface{}, input map[string]interface{}) string {
	if schema == nil {
		return ""
	}

	for _, field := range requiredFields(schema) {
		if _, ok := input[field]; !ok {
			return fmt.Sprintf("Missing required field: %s", field)
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	for key, value := range input {
		prop, ok := properties[key].(map[string]interface{})
		if !ok {
			continue
		}
		expected, _ := prop["type"].(string)
		if expected == "" {
			continue
		}
		if msg := checkType(key, expected, value); msg != "" {
			return msg
		}
	}
	return ""
}

// requiredFields reads the schema's required list, tolerating both the
// decoded-JSON shape ([]interface{}) and a native []string.
func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		fields := make([]string, 0, len(required))
		for _, f := range required {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}

func checkType(key, expected string, value interface{}) string {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("Field %s must be a string", key)
		}
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Sprintf("Field %s must be a number", key)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("Field %s must be a boolean", key)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Sprintf("Field %s must be an object", key)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Sprintf("Field %s must be an array", key)
		}
	}
	return ""
}

// ExecuteTool validates and executes a single invocation, always returning a
// result block for the requesting invocation id. Invalid input never reaches
// the provider; provider failures come back as error-flagged results rather
// than raised faults.
func ExecuteTool(ctx context.Context, provider Invoker, toolUse *llm.ToolUseBlock, schema map[string]interface{}, logger zerolog.Logger) llm.ToolResultBlock {
	if msg := ValidateInput(schema, toolUse.Input); msg != "" {
		return llm.ToolResultBlock{
			ID:      toolUse.ID,
			Content: "Invalid arguments: " + msg,
			IsError: true,
		}
	}

	logger.Info().Str("tool_name", toolUse.Name).Str("tool_id", toolUse.ID).Msg("Executing capability invocation")

	result, err := provider.Invoke(ctx, toolUse.Name, toolUse.Input)
	if err != nil {
		logger.Warn().Err(err).Str("tool_name", toolUse.Name).Msg("Capability invocation failed")
		return llm.ToolResultBlock{
			ID:      toolUse.ID,
			Content: "Tool execution failed: " + err.Error(),
			IsError: true,
		}
	}

	return llm.ToolResultBlock{
		ID:      toolUse.ID,
		Content: FlattenResult(result),
		IsError: false,
	}
}

// resultContent is the normalized form of a heterogeneous provider result:
// an ordered list of text parts.
type resultContent struct {
	parts []string
}

func (r resultContent) flatten() string {
	return strings.Join(r.parts, "\n")
}

// FlattenResult normalizes the provider's heterogeneous return shapes into a
// single string, joining structured parts with newlines.
func FlattenResult(result any) string {
	return normalizeResult(result).flatten()
}

func normalizeResult(result any) resultContent {
	switch v := result.(type) {
	case nil:
		return resultContent{}
	case string:
		return resultContent{parts: []string{v}}
	case *mcpgo.CallToolResult:
		var parts []string
		for _, content := range v.Content {
			if textContent, ok := mcpgo.AsTextContent(content); ok {
				parts = append(parts, textContent.Text)
			}
		}
		return resultContent{parts: parts}
	case map[string]interface{}:
		if text, ok := v["text"]; ok {
			return normalizeTextField(text)
		}
		return resultContent{parts: []string{marshalFallback(v)}}
	default:
		return resultContent{parts: []string{marshalFallback(v)}}
	}
}

// normalizeTextField handles the map shape whose "text" value is either a
// single string or a list of parts.
func normalizeTextField(text any) resultContent {
	switch t := text.(type) {
	case string:
		return resultContent{parts: []string{t}}
	case []string:
		return resultContent{parts: t}
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, marshalFallback(item))
			}
		}
		return resultContent{parts: parts}
	default:
		return resultContent{parts: []string{marshalFallback(t)}}
	}
}

func marshalFallback(v any) string {
	if b, err := json.MarshalIndent(v, "", "  "); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
