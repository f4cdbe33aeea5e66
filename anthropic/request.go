package anthropic

import (
	"fmt"

	"github.com/backlane/agentstream/llm"
)

const (
	// MinThinkingBudget is the smallest thinking budget the API accepts.
	MinThinkingBudget = 1024
	// MaxThinkingBudget is the largest thinking budget the API accepts.
	MaxThinkingBudget = 128000
	// DefaultMaxTokens is used when the caller does not set an output ceiling.
	DefaultMaxTokens = 4096

	apiVersion = "2023-06-01"
)

// BuildOptions carries the per-turn options for request construction.
type BuildOptions struct {
	// ThinkingBudget, when non-nil, enables extended thinking with the given
	// token budget. Validated against Min/MaxThinkingBudget and MaxTokens.
	ThinkingBudget *int
	// ToolContext is out-of-band contextual text (e.g. available capability
	// descriptions) prepended to the user message content when non-empty.
	ToolContext string
	// MaxTokens is the output-token ceiling; DefaultMaxTokens when zero.
	MaxTokens int
	// Tools are the model-facing capability descriptors for this turn.
	Tools []ToolDef
}

// RequestBuilder builds wire-format request payloads and headers. It is pure:
// no side effects, no network access.
type RequestBuilder struct {
	apiKey string
	model  string
}

// NewRequestBuilder creates a RequestBuilder for the given credentials.
func NewRequestBuilder(apiKey, model string) *RequestBuilder {
	return &RequestBuilder{apiKey: apiKey, model: model}
}

// Model returns the model identifier the builder targets.
func (b *RequestBuilder) Model() string {
	return b.model
}

// ValidateThinkingBudget checks a thinking budget against the fixed bounds
// and the output-token ceiling. A nil budget is always valid.
func ValidateThinkingBudget(budget *int, maxTokens int) error {
	if budget == nil {
		return nil
	}
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	switch {
	case *budget < MinThinkingBudget:
		return llm.NewConfigurationError(fmt.Sprintf("budget_tokens must be at least %d", MinThinkingBudget))
	case *budget > MaxThinkingBudget:
		return llm.NewConfigurationError(fmt.Sprintf("budget_tokens cannot exceed %d", MaxThinkingBudget))
	case *budget >= maxTokens:
		return llm.NewConfigurationError("thinking budget must be less than max_tokens")
	}
	return nil
}

// Build constructs a streaming request from conversation state: history
// messages in order, then the new user message with any tool context
// prepended. It fails with a configuration error before any network activity
// when the option combination is invalid.
func (b *RequestBuilder) Build(system, userMsg string, history []llm.Message, opts BuildOptions) (*Request, error) {
	userContent := userMsg
	if opts.ToolContext != "" {
		userContent = opts.ToolContext + "\n\n" + userMsg
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.NewTextMessage(llm.RoleUser, userContent))

	return b.BuildFromConversation(system, messages, opts)
}

// BuildFromConversation constructs a streaming request from an already
// assembled message list. The tool-use loop uses this directly on follow-up
// rounds, where no new user message exists.
func (b *RequestBuilder) BuildFromConversation(system string, messages []llm.Message, opts BuildOptions) (*Request, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if err := ValidateThinkingBudget(opts.ThinkingBudget, maxTokens); err != nil {
		return nil, err
	}

	req := &Request{
		Model:     b.model,
		System:    system,
		Messages:  toWireMessages(messages),
		MaxTokens: maxTokens,
		Stream:    true,
		Tools:     opts.Tools,
	}
	if opts.ThinkingBudget != nil {
		req.Thinking = &ThinkingConfig{
			Type:         "enabled",
			BudgetTokens: *opts.ThinkingBudget,
		}
	}
	return req, nil
}

// Headers returns the API request headers. Streaming calls additionally
// accept the event-stream content type.
func (b *RequestBuilder) Headers(streaming bool) map[string]string {
	headers := map[string]string{
		"x-api-key":         b.apiKey,
		"anthropic-version": apiVersion,
		"content-type":      "application/json",
	}
	if streaming {
		headers["accept"] = "text/event-stream"
	}
	return headers
}

// toWireMessages converts provider-neutral messages to the wire format,
// preserving segment order within each message.
func toWireMessages(messages []llm.Message) []Message {
	wire := make([]Message, 0, len(messages))
	for _, msg := range messages {
		parts := make([]ContentPart, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				parts = append(parts, ContentPart{
					Type: "text",
					Text: block.Text,
				})
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse == nil {
					continue
				}
				input := block.ToolUse.Input
				if input == nil {
					input = map[string]interface{}{}
				}
				parts = append(parts, ContentPart{
					Type:  "tool_use",
					ID:    block.ToolUse.ID,
					Name:  block.ToolUse.Name,
					Input: input,
				})
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult == nil {
					continue
				}
				parts = append(parts, ContentPart{
					Type:      "tool_result",
					ToolUseID: block.ToolResult.ID,
					Content:   block.ToolResult.Content,
					IsError:   block.ToolResult.IsError,
				})
			}
		}
		wire = append(wire, Message{
			Role:    string(msg.Role),
			Content: parts,
		})
	}
	return wire
}
