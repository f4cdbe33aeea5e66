// Package agent implements the tool-use orchestration loop: it issues
// streaming requests, surfaces classified tokens to the caller, executes
// requested capability invocations, and folds their results back into the
// conversation until the model stops asking for tools or the round limit is
// reached.
package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/backlane/agentstream/anthropic"
	"github.com/backlane/agentstream/llm"
	"github.com/backlane/agentstream/mcp"
)

const (
	// maxToolRounds bounds the request/execute cycle to prevent runaway
	// tool-call loops.
	maxToolRounds = 5
	// turnTimeout bounds a whole turn, not a single chunk read.
	turnTimeout = 5 * time.Minute
	// toolTimeout bounds a single capability invocation; exceeding it fails
	// that invocation only, never the turn.
	toolTimeout = 60 * time.Second
	// eventBufferSize is the capacity of the caller-facing event channel.
	eventBufferSize = 64
)

// MessagePersister persists the messages of a conversation turn. All methods
// are best-effort from the orchestrator's point of view; failures are logged
// and the turn continues.
type MessagePersister interface {
	// AppendUserMessage saves a user text message.
	AppendUserMessage(ctx context.Context, threadID, content string) error

	// AppendAssistantMessage saves an assistant text message.
	AppendAssistantMessage(ctx context.Context, threadID, content string) error

	// AppendToolCall saves a requested capability invocation.
	AppendToolCall(ctx context.Context, threadID, toolID, toolName string, input any) error

	// AppendToolResult saves the result of a capability invocation.
	AppendToolResult(ctx context.Context, threadID, toolID, toolName, content string, isError bool) error
}

// Agent drives one conversation turn at a time against the model API, with
// optional capability execution through a shared provider connection.
type Agent struct {
	client    *anthropic.Client
	provider  *mcp.Manager
	persister MessagePersister
	logger    zerolog.Logger
}

// New creates an Agent. provider and persister may be nil: without a provider
// the model is offered no tools; without a persister nothing is stored.
func New(client *anthropic.Client, provider *mcp.Manager, persister MessagePersister, logger zerolog.Logger) *Agent {
	return &Agent{
		client:    client,
		provider:  provider,
		persister: persister,
		logger:    logger.With().Str("component", "agent").Logger(),
	}
}

// TurnOptions carries the per-turn parameters for Stream.
type TurnOptions struct {
	// ThinkingBudget enables extended thinking when non-nil.
	ThinkingBudget *int
	// MaxTokens is the output-token ceiling (default applies when zero).
	MaxTokens int
	// History is replayed, in order, before the new user message.
	History []llm.Message
	// ThreadID scopes persistence; ignored without a persister.
	ThreadID string
}

// Stream runs one full turn and returns a channel of typed events. Option
// validation happens synchronously: a configuration error is returned before
// any network activity and no channel is created. The channel is closed after
// the terminal done or error event.
func (a *Agent) Stream(ctx context.Context, system, userMsg string, opts TurnOptions) (<-chan Event, error) {
	if err := anthropic.ValidateThinkingBudget(opts.ThinkingBudget, opts.MaxTokens); err != nil {
		return nil, err
	}

	events := make(chan Event, eventBufferSize)
	t := newTurn(a, system, userMsg, opts, events)

	go func() {
		defer close(events)
		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		defer cancel()
		t.run(turnCtx)
	}()

	return events, nil
}
