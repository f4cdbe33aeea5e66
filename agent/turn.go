package agent

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backlane/agentstream/anthropic"
	"github.com/backlane/agentstream/bridge"
	"github.com/backlane/agentstream/llm"
	"github.com/backlane/agentstream/sse"
	"github.com/backlane/agentstream/tokens"
)

const (
	readChunkSize = 4096

	stopReasonToolUse = "tool_use"

	blockTypeToolUse    = "tool_use"
	deltaTypeInputJSON  = "input_json_delta"
)

// turn holds the state of one in-flight conversation turn. A turn is
// single-threaded: it suspends only while awaiting transport bytes and while
// awaiting capability invocations.
type turn struct {
	agent    *Agent
	system   string
	userMsg  string
	opts     TurnOptions
	events   chan<- Event
	messages []llm.Message
	toolDefs []anthropic.ToolDef
	schemas  map[string]map[string]interface{}
	state    state
	logger   zerolog.Logger
}

func newTurn(a *Agent, system, userMsg string, opts TurnOptions, events chan<- Event) *turn {
	t := &turn{
		agent:   a,
		system:  system,
		userMsg: userMsg,
		opts:    opts,
		events:  events,
		schemas: make(map[string]map[string]interface{}),
		state:   stateAwaitingResponse,
		logger:  a.logger.With().Str("thread_id", opts.ThreadID).Logger(),
	}

	t.messages = make([]llm.Message, 0, len(opts.History)+1)
	t.messages = append(t.messages, opts.History...)
	t.messages = append(t.messages, llm.NewTextMessage(llm.RoleUser, userMsg))

	if a.provider != nil && a.provider.IsConnected() {
		providerTools := a.provider.Tools()
		t.toolDefs = bridge.FromDefinitions(providerTools)
		for _, tool := range providerTools {
			t.schemas[tool.Name] = tool.InputSchema
		}
	}
	return t
}

func (t *turn) setState(s state) {
	t.state = s
	t.logger.Debug().Str("state", string(s)).Msg("Turn state transition")
}

func (t *turn) emit(ev Event) {
	t.events <- ev
}

// fail surfaces one error event and moves the turn to its failed terminal
// state. No further events follow.
func (t *turn) fail(err error) {
	t.setState(stateFailed)
	t.logger.Warn().Err(err).Msg("Turn failed")
	t.emit(Event{
		Type:    EventError,
		Content: err.Error(),
		Metadata: map[string]any{
			"error_type": string(llm.TypeOf(err)),
		},
	})
}

// run executes the bounded round loop.
func (t *turn) run(ctx context.Context) {
	t.persistUserMessage(ctx)

	for round := 1; round <= maxToolRounds; round++ {
		t.setState(stateAwaitingResponse)
		result, err := t.streamRound(ctx)
		if err != nil {
			t.fail(err)
			return
		}

		assistant := llm.NewAssistantMessage(result.text.String(), result.toolUses)
		if len(assistant.Content) > 0 {
			t.messages = append(t.messages, assistant)
		}
		t.persistAssistant(ctx, result)

		if result.stopReason != stopReasonToolUse || len(result.toolUses) == 0 {
			t.setState(stateDone)
			t.emit(Event{Type: EventDone, Metadata: map[string]any{"rounds": round}})
			return
		}

		t.setState(stateToolsRequested)
		t.logger.Info().Int("round", round).Int("invocations", len(result.toolUses)).Msg("Model requested capability invocations")

		t.setState(stateExecutingTools)
		results := t.executeInvocations(ctx, result.toolUses)
		t.messages = append(t.messages, llm.NewToolResultMessage(results))
	}

	// Round cap reached: the in-progress round completed (its invocations ran
	// and their results are in the conversation), but no further request is
	// issued. The turn may end with unresolved reasoning.
	t.setState(stateDone)
	t.logger.Warn().Int("max_rounds", maxToolRounds).Msg("Tool-use round limit reached")
	t.emit(Event{Type: EventDone, Metadata: map[string]any{
		"rounds":              maxToolRounds,
		"round_limit_reached": true,
	}})
}

// roundResult accumulates the structured outcome of one streamed response.
type roundResult struct {
	text         strings.Builder
	toolUses     []llm.ToolUseBlock
	stopReason   string
	outputTokens int64
}

// invocationAssembly collects an invocation's fields as they stream in: id
// and name at block start, raw input fragments across deltas.
type invocationAssembly struct {
	id    string
	name  string
	input strings.Builder
}

// finish parses the accumulated fragments. Input that does not parse as JSON
// defaults to an empty object rather than aborting the turn.
func (a *invocationAssembly) finish(logger zerolog.Logger) llm.ToolUseBlock {
	input := make(map[string]interface{})
	if a.input.Len() > 0 {
		if err := json.Unmarshal([]byte(a.input.String()), &input); err != nil {
			logger.Warn().Str("tool_name", a.name).Str("tool_id", a.id).Msg("Invocation input did not parse as JSON, defaulting to empty object")
			input = make(map[string]interface{})
		}
	}
	return llm.ToolUseBlock{ID: a.id, Name: a.name, Input: input}
}

// streamRound issues one request and consumes its event stream, surfacing
// classified tokens as they arrive.
func (t *turn) streamRound(ctx context.Context) (*roundResult, error) {
	req, err := t.agent.client.Builder().BuildFromConversation(t.system, t.messages, anthropic.BuildOptions{
		ThinkingBudget: t.opts.ThinkingBudget,
		MaxTokens:      t.opts.MaxTokens,
		Tools:          t.toolDefs,
	})
	if err != nil {
		return nil, err
	}

	body, err := t.agent.client.OpenStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	t.setState(stateStreaming)

	parser := sse.NewParser()
	classifier := tokens.NewClassifier()
	result := &roundResult{}
	pending := make(map[int]*invocationAssembly)

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Parse(buf[:n]) {
				if err := t.handleEvent(ev, classifier, pending, result); err != nil {
					return nil, err
				}
			}
		}
		if readErr == io.EOF {
			parser.Parse(nil)
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, llm.NewTransportError("stream cancelled", 0, ctx.Err())
			}
			return nil, llm.NewTransportError("reading stream", 0, readErr)
		}
	}
	return result, nil
}

// handleEvent routes one parsed frame: classified tokens to the caller, tool
// input fragments to their assembly, stop reason and usage off message-level
// control frames.
func (t *turn) handleEvent(ev sse.Event, classifier *tokens.Classifier, pending map[int]*invocationAssembly, result *roundResult) error {
	for _, tok := range classifier.Classify(ev) {
		eventType := EventAnswer
		if tok.Kind == tokens.KindReasoning {
			eventType = EventReasoning
		}
		t.emit(Event{Type: eventType, Content: tok.Text, Metadata: tok.Metadata})
		if tok.Kind == tokens.KindAnswer {
			result.text.WriteString(tok.Text)
		}
	}

	switch ev.Name {
	case sse.EventContentBlockStart:
		if cb := ev.Payload.ContentBlock; cb != nil && cb.Type == blockTypeToolUse {
			pending[ev.Payload.Index] = &invocationAssembly{id: cb.ID, name: cb.Name}
		}

	case sse.EventContentBlockDelta:
		if d := ev.Payload.Delta; d != nil && d.Type == deltaTypeInputJSON {
			if asm, ok := pending[ev.Payload.Index]; ok {
				asm.input.WriteString(d.PartialJSON)
			}
		}

	case sse.EventContentBlockStop:
		if asm, ok := pending[ev.Payload.Index]; ok {
			delete(pending, ev.Payload.Index)
			result.toolUses = append(result.toolUses, asm.finish(t.logger))
		}

	case sse.EventMessageDelta:
		if d := ev.Payload.Delta; d != nil && d.StopReason != "" {
			result.stopReason = d.StopReason
		}
		if u := ev.Payload.Usage; u != nil {
			result.outputTokens = u.OutputTokens
		}

	case sse.EventError:
		msg := "stream error"
		if ev.Payload.Error != nil && ev.Payload.Error.Message != "" {
			msg = ev.Payload.Error.Message
		}
		return llm.NewTransportError(msg, 0, nil)
	}
	return nil
}

// executeInvocations runs each requested invocation in order, surfacing a
// tool_use and a tool_result event per invocation. A failing invocation
// produces an error-flagged result and the turn continues.
func (t *turn) executeInvocations(ctx context.Context, toolUses []llm.ToolUseBlock) []llm.ToolResultBlock {
	results := make([]llm.ToolResultBlock, 0, len(toolUses))
	for i := range toolUses {
		toolUse := &toolUses[i]
		t.emit(Event{
			Type:    EventToolUse,
			Content: "Using tool: " + toolUse.Name,
			Metadata: map[string]any{
				"tool_id":   toolUse.ID,
				"tool_name": toolUse.Name,
				"input":     toolUse.Input,
			},
		})

		var result llm.ToolResultBlock
		if t.agent.provider == nil {
			result = llm.ToolResultBlock{
				ID:      toolUse.ID,
				Content: "Tool execution failed: no capability provider connected",
				IsError: true,
			}
		} else {
			invokeCtx, cancel := context.WithTimeout(ctx, toolTimeout)
			result = bridge.ExecuteTool(invokeCtx, t.agent.provider, toolUse, t.schemas[toolUse.Name], t.logger)
			cancel()
		}

		t.emit(Event{
			Type:    EventToolResult,
			Content: result.Content,
			Metadata: map[string]any{
				"tool_use_id": result.ID,
				"is_error":    result.IsError,
			},
		})
		t.persistToolResult(ctx, toolUse, result)
		results = append(results, result)
	}
	return results
}

func (t *turn) persistUserMessage(ctx context.Context) {
	if t.agent.persister == nil {
		return
	}
	if err := t.agent.persister.AppendUserMessage(ctx, t.opts.ThreadID, t.userMsg); err != nil {
		t.logger.Warn().Err(err).Msg("failed to persist user message")
	}
}

func (t *turn) persistAssistant(ctx context.Context, result *roundResult) {
	if t.agent.persister == nil {
		return
	}
	if text := result.text.String(); text != "" {
		if err := t.agent.persister.AppendAssistantMessage(ctx, t.opts.ThreadID, text); err != nil {
			t.logger.Warn().Err(err).Msg("failed to persist assistant message")
		}
	}
	for _, toolUse := range result.toolUses {
		if err := t.agent.persister.AppendToolCall(ctx, t.opts.ThreadID, toolUse.ID, toolUse.Name, toolUse.Input); err != nil {
			t.logger.Warn().Err(err).Msg("failed to persist tool call")
		}
	}
}

func (t *turn) persistToolResult(ctx context.Context, toolUse *llm.ToolUseBlock, result llm.ToolResultBlock) {
	if t.agent.persister == nil {
		return
	}
	if err := t.agent.persister.AppendToolResult(ctx, t.opts.ThreadID, result.ID, toolUse.Name, result.Content, result.IsError); err != nil {
		t.logger.Warn().Err(err).Msg("failed to persist tool result")
	}
}
