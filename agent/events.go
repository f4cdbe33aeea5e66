package agent

// EventType identifies a caller-facing stream event.
type EventType string

const (
	EventReasoning  EventType = "reasoning"
	EventAnswer     EventType = "answer"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is a single typed event surfaced to the caller during a turn. Every
// turn ends with exactly one terminal event: done or error.
type Event struct {
	Type     EventType
	Content  string
	Metadata map[string]any
}

// state is the orchestrator's position in the turn state machine.
type state string

const (
	stateAwaitingResponse state = "awaiting_response"
	stateStreaming        state = "streaming"
	stateToolsRequested   state = "tools_requested"
	stateExecutingTools   state = "executing_tools"
	stateDone             state = "done"
	stateFailed           state = "failed"
)
