// Package sse implements an incremental parser for the server-sent event
// stream returned by the Anthropic Messages API. The parser is fed raw byte
// chunks as they arrive from the transport and yields complete frames; a
// frame that spans chunk boundaries is buffered until its terminating blank
// line has been seen.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EventName identifies a frame in the event stream. Unknown names map to
// EventUnrecognized rather than being matched by raw string downstream.
type EventName string

const (
	EventMessageStart      EventName = "message_start"
	EventContentBlockStart EventName = "content_block_start"
	EventContentBlockDelta EventName = "content_block_delta"
	EventContentBlockStop  EventName = "content_block_stop"
	EventMessageDelta      EventName = "message_delta"
	EventMessageStop       EventName = "message_stop"
	EventPing              EventName = "ping"
	EventError             EventName = "error"
	EventUnrecognized      EventName = "unrecognized"
)

var knownEventNames = map[string]EventName{
	"message_start":       EventMessageStart,
	"content_block_start": EventContentBlockStart,
	"content_block_delta": EventContentBlockDelta,
	"content_block_stop":  EventContentBlockStop,
	"message_delta":       EventMessageDelta,
	"message_stop":        EventMessageStop,
	"ping":                EventPing,
	"error":               EventError,
}

// LookupEventName maps a wire event name to its EventName.
func LookupEventName(name string) EventName {
	if n, ok := knownEventNames[name]; ok {
		return n
	}
	return EventUnrecognized
}

// Event is a single parsed frame: an event name plus its decoded JSON payload.
type Event struct {
	Name    EventName
	Payload Payload
}

// Payload is the decoded JSON body of a frame. Only the fields the pipeline
// consumes are modeled; everything else is ignored by the decoder.
type Payload struct {
	Type         string        `json:"type,omitempty"`
	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *Delta        `json:"delta,omitempty"`
	Message      *MessageInfo  `json:"message,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Error        *ErrorInfo    `json:"error,omitempty"`
}

// ContentBlock is the server-declared span opened by a content_block_start
// frame.
type ContentBlock struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// Delta carries the incremental payload of a content_block_delta or
// message_delta frame.
type Delta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// MessageInfo is the message object attached to a message_start frame.
type MessageInfo struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
	Role  string `json:"role,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}

// Usage carries token accounting from message_start and message_delta frames.
type Usage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

// ErrorInfo is the body of an error frame.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

var frameSeparator = []byte("\n\n")

// Parser reassembles frames from successive byte chunks. One Parser serves
// one streaming response; it is not safe for concurrent use.
type Parser struct {
	buf []byte
}

// NewParser returns a Parser with an empty buffer.
func NewParser() *Parser {
	return &Parser{}
}

// Parse appends chunk to the internal buffer and returns every frame that is
// now complete, in arrival order. Frames missing an event name or all data
// lines, and frames whose data does not decode as JSON, are dropped. Parse
// never fails; calling it with an empty chunk flushes nothing new.
func (p *Parser) Parse(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		end := bytes.Index(p.buf, frameSeparator)
		if end < 0 {
			break
		}
		frame := p.buf[:end]
		p.buf = p.buf[end+len(frameSeparator):]

		if len(frame) == 0 {
			continue
		}
		if ev, ok := parseFrame(frame); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseFrame decodes a single complete frame. The last event line wins when
// repeated; data lines are concatenated without any inserted separator.
func parseFrame(frame []byte) (Event, bool) {
	var name string
	var data strings.Builder

	for _, line := range strings.Split(strings.TrimSpace(string(frame)), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, eventPrefix):
			name = line[len(eventPrefix):]
		case strings.HasPrefix(line, dataPrefix):
			data.WriteString(line[len(dataPrefix):])
		}
	}

	if name == "" || data.Len() == 0 {
		return Event{}, false
	}

	var payload Payload
	if err := json.Unmarshal([]byte(data.String()), &payload); err != nil {
		return Event{}, false
	}

	return Event{Name: LookupEventName(name), Payload: payload}, true
}
