// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// eventPrefix marks lines that carry a chat event. Everything else on
// the wire (blank keepalive lines, comments) is ignored.
const eventPrefix = "data: "

// Kind identifies the event type carried by one wire frame.
type Kind int

const (
	// KindMemorySearch is a memory-search lifecycle event. Status is
	// "started" (with Query) or "completed" (with Memories).
	KindMemorySearch Kind = iota

	// KindThinking is a reasoning-token delta. Text holds the delta.
	KindThinking

	// KindError is a terminal failure. Text holds the display message.
	KindError

	// KindDone is the terminal success marker. No payload.
	KindDone

	// KindContent is an answer-token delta. Text holds the delta.
	KindContent

	// KindToolCall is a tool-call lifecycle event. Status is
	// "started", "completed", "pending_confirmation", or "denied".
	KindToolCall
)

// String returns the wire-level name of the kind, for logs.
func (kind Kind) String() string {
	switch kind {
	case KindMemorySearch:
		return "memory_search"
	case KindThinking:
		return "thinking"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	case KindContent:
		return "content"
	case KindToolCall:
		return "tool_call"
	default:
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
}

// Event is one decoded chat event. Which fields are meaningful depends
// on Kind; unrelated fields are zero.
type Event struct {
	Kind Kind

	// Status qualifies memory-search and tool-call lifecycle events.
	Status string

	// Text is the delta for thinking and content events, and the
	// display message for error events.
	Text string

	// Memory-search fields.
	Query    string
	Memories []string

	// Tool-call fields. ToolID may be empty — the reducer synthesizes
	// one from the tool name when the server omits it.
	ToolName  string
	ToolID    string
	Input     json.RawMessage
	Output    json.RawMessage
	Artifacts json.RawMessage
}

// Lifecycle status values for memory-search and tool-call events.
const (
	StatusStarted             = "started"
	StatusCompleted           = "completed"
	StatusPendingConfirmation = "pending_confirmation"
	StatusDenied              = "denied"
)

// wireEvent is the JSON payload of one frame. Exactly one event shape
// is expected per line; the pointer fields distinguish "present but
// empty" from "absent" for the delta kinds.
type wireEvent struct {
	Memory    string          `json:"memory"`
	Status    string          `json:"status"`
	Query     string          `json:"query"`
	Memories  []string        `json:"memories"`
	Thinking  *string         `json:"thinking"`
	Error     *string         `json:"error"`
	Done      bool            `json:"done"`
	Content   *string         `json:"content"`
	ToolCall  *string         `json:"tool_call"`
	ToolID    string          `json:"tool_id"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Artifacts json.RawMessage `json:"artifacts"`
}

// ParseLine decodes one raw line from the stream. Returns ok=false for
// lines that do not carry an event (no "data: " prefix). Returns an
// error when the prefix is present but the payload fails JSON parsing
// or matches no recognized event shape.
//
// When a malformed payload populates more than one shape, the first
// match wins, checked in a fixed priority order: memory-search,
// thinking, error, done, content, tool_call. The ordering is defensive
// — well-formed frames carry exactly one shape.
func ParseLine(line string) (Event, bool, error) {
	payload, found := strings.CutPrefix(line, eventPrefix)
	if !found {
		return Event{}, false, nil
	}

	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return Event{}, false, fmt.Errorf("stream: decoding frame: %w", err)
	}

	switch {
	case wire.Memory == "search":
		return Event{
			Kind:     KindMemorySearch,
			Status:   wire.Status,
			Query:    wire.Query,
			Memories: wire.Memories,
		}, true, nil

	case wire.Thinking != nil:
		return Event{Kind: KindThinking, Text: *wire.Thinking}, true, nil

	case wire.Error != nil:
		return Event{Kind: KindError, Text: *wire.Error}, true, nil

	case wire.Done:
		return Event{Kind: KindDone}, true, nil

	case wire.Content != nil:
		return Event{Kind: KindContent, Text: *wire.Content}, true, nil

	case wire.ToolCall != nil:
		return Event{
			Kind:      KindToolCall,
			Status:    wire.Status,
			ToolName:  *wire.ToolCall,
			ToolID:    wire.ToolID,
			Input:     wire.Input,
			Output:    wire.Output,
			Artifacts: wire.Artifacts,
		}, true, nil

	default:
		return Event{}, false, fmt.Errorf("stream: frame matches no event shape: %s", payload)
	}
}
