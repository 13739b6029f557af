// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat holds the client-side conversation state for one chat
// session and the machinery that mutates it: the event reducer that
// folds a streaming assistant turn into message state, the branch
// operations that archive and restore historical message variants, and
// the controller that orchestrates turns against a stream opener.
package chat

import (
	"encoding/json"
)

// Role distinguishes who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Tool-call lifecycle statuses. Mirrors the wire-level status strings
// so persisted and in-memory state agree.
const (
	ToolStatusStarted             = "started"
	ToolStatusCompleted           = "completed"
	ToolStatusPendingConfirmation = "pending_confirmation"
	ToolStatusDenied              = "denied"
)

// Memory-search lifecycle statuses.
const (
	MemoryStatusStarted   = "started"
	MemoryStatusCompleted = "completed"
)

// MemoryTypeSearch is the only memory operation the server streams
// today.
const MemoryTypeSearch = "search"

// ThinkingBlock is one span of intermediate reasoning text. IsStreaming
// is true while deltas are still being appended; the reducer guarantees
// at most one streaming block per message.
type ThinkingBlock struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	IsStreaming bool   `json:"isStreaming"`
}

// ToolCall is one tool invocation surfaced by the assistant. The ID is
// server-supplied when available and synthesized from the tool name and
// a per-turn counter otherwise; it is unique within a message but
// carries no cross-message meaning.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Artifacts json.RawMessage `json:"artifacts,omitempty"`
}

// MemoryOp records one memory-search pass the assistant performed
// before answering. Query is set on start; Memories on completion.
type MemoryOp struct {
	Type     string   `json:"type"`
	Status   string   `json:"status"`
	Query    string   `json:"query,omitempty"`
	Memories []string `json:"memories,omitempty"`
}

// Open reports whether the search has started but not yet completed.
func (op MemoryOp) Open() bool {
	return op.Status == MemoryStatusStarted
}

// Branch is an immutable snapshot of a message's displayed fields,
// captured before a destructive mutation (edit or regenerate).
type Branch struct {
	ID             string          `json:"id"`
	Content        string          `json:"content"`
	ThinkingBlocks []ThinkingBlock `json:"thinkingBlocks,omitempty"`
	ToolCalls      []ToolCall      `json:"toolCalls,omitempty"`
	MemoryOps      []MemoryOp      `json:"memoryOps,omitempty"`
}

// Message is one entry in a conversation. Content accumulates answer
// text verbatim as it streams. CurrentBranch is either a valid index
// into Branches (viewing a historical snapshot) or exactly
// len(Branches), meaning the live variant is displayed.
type Message struct {
	ID             string          `json:"id"`
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	ThinkingBlocks []ThinkingBlock `json:"thinkingBlocks,omitempty"`
	ToolCalls      []ToolCall      `json:"toolCalls,omitempty"`
	MemoryOps      []MemoryOp      `json:"memoryOps,omitempty"`
	Branches       []Branch        `json:"branches,omitempty"`
	CurrentBranch  int             `json:"currentBranch"`
}

// Conversation is the ordered message sequence for one chat session.
// ID identifies the persisted session on the server; it is empty for a
// conversation that has not been saved yet.
type Conversation struct {
	ID       string     `json:"id"`
	Messages []*Message `json:"messages"`
}

// ViewingLive reports whether the live variant is displayed rather
// than a historical branch snapshot.
func (message *Message) ViewingLive() bool {
	return message.CurrentBranch == len(message.Branches)
}

// openThinkingBlock returns the streaming thinking block, or -1.
func (message *Message) openThinkingBlock() int {
	for index := range message.ThinkingBlocks {
		if message.ThinkingBlocks[index].IsStreaming {
			return index
		}
	}
	return -1
}

// snapshot captures the message's displayed fields as a Branch with
// the given id. Slices are copied so later streaming cannot mutate the
// archived state.
func (message *Message) snapshot(branchID string) Branch {
	return Branch{
		ID:             branchID,
		Content:        message.Content,
		ThinkingBlocks: append([]ThinkingBlock(nil), message.ThinkingBlocks...),
		ToolCalls:      append([]ToolCall(nil), message.ToolCalls...),
		MemoryOps:      append([]MemoryOp(nil), message.MemoryOps...),
	}
}

// restore copies a snapshot's fields onto the message's displayed
// fields. The branch itself is not modified.
func (message *Message) restore(branch Branch) {
	message.Content = branch.Content
	message.ThinkingBlocks = append([]ThinkingBlock(nil), branch.ThinkingBlocks...)
	message.ToolCalls = append([]ToolCall(nil), branch.ToolCalls...)
	message.MemoryOps = append([]MemoryOp(nil), branch.MemoryOps...)
}

// resetLive clears the message's displayed fields ahead of a fresh
// streaming turn. Branches and the branch pointer are untouched.
func (message *Message) resetLive() {
	message.Content = ""
	message.ThinkingBlocks = nil
	message.ToolCalls = nil
	message.MemoryOps = nil
}

// clone returns a deep value copy of the message, safe to read after
// the original resumes mutating.
func (message *Message) clone() Message {
	copied := *message
	copied.ThinkingBlocks = append([]ThinkingBlock(nil), message.ThinkingBlocks...)
	copied.ToolCalls = append([]ToolCall(nil), message.ToolCalls...)
	copied.MemoryOps = append([]MemoryOp(nil), message.MemoryOps...)
	copied.Branches = append([]Branch(nil), message.Branches...)
	return copied
}

// SegmentKind identifies what a rendered segment carries.
type SegmentKind int

const (
	SegmentMemory SegmentKind = iota
	SegmentThinking
	SegmentTool
	SegmentContent
)

// Segment is one renderable unit of an assistant message, in display
// order.
type Segment struct {
	Kind     SegmentKind
	Memory   *MemoryOp
	Thinking *ThinkingBlock
	Tool     *ToolCall
	Text     string
}

// Segments reconstructs the display order of the message's parts:
// memory ops first in arrival order, then thinking blocks and tool
// calls interleaved positionally (block #1, call #1, block #2, call #2,
// and so on until both run out), then the answer text. The interleave
// is positional, not chronological: block #2 always renders adjacent
// to call #2 regardless of the order they actually streamed in.
func (message *Message) Segments() []Segment {
	var segments []Segment
	for index := range message.MemoryOps {
		segments = append(segments, Segment{Kind: SegmentMemory, Memory: &message.MemoryOps[index]})
	}
	for index := 0; index < len(message.ThinkingBlocks) || index < len(message.ToolCalls); index++ {
		if index < len(message.ThinkingBlocks) {
			segments = append(segments, Segment{Kind: SegmentThinking, Thinking: &message.ThinkingBlocks[index]})
		}
		if index < len(message.ToolCalls) {
			segments = append(segments, Segment{Kind: SegmentTool, Tool: &message.ToolCalls[index]})
		}
	}
	if message.Content != "" {
		segments = append(segments, Segment{Kind: SegmentContent, Text: message.Content})
	}
	return segments
}
