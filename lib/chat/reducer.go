// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/recall-sh/recall/lib/stream"
)

// IDGenerator produces unique identifiers for messages, thinking
// blocks, and branches. Injectable so tests get deterministic ids.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator is the production IDGenerator, backed by random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Reducer folds stream events into one assistant message. Create a
// fresh Reducer per turn: the tool-id counter is per-turn, and the
// "currently open" thinking and search state is derived from the
// message itself, so a reducer carries no state that could drift from
// the message it mutates.
type Reducer struct {
	ids         IDGenerator
	toolCounter int
}

// NewReducer creates a reducer for one streaming turn.
func NewReducer(ids IDGenerator) *Reducer {
	return &Reducer{ids: ids}
}

// Apply folds one event into the message. Terminal events (done,
// error) do not mutate the message; the caller decides whether to
// freeze or discard it.
func (reducer *Reducer) Apply(message *Message, event stream.Event) {
	switch event.Kind {
	case stream.KindMemorySearch:
		reducer.applyMemorySearch(message, event)

	case stream.KindThinking:
		reducer.applyThinking(message, event.Text)

	case stream.KindContent:
		// Answer text arriving means reasoning is over, even without
		// an explicit close event.
		closeThinking(message)
		message.Content += event.Text

	case stream.KindToolCall:
		reducer.applyToolCall(message, event)

	case stream.KindDone, stream.KindError:
		// Terminal: handled by the turn loop.
	}
}

func (reducer *Reducer) applyMemorySearch(message *Message, event stream.Event) {
	switch event.Status {
	case stream.StatusStarted:
		// A search may run while a thinking block is open; it does not
		// close the block. A new search closes any still-open one
		// first, so at most one search is open per message.
		for index := range message.MemoryOps {
			if message.MemoryOps[index].Open() {
				message.MemoryOps[index].Status = MemoryStatusCompleted
			}
		}
		message.MemoryOps = append(message.MemoryOps, MemoryOp{
			Type:   MemoryTypeSearch,
			Status: MemoryStatusStarted,
			Query:  event.Query,
		})

	case stream.StatusCompleted:
		// Complete the most recent open search. A completion with no
		// open search is dropped rather than crashing the turn.
		for index := len(message.MemoryOps) - 1; index >= 0; index-- {
			if message.MemoryOps[index].Open() {
				message.MemoryOps[index].Status = MemoryStatusCompleted
				message.MemoryOps[index].Memories = event.Memories
				return
			}
		}
	}
}

func (reducer *Reducer) applyThinking(message *Message, delta string) {
	if open := message.openThinkingBlock(); open >= 0 {
		message.ThinkingBlocks[open].Content += delta
		return
	}
	message.ThinkingBlocks = append(message.ThinkingBlocks, ThinkingBlock{
		ID:          reducer.ids.NewID(),
		Content:     delta,
		IsStreaming: true,
	})
}

func (reducer *Reducer) applyToolCall(message *Message, event stream.Event) {
	switch event.Status {
	case stream.StatusCompleted, stream.StatusDenied:
		if call := findToolCall(message, event); call != nil {
			call.Status = event.Status
			if len(event.Input) > 0 {
				call.Input = event.Input
			}
			call.Output = event.Output
			call.Artifacts = event.Artifacts
			return
		}
		// Completion without a matching start (id mismatch or a lost
		// start frame): record the call directly in its final status.
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:        reducer.resolveToolID(event),
			Name:      event.ToolName,
			Status:    event.Status,
			Input:     event.Input,
			Output:    event.Output,
			Artifacts: event.Artifacts,
		})

	default:
		// started or pending_confirmation. A tool starting closes any
		// open thinking block, same as answer text.
		closeThinking(message)
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:     reducer.resolveToolID(event),
			Name:   event.ToolName,
			Status: event.Status,
			Input:  event.Input,
		})
	}
}

// resolveToolID returns the server-supplied id, or synthesizes one
// from the tool name and a per-turn counter.
func (reducer *Reducer) resolveToolID(event stream.Event) string {
	if event.ToolID != "" {
		return event.ToolID
	}
	reducer.toolCounter++
	return fmt.Sprintf("%s-%d", event.ToolName, reducer.toolCounter)
}

// findToolCall locates the call a terminal tool event resolves: by id
// when the server supplied one, otherwise the most recent call with the
// same name still awaiting a result.
func findToolCall(message *Message, event stream.Event) *ToolCall {
	if event.ToolID != "" {
		for index := range message.ToolCalls {
			if message.ToolCalls[index].ID == event.ToolID {
				return &message.ToolCalls[index]
			}
		}
		return nil
	}
	for index := len(message.ToolCalls) - 1; index >= 0; index-- {
		call := &message.ToolCalls[index]
		if call.Name == event.ToolName &&
			(call.Status == ToolStatusStarted || call.Status == ToolStatusPendingConfirmation) {
			return call
		}
	}
	return nil
}

// closeThinking marks the streaming thinking block, if any, as done.
func closeThinking(message *Message) {
	if open := message.openThinkingBlock(); open >= 0 {
		message.ThinkingBlocks[open].IsStreaming = false
	}
}
