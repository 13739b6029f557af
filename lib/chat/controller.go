// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/recall-sh/recall/lib/stream"
)

// Status reports whether a turn is currently streaming. New turns are
// gated on it at the call site: Send, Regenerate, and EditAndResubmit
// all fail with [ErrBusy] while a stream is active.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
)

// ErrBusy is returned when a turn is requested while another is still
// streaming. At most one stream is active per conversation.
var ErrBusy = errors.New("chat: a turn is already streaming")

// ErrCancelled marks a turn stopped by [Controller.Cancel] or by the
// caller's context. The controller treats it as silent: Send and
// friends return nil for a cancelled turn.
var ErrCancelled = errors.New("chat: turn cancelled")

// TurnError is a protocol-level failure the server reported inside the
// stream. Its Message is display text for the user.
type TurnError struct {
	Message string
}

func (turnError *TurnError) Error() string {
	return "chat: turn failed: " + turnError.Message
}

// TurnMessage is one history entry sent to the server when opening a
// turn.
type TurnMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is everything the server needs to generate one assistant
// turn: the session it belongs to and the message history up to the
// turn point.
type TurnRequest struct {
	ConversationID string
	Messages       []TurnMessage
}

// StreamOpener opens the event stream for one assistant turn. The API
// client implements it; tests substitute scripted streams.
type StreamOpener interface {
	OpenTurn(ctx context.Context, request TurnRequest) (io.ReadCloser, error)
}

// Update is delivered to the controller's notify callback after every
// applied event, so a UI can re-render incrementally while the turn
// streams. The callback runs on the streaming goroutine; keep it
// cheap (post a message to the UI loop rather than rendering in it).
type Update struct {
	// MessageID identifies the assistant message that changed.
	MessageID string
}

// Controller owns one conversation and orchestrates streaming turns
// against a StreamOpener: it appends the user message and assistant
// placeholder, builds the request history, drives the frame decoder
// and event reducer, and performs cancellation and error rollback.
//
// Send, Regenerate, and EditAndResubmit block until the turn ends;
// run them from a goroutine (a bubbletea command) and call Cancel from
// elsewhere to stop early. All exported methods are safe for
// concurrent use.
type Controller struct {
	opener StreamOpener
	ids    IDGenerator
	logger *slog.Logger
	notify func(Update)

	mu           sync.Mutex
	conversation Conversation
	status       Status
	cancelTurn   context.CancelFunc
}

// NewController creates a controller for an empty conversation. notify
// may be nil.
func NewController(opener StreamOpener, ids IDGenerator, logger *slog.Logger, notify func(Update)) *Controller {
	if notify == nil {
		notify = func(Update) {}
	}
	return &Controller{
		opener: opener,
		ids:    ids,
		logger: logger,
		notify: notify,
	}
}

// Load replaces the controller's conversation, typically with history
// fetched for a persisted session. Fails with ErrBusy mid-turn.
func (controller *Controller) Load(conversation Conversation) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.status == StatusStreaming {
		return ErrBusy
	}
	controller.conversation = conversation
	return nil
}

// ConversationID returns the persisted session id, or "" for an
// unsaved conversation.
func (controller *Controller) ConversationID() string {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.conversation.ID
}

// Status reports whether a turn is streaming.
func (controller *Controller) Status() Status {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.status
}

// Messages returns a deep copy of the conversation, safe to render
// while the stream keeps mutating the originals.
func (controller *Controller) Messages() []Message {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	copied := make([]Message, len(controller.conversation.Messages))
	for index, message := range controller.conversation.Messages {
		copied[index] = message.clone()
	}
	return copied
}

// Send submits user text as a new turn: appends the user message and
// an empty assistant placeholder, then streams the assistant response
// into the placeholder. Blocks until the turn ends. Returns nil on
// success or cancellation; a *TurnError or transport error otherwise,
// in which case the placeholder has been removed and the user message
// retained.
func (controller *Controller) Send(ctx context.Context, text string) error {
	controller.mu.Lock()
	if controller.status == StatusStreaming {
		controller.mu.Unlock()
		return ErrBusy
	}

	userMessage := &Message{ID: controller.ids.NewID(), Role: RoleUser, Content: text}
	assistant := &Message{ID: controller.ids.NewID(), Role: RoleAssistant}
	controller.conversation.Messages = append(controller.conversation.Messages, userMessage, assistant)

	history := controller.historyLocked(len(controller.conversation.Messages) - 1)
	rollback := controller.dropLastMessageLocked

	return controller.streamTurnLocked(ctx, assistant, history, rollback)
}

// Regenerate replaces the assistant message at index with a freshly
// streamed response. The message's current content is archived as a
// branch first, and the new response streams into the same message id.
// The preceding message must be a user message. On failure the archive
// is undone and the previous content restored.
func (controller *Controller) Regenerate(ctx context.Context, index int) error {
	controller.mu.Lock()
	if controller.status == StatusStreaming {
		controller.mu.Unlock()
		return ErrBusy
	}

	messages := controller.conversation.Messages
	if index < 1 || index >= len(messages) {
		controller.mu.Unlock()
		return fmt.Errorf("chat: message index %d out of range", index)
	}
	target := messages[index]
	if target.Role != RoleAssistant {
		controller.mu.Unlock()
		return fmt.Errorf("chat: message %d is not an assistant message", index)
	}
	if messages[index-1].Role != RoleUser {
		controller.mu.Unlock()
		return fmt.Errorf("chat: message %d is not preceded by a user message", index)
	}

	target.archive(controller.ids.NewID())
	target.resetLive()

	history := controller.historyLocked(index)
	rollback := func() { target.unarchive() }

	return controller.streamTurnLocked(ctx, target, history, rollback)
}

// EditAndResubmit rewrites the user message at index, truncates the
// conversation after it, and streams a fresh assistant response. The
// prior user content is archived as a branch on the edited message.
// The truncation is not undone on failure; only the new assistant
// placeholder is removed.
func (controller *Controller) EditAndResubmit(ctx context.Context, index int, newContent string) error {
	controller.mu.Lock()
	if controller.status == StatusStreaming {
		controller.mu.Unlock()
		return ErrBusy
	}

	messages := controller.conversation.Messages
	if index < 0 || index >= len(messages) {
		controller.mu.Unlock()
		return fmt.Errorf("chat: message index %d out of range", index)
	}
	target := messages[index]
	if target.Role != RoleUser {
		controller.mu.Unlock()
		return fmt.Errorf("chat: message %d is not a user message", index)
	}

	target.archive(controller.ids.NewID())
	target.Content = newContent

	assistant := &Message{ID: controller.ids.NewID(), Role: RoleAssistant}
	controller.conversation.Messages = append(messages[:index+1], assistant)

	history := controller.historyLocked(index + 1)
	rollback := controller.dropLastMessageLocked

	return controller.streamTurnLocked(ctx, assistant, history, rollback)
}

// SelectBranch switches which archived variant of a message is
// displayed. branchIndex == len(Branches) selects the live variant.
func (controller *Controller) SelectBranch(messageIndex, branchIndex int) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.status == StatusStreaming {
		return ErrBusy
	}
	if messageIndex < 0 || messageIndex >= len(controller.conversation.Messages) {
		return fmt.Errorf("chat: message index %d out of range", messageIndex)
	}
	return controller.conversation.Messages[messageIndex].selectBranch(branchIndex)
}

// Cancel stops the active turn, if any. The interrupted Send (or
// Regenerate, or EditAndResubmit) returns nil: cancellation is silent,
// partial content streamed so far stays in place, and status resets to
// ready.
func (controller *Controller) Cancel() {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.cancelTurn != nil {
		controller.cancelTurn()
	}
}

// historyLocked builds the request history from messages[:end], using
// each message's displayed content. Caller holds mu.
func (controller *Controller) historyLocked(end int) []TurnMessage {
	history := make([]TurnMessage, 0, end)
	for _, message := range controller.conversation.Messages[:end] {
		history = append(history, TurnMessage{Role: message.Role, Content: message.Content})
	}
	return history
}

// dropLastMessageLocked removes the trailing assistant placeholder.
// Caller holds mu.
func (controller *Controller) dropLastMessageLocked() {
	messages := controller.conversation.Messages
	if len(messages) > 0 {
		controller.conversation.Messages = messages[:len(messages)-1]
	}
}

// streamTurnLocked runs one turn end to end: opens the stream and
// folds its events into target. Entered with mu held (state for the
// turn already prepared); the lock is released while blocked on the
// network and re-taken around each mutation. rollback runs under mu
// when the turn fails for any non-cancellation reason.
func (controller *Controller) streamTurnLocked(ctx context.Context, target *Message, history []TurnMessage, rollback func()) error {
	turnCtx, cancel := context.WithCancel(ctx)
	controller.status = StatusStreaming
	controller.cancelTurn = cancel
	request := TurnRequest{
		ConversationID: controller.conversation.ID,
		Messages:       history,
	}
	controller.mu.Unlock()

	turnErr := controller.runTurn(turnCtx, target, request)

	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.status = StatusReady
	controller.cancelTurn = nil
	cancel()

	if turnErr == nil {
		closeThinking(target)
		return nil
	}
	if errors.Is(turnErr, ErrCancelled) {
		// Silent: keep whatever streamed, just stop.
		closeThinking(target)
		return nil
	}
	rollback()
	return turnErr
}

// runTurn drives decoder and reducer for one turn. Runs without mu;
// takes it briefly per applied event.
func (controller *Controller) runTurn(ctx context.Context, target *Message, request TurnRequest) error {
	body, err := controller.opener.OpenTurn(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("chat: opening turn stream: %w", err)
	}
	defer body.Close()

	reducer := NewReducer(controller.ids)
	scanner := stream.NewScanner(body)

	for scanner.Next() {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		event := scanner.Event()

		switch event.Kind {
		case stream.KindDone:
			controller.logDropped(scanner)
			return nil
		case stream.KindError:
			controller.logDropped(scanner)
			return &TurnError{Message: event.Text}
		}

		controller.mu.Lock()
		reducer.Apply(target, event)
		controller.mu.Unlock()
		controller.notify(Update{MessageID: target.ID})
	}
	controller.logDropped(scanner)

	if ctx.Err() != nil {
		return ErrCancelled
	}
	if readErr := scanner.Err(); readErr != nil {
		// Connection dropped mid-stream: same handling as a
		// protocol error, partial content is discarded.
		return fmt.Errorf("chat: reading turn stream: %w", readErr)
	}
	// Stream ended without done or error. Treat as a clean finish;
	// the server closed the response after its final frame.
	return nil
}

func (controller *Controller) logDropped(scanner *stream.Scanner) {
	if dropped := scanner.Dropped(); dropped > 0 && controller.logger != nil {
		controller.logger.Warn("skipped malformed stream frames", "count", dropped)
	}
}
