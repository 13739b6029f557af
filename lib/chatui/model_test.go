// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/recall-sh/recall/lib/api"
	"github.com/recall-sh/recall/lib/chat"
)

// fakeSessionAPI is an in-memory SessionAPI for model tests.
type fakeSessionAPI struct {
	createErr error
}

func (f *fakeSessionAPI) ListSessions(ctx context.Context) ([]api.Session, error) {
	return nil, nil
}

func (f *fakeSessionAPI) CreateSession(ctx context.Context, title string) (api.Session, error) {
	if f.createErr != nil {
		return api.Session{}, f.createErr
	}
	return api.Session{UID: "s-new", Title: title}, nil
}

func (f *fakeSessionAPI) RenameSession(ctx context.Context, uid, title string) (api.Session, error) {
	return api.Session{UID: uid, Title: title}, nil
}

func (f *fakeSessionAPI) DeleteSession(ctx context.Context, uid string) error {
	return nil
}

func (f *fakeSessionAPI) ListMessages(ctx context.Context, uid string) ([]api.SessionMessage, error) {
	return nil, nil
}

// fixedStreamOpener serves the same stream body for every turn.
type fixedStreamOpener struct {
	body string
}

func (opener fixedStreamOpener) OpenTurn(ctx context.Context, request chat.TurnRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(opener.body)), nil
}

// runUntilTurnFinished executes a command tree (following batches)
// until the turn completes.
func runUntilTurnFinished(t *testing.T, cmd tea.Cmd) turnFinishedMsg {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case turnFinishedMsg:
			return msg
		}
	}
	t.Fatal("no turn completion produced")
	return turnFinishedMsg{}
}

func TestSubmitWithoutSessionCreatesOneAndSends(t *testing.T) {
	t.Parallel()

	controller := chat.NewController(
		fixedStreamOpener{body: "data: {\"content\":\"Hi\"}\ndata: {\"done\":true}\n"},
		chat.UUIDGenerator{}, nil, nil)
	model := New(Options{
		Controller: controller,
		Client:     &fakeSessionAPI{},
		Theme:      DefaultTheme,
		Keys:       DefaultKeyMap,
	})
	model.composer.SetValue("first question")

	updated, cmd := model.submit()
	model = updated.(*Model)
	if cmd == nil {
		t.Fatal("submit returned no command")
	}
	created, ok := cmd().(sessionCreatedMsg)
	if !ok || created.err != nil {
		t.Fatalf("expected session creation, got %+v", created)
	}

	updated, cmd = model.Update(created)
	model = updated.(*Model)
	opened, ok := cmd().(sessionOpenedMsg)
	if !ok || opened.err != nil {
		t.Fatalf("expected session open, got %+v", opened)
	}

	updated, cmd = model.Update(opened)
	model = updated.(*Model)
	if !model.streaming {
		t.Fatal("turn not started after the auto-created session opened")
	}
	if model.composer.Value() != "" {
		t.Errorf("composer = %q, want empty once the turn started", model.composer.Value())
	}

	if finished := runUntilTurnFinished(t, cmd); finished.err != nil {
		t.Fatalf("turn failed: %v", finished.err)
	}
	messages := controller.Messages()
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(messages))
	}
	if messages[0].Content != "first question" {
		t.Errorf("user message = %q, want the submitted text", messages[0].Content)
	}
	if messages[1].Content != "Hi" {
		t.Errorf("assistant message = %q, want the streamed answer", messages[1].Content)
	}
}

func TestSubmitWithoutSessionRestoresTextOnCreateFailure(t *testing.T) {
	t.Parallel()

	controller := chat.NewController(fixedStreamOpener{}, chat.UUIDGenerator{}, nil, nil)
	model := New(Options{
		Controller: controller,
		Client:     &fakeSessionAPI{createErr: errors.New("server down")},
		Theme:      DefaultTheme,
		Keys:       DefaultKeyMap,
	})
	model.composer.SetValue("first question")

	updated, cmd := model.submit()
	model = updated.(*Model)
	updated, _ = model.Update(cmd())
	model = updated.(*Model)

	if model.composer.Value() != "first question" {
		t.Errorf("composer = %q, want the typed text restored", model.composer.Value())
	}
	if model.streaming {
		t.Error("no turn should be streaming after a failed creation")
	}
}

func TestConversationFromServer(t *testing.T) {
	t.Parallel()

	serverMessages := []api.SessionMessage{
		{ID: 10, Role: "user", Content: "find my packing list"},
		{ID: 11, Role: "assistant", Content: "searching", ToolName: "search_memos"},
		{ID: 12, Role: "assistant", Content: "Here is your packing list."},
	}
	conversation := conversationFromServer("sess-1", serverMessages)

	if conversation.ID != "sess-1" {
		t.Errorf("conversation ID = %q, want sess-1", conversation.ID)
	}
	// The tool-invocation row is server-side bookkeeping, not dialogue.
	if len(conversation.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (tool row skipped)", len(conversation.Messages))
	}
	if conversation.Messages[0].Role != chat.RoleUser || conversation.Messages[0].ID != "srv-10" {
		t.Errorf("first message = %+v, want user srv-10", conversation.Messages[0])
	}
	if conversation.Messages[1].Role != chat.RoleAssistant {
		t.Errorf("second message role = %s, want assistant", conversation.Messages[1].Role)
	}
	if conversation.Messages[1].Content != "Here is your packing list." {
		t.Errorf("content = %q", conversation.Messages[1].Content)
	}
}

func TestConversationFromServerUnknownRoleDefaultsToUser(t *testing.T) {
	t.Parallel()

	conversation := conversationFromServer("sess-1", []api.SessionMessage{
		{ID: 1, Role: "system", Content: "preamble"},
	})
	if conversation.Messages[0].Role != chat.RoleUser {
		t.Errorf("unknown role mapped to %s, want user", conversation.Messages[0].Role)
	}
}

func TestStreamNotifierWithoutProgram(t *testing.T) {
	t.Parallel()

	// Updates before SetProgram must be dropped, not panic.
	var notifier StreamNotifier
	notifier.Notify(chat.Update{MessageID: "m1"})
}

func TestLogHandlerEnabled(t *testing.T) {
	t.Parallel()

	handler := NewLogHandler(slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestLogHandlerDropsWithoutProgram(t *testing.T) {
	t.Parallel()

	handler := NewLogHandler(slog.LevelInfo)
	record := slog.Record{Message: "early failure", Level: slog.LevelError}
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() = %v, want nil drop", err)
	}
}

func TestLogHandlerDerivedSharesProgramPointer(t *testing.T) {
	t.Parallel()

	handler := NewLogHandler(slog.LevelInfo)
	derived, ok := handler.WithAttrs([]slog.Attr{slog.String("component", "store")}).(*LogHandler)
	if !ok {
		t.Fatal("WithAttrs should return a *LogHandler")
	}
	if derived.program != handler.program {
		t.Error("derived handler has a separate program pointer")
	}
	if grouped := handler.WithGroup("ignored"); grouped != slog.Handler(handler) {
		t.Error("WithGroup should return the handler unchanged")
	}
}
