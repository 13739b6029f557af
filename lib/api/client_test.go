// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/recall-sh/recall/lib/chat"
	"github.com/recall-sh/recall/lib/stream"
)

func TestListSessions(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/ai/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"uid":"s1","title":"First","createdTs":1,"updatedTs":2}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", 0)
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].UID != "s1" || sessions[0].Title != "First" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestCreateAndRenameSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/ai/sessions":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Session{UID: "s2", Title: body["title"]})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/ai/sessions/s2":
			json.NewEncoder(w).Encode(Session{UID: "s2", Title: body["title"]})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	created, err := client.CreateSession(context.Background(), "Notes")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.UID != "s2" || created.Title != "Notes" {
		t.Errorf("created = %+v", created)
	}

	renamed, err := client.RenameSession(context.Background(), "s2", "Renamed")
	if err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	if renamed.Title != "Renamed" {
		t.Errorf("renamed = %+v", renamed)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/ai/sessions/gone" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	if err := client.DeleteSession(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
}

func TestServerErrorFromJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"session not found"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.ListMessages(context.Background(), "nope")
	var serverError *ServerError
	if !errors.As(err, &serverError) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverError.StatusCode != http.StatusNotFound || serverError.Message != "session not found" {
		t.Errorf("serverError = %+v", serverError)
	}
}

func TestOpenTurnStreamsEvents(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ai/sessions/s1/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Content string             `json:"content"`
			History []chat.TurnMessage `json:"history"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding turn body: %v", err)
		}
		if body.Content != "new question" {
			t.Errorf("content = %q, want the final history entry", body.Content)
		}
		if len(body.History) != 2 {
			t.Errorf("history = %+v, want the two prior messages", body.History)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"content\":\"Hi\"}\ndata: {\"done\":true}\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	body, err := client.OpenTurn(context.Background(), chat.TurnRequest{
		ConversationID: "s1",
		Messages: []chat.TurnMessage{
			{Role: chat.RoleUser, Content: "old question"},
			{Role: chat.RoleAssistant, Content: "old answer"},
			{Role: chat.RoleUser, Content: "new question"},
		},
	})
	if err != nil {
		t.Fatalf("OpenTurn: %v", err)
	}
	defer body.Close()

	scanner := stream.NewScanner(body)
	var kinds []stream.Kind
	for scanner.Next() {
		kinds = append(kinds, scanner.Event().Kind)
	}
	if len(kinds) != 2 || kinds[0] != stream.KindContent || kinds[1] != stream.KindDone {
		t.Errorf("kinds = %v, want [content done]", kinds)
	}
}

func TestOpenTurnRejectsMissingSession(t *testing.T) {
	t.Parallel()

	client := NewClient("http://unused", "", 0)
	_, err := client.OpenTurn(context.Background(), chat.TurnRequest{
		Messages: []chat.TurnMessage{{Role: chat.RoleUser, Content: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "no session") {
		t.Errorf("err = %v, want missing-session failure", err)
	}
}

func TestOpenTurnServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"message":"assistant is not configured"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.OpenTurn(context.Background(), chat.TurnRequest{
		ConversationID: "s1",
		Messages:       []chat.TurnMessage{{Role: chat.RoleUser, Content: "x"}},
	})
	var serverError *ServerError
	if !errors.As(err, &serverError) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverError.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", serverError.StatusCode)
	}
}
