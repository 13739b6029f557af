// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the HTTP client for the Recall server: session CRUD
// over its REST surface and the streaming chat endpoint that produces
// one assistant turn as a line-framed event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recall-sh/recall/lib/chat"
)

// Session is one persisted chat session.
type Session struct {
	UID       string `json:"uid"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

// SessionMessage is one persisted message, as returned by the
// list-messages endpoint.
type SessionMessage struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ToolName  string `json:"toolName,omitempty"`
	CreatedTs int64  `json:"createdTs"`
}

// ServerError is a non-2xx response from the server, with the message
// extracted from its JSON error body when present.
type ServerError struct {
	StatusCode int
	Message    string
}

func (serverError *ServerError) Error() string {
	return fmt.Sprintf("api: server returned %d: %s", serverError.StatusCode, serverError.Message)
}

// Client talks to one Recall server. CRUD calls are bounded by
// requestTimeout; the streaming chat call is bounded only by its
// context, since a healthy turn can stream for minutes.
//
// Client implements [chat.StreamOpener].
type Client struct {
	baseURL        string
	token          string
	model          string
	requestTimeout time.Duration
	httpClient     *http.Client
}

// NewClient creates a client for the server at baseURL. token is sent
// as a bearer token on every request. requestTimeout bounds the
// non-streaming calls; zero means no bound.
func NewClient(baseURL, token string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		token:          token,
		requestTimeout: requestTimeout,
		httpClient:     &http.Client{},
	}
}

// SetModel requests a specific model for subsequent turns. Empty means
// the server default.
func (client *Client) SetModel(model string) {
	client.model = model
}

// ListSessions returns the caller's chat sessions, most recently
// updated first (server ordering).
func (client *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := client.doJSON(ctx, http.MethodGet, "/api/v1/ai/sessions", nil, &sessions); err != nil {
		return nil, fmt.Errorf("api: listing sessions: %w", err)
	}
	return sessions, nil
}

// CreateSession creates a session with the given title. An empty title
// gets a server-side default.
func (client *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	var session Session
	body := map[string]string{"title": title}
	if err := client.doJSON(ctx, http.MethodPost, "/api/v1/ai/sessions", body, &session); err != nil {
		return Session{}, fmt.Errorf("api: creating session: %w", err)
	}
	return session, nil
}

// RenameSession updates a session's title.
func (client *Client) RenameSession(ctx context.Context, uid, title string) (Session, error) {
	var session Session
	body := map[string]string{"title": title}
	path := "/api/v1/ai/sessions/" + url.PathEscape(uid)
	if err := client.doJSON(ctx, http.MethodPatch, path, body, &session); err != nil {
		return Session{}, fmt.Errorf("api: renaming session %s: %w", uid, err)
	}
	return session, nil
}

// DeleteSession removes a session and its messages.
func (client *Client) DeleteSession(ctx context.Context, uid string) error {
	path := "/api/v1/ai/sessions/" + url.PathEscape(uid)
	if err := client.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("api: deleting session %s: %w", uid, err)
	}
	return nil
}

// ListMessages returns a session's persisted message history in
// creation order.
func (client *Client) ListMessages(ctx context.Context, uid string) ([]SessionMessage, error) {
	var messages []SessionMessage
	path := "/api/v1/ai/sessions/" + url.PathEscape(uid) + "/messages"
	if err := client.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("api: listing messages for %s: %w", uid, err)
	}
	return messages, nil
}

// turnBody is the streaming chat request payload. Content is the new
// user text; History carries the client-side view of the conversation
// up to it, so edits and regenerations replay the right context.
type turnBody struct {
	Content string             `json:"content"`
	History []chat.TurnMessage `json:"history,omitempty"`
	Model   string             `json:"model,omitempty"`
}

// OpenTurn opens the event stream for one assistant turn. The returned
// body delivers "data: {json}" frames until the turn ends; the caller
// owns closing it. Cancelling ctx aborts the stream.
func (client *Client) OpenTurn(ctx context.Context, request chat.TurnRequest) (io.ReadCloser, error) {
	if request.ConversationID == "" {
		return nil, fmt.Errorf("api: opening turn: no session selected")
	}
	if len(request.Messages) == 0 {
		return nil, fmt.Errorf("api: opening turn: empty history")
	}

	last := request.Messages[len(request.Messages)-1]
	payload, err := json.Marshal(turnBody{
		Content: last.Content,
		History: request.Messages[:len(request.Messages)-1],
		Model:   client.model,
	})
	if err != nil {
		return nil, fmt.Errorf("api: encoding turn request: %w", err)
	}

	path := "/api/v1/ai/sessions/" + url.PathEscape(request.ConversationID) + "/chat"
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("api: building turn request: %w", err)
	}
	client.setHeaders(httpRequest)
	httpRequest.Header.Set("Accept", "text/event-stream")

	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("api: opening turn stream: %w", err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, client.responseError(httpResponse)
	}
	return httpResponse.Body, nil
}

// doJSON performs one bounded request/response call. requestBody and
// result may be nil.
func (client *Client) doJSON(ctx context.Context, method, path string, requestBody, result any) error {
	if client.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.requestTimeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		payload, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	client.setHeaders(httpRequest)

	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return client.responseError(httpResponse)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(httpResponse.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (client *Client) setHeaders(httpRequest *http.Request) {
	if client.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+client.token)
	}
	if httpRequest.Body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
}

// responseError builds a *ServerError from a non-2xx response. The
// server's error bodies are JSON {"message": "..."}; anything else is
// carried as truncated raw text.
func (client *Client) responseError(httpResponse *http.Response) error {
	const maxErrorBody = 4 * 1024
	raw, _ := io.ReadAll(io.LimitReader(httpResponse.Body, maxErrorBody))

	var parsed struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}
	if message == "" {
		message = http.StatusText(httpResponse.StatusCode)
	}
	return &ServerError{StatusCode: httpResponse.StatusCode, Message: message}
}
