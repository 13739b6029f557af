// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recall-sh/recall/lib/api"
	"github.com/recall-sh/recall/lib/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "recall.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestDraftRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if draft, err := store.LoadDraft(ctx, "s1"); err != nil || draft != "" {
		t.Fatalf("LoadDraft on empty store = %q, %v", draft, err)
	}

	if err := store.SaveDraft(ctx, "s1", "half-written question"); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	draft, err := store.LoadDraft(ctx, "s1")
	if err != nil || draft != "half-written question" {
		t.Fatalf("LoadDraft = %q, %v", draft, err)
	}

	// Saving again replaces.
	if err := store.SaveDraft(ctx, "s1", "rewritten"); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft, _ := store.LoadDraft(ctx, "s1"); draft != "rewritten" {
		t.Errorf("LoadDraft = %q, want replacement", draft)
	}

	// Saving an empty draft clears it.
	if err := store.SaveDraft(ctx, "s1", ""); err != nil {
		t.Fatalf("SaveDraft(empty): %v", err)
	}
	if draft, _ := store.LoadDraft(ctx, "s1"); draft != "" {
		t.Errorf("LoadDraft = %q, want cleared", draft)
	}
}

func TestSessionCache(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sessions := []api.Session{
		{UID: "old", Title: "Older chat", CreatedTs: 100, UpdatedTs: 200},
		{UID: "new", Title: "Newer chat", CreatedTs: 150, UpdatedTs: 900},
	}
	if err := store.CacheSessions(ctx, sessions); err != nil {
		t.Fatalf("CacheSessions: %v", err)
	}

	cached, err := store.CachedSessions(ctx)
	if err != nil {
		t.Fatalf("CachedSessions: %v", err)
	}
	if len(cached) != 2 || cached[0].UID != "new" {
		t.Errorf("cached = %+v, want newest first", cached)
	}

	// A later cache replaces the list wholesale.
	if err := store.CacheSessions(ctx, sessions[:1]); err != nil {
		t.Fatalf("CacheSessions: %v", err)
	}
	if cached, _ := store.CachedSessions(ctx); len(cached) != 1 || cached[0].UID != "old" {
		t.Errorf("cached = %+v, want replaced list", cached)
	}
}

func TestDeleteSessionRemovesEverything(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CacheSessions(ctx, []api.Session{{UID: "s1", Title: "Chat"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDraft(ctx, "s1", "draft"); err != nil {
		t.Fatal(err)
	}
	if err := store.CacheTranscript(ctx, "s1", []chat.Message{{ID: "m1", Role: chat.RoleUser, Content: "hi"}}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if cached, _ := store.CachedSessions(ctx); len(cached) != 0 {
		t.Errorf("sessions = %+v, want none", cached)
	}
	if draft, _ := store.LoadDraft(ctx, "s1"); draft != "" {
		t.Errorf("draft = %q, want removed", draft)
	}
	if transcript, _ := store.LoadTranscript(ctx, "s1"); transcript != nil {
		t.Errorf("transcript = %+v, want removed", transcript)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	messages := []chat.Message{
		{ID: "u1", Role: chat.RoleUser, Content: "question"},
		{
			ID:      "a1",
			Role:    chat.RoleAssistant,
			Content: "answer",
			ThinkingBlocks: []chat.ThinkingBlock{
				{ID: "th1", Content: "reasoning"},
			},
			Branches: []chat.Branch{
				{ID: "b1", Content: "earlier answer"},
			},
			CurrentBranch: 1,
		},
	}
	if err := store.CacheTranscript(ctx, "s1", messages); err != nil {
		t.Fatalf("CacheTranscript: %v", err)
	}

	loaded, err := store.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %d messages, want 2", len(loaded))
	}
	assistant := loaded[1]
	if assistant.Content != "answer" || assistant.CurrentBranch != 1 {
		t.Errorf("assistant = %+v", assistant)
	}
	if len(assistant.ThinkingBlocks) != 1 || assistant.ThinkingBlocks[0].Content != "reasoning" {
		t.Errorf("thinking = %+v", assistant.ThinkingBlocks)
	}
	if len(assistant.Branches) != 1 || assistant.Branches[0].Content != "earlier answer" {
		t.Errorf("branches = %+v", assistant.Branches)
	}
}

func TestTranscriptLargePayloadCompressed(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	// Well past compressThreshold once CBOR-encoded.
	long := strings.Repeat("the assistant said something memorable. ", 2_000)
	messages := []chat.Message{{ID: "a1", Role: chat.RoleAssistant, Content: long}}

	if err := store.CacheTranscript(ctx, "big", messages); err != nil {
		t.Fatalf("CacheTranscript: %v", err)
	}
	loaded, err := store.LoadTranscript(ctx, "big")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Content != long {
		t.Error("compressed transcript did not round-trip")
	}
}

func TestSettingRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if value, err := store.LoadSetting(ctx, "show_thinking"); err != nil || value != "" {
		t.Fatalf("LoadSetting on empty store = %q, %v", value, err)
	}

	if err := store.SaveSetting(ctx, "show_thinking", "false"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	if value, _ := store.LoadSetting(ctx, "show_thinking"); value != "false" {
		t.Errorf("LoadSetting = %q, want false", value)
	}

	// Saving again replaces.
	if err := store.SaveSetting(ctx, "show_thinking", "true"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	if value, _ := store.LoadSetting(ctx, "show_thinking"); value != "true" {
		t.Errorf("LoadSetting = %q, want replacement", value)
	}
}

func TestLoadTranscriptMissing(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	loaded, err := store.LoadTranscript(context.Background(), "never-cached")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if loaded != nil {
		t.Errorf("loaded = %+v, want nil for a cache miss", loaded)
	}
}
