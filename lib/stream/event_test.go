// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"testing"
)

func TestParseLineContent(t *testing.T) {
	t.Parallel()

	event, ok, err := ParseLine(`data: {"content":"hello "}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindContent || event.Text != "hello " {
		t.Errorf("event = %+v, want content delta %q", event, "hello ")
	}
}

func TestParseLineEmptyContentDelta(t *testing.T) {
	t.Parallel()

	// An empty string delta is still a content event, not an
	// unrecognized frame.
	event, ok, err := ParseLine(`data: {"content":""}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindContent || event.Text != "" {
		t.Errorf("event = %+v, want empty content delta", event)
	}
}

func TestParseLineThinking(t *testing.T) {
	t.Parallel()

	event, ok, err := ParseLine(`data: {"thinking":"let me check"}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindThinking || event.Text != "let me check" {
		t.Errorf("event = %+v, want thinking delta", event)
	}
}

func TestParseLineMemorySearch(t *testing.T) {
	t.Parallel()

	event, ok, err := ParseLine(`data: {"memory":"search","status":"started","query":"deploy notes"}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindMemorySearch || event.Status != StatusStarted || event.Query != "deploy notes" {
		t.Errorf("event = %+v, want started memory search", event)
	}

	event, ok, err = ParseLine(`data: {"memory":"search","status":"completed","memories":["a","b"]}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindMemorySearch || event.Status != StatusCompleted {
		t.Errorf("event = %+v, want completed memory search", event)
	}
	if len(event.Memories) != 2 || event.Memories[0] != "a" || event.Memories[1] != "b" {
		t.Errorf("Memories = %v, want [a b]", event.Memories)
	}
}

func TestParseLineToolCall(t *testing.T) {
	t.Parallel()

	event, ok, err := ParseLine(`data: {"tool_call":"search_notes","status":"started","tool_id":"t-1","input":{"query":"x"}}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindToolCall || event.ToolName != "search_notes" || event.ToolID != "t-1" {
		t.Errorf("event = %+v, want started tool call", event)
	}
	if string(event.Input) != `{"query":"x"}` {
		t.Errorf("Input = %s, want raw input object", event.Input)
	}

	event, ok, err = ParseLine(`data: {"tool_call":"search_notes","status":"completed","tool_id":"t-1","output":[1,2]}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Status != StatusCompleted || string(event.Output) != "[1,2]" {
		t.Errorf("event = %+v, want completed tool call with output", event)
	}
}

func TestParseLineErrorAndDone(t *testing.T) {
	t.Parallel()

	event, ok, err := ParseLine(`data: {"error":"model overloaded"}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindError || event.Text != "model overloaded" {
		t.Errorf("event = %+v, want error", event)
	}

	event, ok, err = ParseLine(`data: {"done":true}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindDone {
		t.Errorf("event = %+v, want done", event)
	}
}

func TestParseLineNonEventLines(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"", ": keepalive", "event: message", "data:{\"content\":\"no space\"}"} {
		event, ok, err := ParseLine(line)
		if err != nil {
			t.Errorf("ParseLine(%q) error: %v", line, err)
		}
		if ok {
			t.Errorf("ParseLine(%q) = %+v, want ignored", line, event)
		}
	}
}

func TestParseLineMalformedPayload(t *testing.T) {
	t.Parallel()

	if _, ok, err := ParseLine(`data: {"content":`); err == nil || ok {
		t.Errorf("truncated JSON: ok=%v err=%v, want parse error", ok, err)
	}
	if _, ok, err := ParseLine(`data: {"unknown_field":1}`); err == nil || ok {
		t.Errorf("unrecognized shape: ok=%v err=%v, want error", ok, err)
	}
}

func TestParseLinePriorityOrder(t *testing.T) {
	t.Parallel()

	// A frame that populates several shapes resolves to the
	// highest-priority one.
	event, ok, err := ParseLine(`data: {"memory":"search","status":"started","thinking":"x","content":"y"}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindMemorySearch {
		t.Errorf("Kind = %v, want memory_search to win", event.Kind)
	}

	event, ok, err = ParseLine(`data: {"thinking":"x","content":"y","done":true}`)
	if err != nil || !ok {
		t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
	}
	if event.Kind != KindThinking {
		t.Errorf("Kind = %v, want thinking to win over content and done", event.Kind)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindMemorySearch: "memory_search",
		KindThinking:     "thinking",
		KindError:        "error",
		KindDone:         "done",
		KindContent:      "content",
		KindToolCall:     "tool_call",
		Kind(42):         "Kind(42)",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
