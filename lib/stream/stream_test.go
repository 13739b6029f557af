// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader returns each string as one Read so tests control chunk
// boundaries exactly.
type chunkReader struct {
	chunks []string
}

func (reader *chunkReader) Read(buffer []byte) (int, error) {
	if len(reader.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(buffer, reader.chunks[0])
	reader.chunks[0] = reader.chunks[0][n:]
	if reader.chunks[0] == "" {
		reader.chunks = reader.chunks[1:]
	}
	return n, nil
}

func collectKinds(t *testing.T, scanner *Scanner) []Kind {
	t.Helper()
	var kinds []Kind
	for scanner.Next() {
		kinds = append(kinds, scanner.Event().Kind)
	}
	return kinds
}

func TestScannerFullTurn(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		`data: {"memory":"search","status":"started","query":"q"}`,
		`data: {"memory":"search","status":"completed","memories":["m1"]}`,
		`data: {"thinking":"hmm"}`,
		`data: {"content":"answer"}`,
		`data: {"done":true}`,
		``,
	}, "\n")

	scanner := NewScanner(strings.NewReader(body))
	kinds := collectKinds(t, scanner)
	want := []Kind{KindMemorySearch, KindMemorySearch, KindThinking, KindContent, KindDone}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for index := range want {
		if kinds[index] != want[index] {
			t.Errorf("kinds[%d] = %v, want %v", index, kinds[index], want[index])
		}
	}
	if err := scanner.Err(); err != nil {
		t.Errorf("Err = %v, want nil on clean EOF", err)
	}
	if scanner.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", scanner.Dropped())
	}
}

func TestScannerEventSplitAcrossReads(t *testing.T) {
	t.Parallel()

	scanner := NewScanner(&chunkReader{chunks: []string{
		`data: {"con`,
		`tent":"split"}` + "\n" + `data: {"do`,
		`ne":true}` + "\n",
	}})

	if !scanner.Next() {
		t.Fatal("expected content event")
	}
	if event := scanner.Event(); event.Kind != KindContent || event.Text != "split" {
		t.Errorf("event = %+v, want reassembled content delta", event)
	}
	if !scanner.Next() {
		t.Fatal("expected done event")
	}
	if scanner.Event().Kind != KindDone {
		t.Errorf("Kind = %v, want done", scanner.Event().Kind)
	}
	if scanner.Next() {
		t.Error("Next returned true after final event")
	}
}

func TestScannerUnterminatedFinalLine(t *testing.T) {
	t.Parallel()

	scanner := NewScanner(strings.NewReader(`data: {"content":"tail"}`))
	if !scanner.Next() {
		t.Fatal("expected the unterminated final frame to decode")
	}
	if event := scanner.Event(); event.Text != "tail" {
		t.Errorf("Text = %q, want %q", event.Text, "tail")
	}
	if scanner.Next() {
		t.Error("Next returned true past end of stream")
	}
	if err := scanner.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

func TestScannerSkipsMalformedFrames(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		`data: {"content":"ok"}`,
		`data: {not json`,
		`data: {"mystery":true}`,
		`: keepalive comment`,
		`data: {"done":true}`,
		``,
	}, "\n")

	scanner := NewScanner(strings.NewReader(body))
	kinds := collectKinds(t, scanner)
	if len(kinds) != 2 || kinds[0] != KindContent || kinds[1] != KindDone {
		t.Errorf("kinds = %v, want [content done]", kinds)
	}
	if scanner.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", scanner.Dropped())
	}
	if err := scanner.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

type failingReader struct {
	payload string
	err     error
	served  bool
}

func (reader *failingReader) Read(buffer []byte) (int, error) {
	if !reader.served {
		reader.served = true
		return copy(buffer, reader.payload), nil
	}
	return 0, reader.err
}

func TestScannerReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("connection reset")
	scanner := NewScanner(&failingReader{
		payload: `data: {"content":"partial"}` + "\n",
		err:     readErr,
	})

	if !scanner.Next() {
		t.Fatal("expected the frame before the failure")
	}
	if scanner.Next() {
		t.Error("Next returned true after read error")
	}
	if !errors.Is(scanner.Err(), readErr) {
		t.Errorf("Err = %v, want %v", scanner.Err(), readErr)
	}
}
