// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"strings"
)

// LineScanner splits an incremental byte stream into text lines. Chunk
// boundaries are arbitrary — a line may arrive split across any number
// of chunks — so the scanner retains the trailing partial line from
// each Feed call and prepends it to the next chunk before splitting.
//
// LineScanner is not safe for concurrent use.
type LineScanner struct {
	partial []byte
}

// Feed decodes one chunk and returns the complete lines it contains,
// in order. The line terminator is "\n"; a trailing "\r" is stripped
// so CRLF streams work unchanged. Any bytes after the last terminator
// are buffered until the next Feed (or Flush).
func (scanner *LineScanner) Feed(chunk []byte) []string {
	if len(scanner.partial) > 0 {
		chunk = append(scanner.partial, chunk...)
		scanner.partial = nil
	}

	var lines []string
	for {
		newline := bytes.IndexByte(chunk, '\n')
		if newline < 0 {
			break
		}
		line := chunk[:newline]
		chunk = chunk[newline+1:]
		lines = append(lines, strings.TrimSuffix(string(line), "\r"))
	}

	if len(chunk) > 0 {
		// Copy the tail: chunk may alias a caller-owned buffer that
		// will be overwritten by the next read.
		scanner.partial = append([]byte(nil), chunk...)
	}
	return lines
}

// Flush returns the buffered partial line, if any, and resets the
// scanner. Call after the stream ends to recover a final line that
// was not newline-terminated.
func (scanner *LineScanner) Flush() (string, bool) {
	if len(scanner.partial) == 0 {
		return "", false
	}
	line := strings.TrimSuffix(string(scanner.partial), "\r")
	scanner.partial = nil
	return line, true
}
