// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream decodes the chat event stream produced by the Recall
// server for a single assistant turn.
//
// The wire format is line-framed: each event is one "data: {json}"
// line, and lines without that prefix are ignored. [LineScanner]
// handles the framing (including partial lines split across chunk
// boundaries), [ParseLine] decodes one frame into an [Event], and
// [Scanner] combines the two over an io.Reader:
//
//	scanner := stream.NewScanner(body)
//	for scanner.Next() {
//	    event := scanner.Event()
//	    // fold event into message state
//	}
//	if err := scanner.Err(); err != nil {
//	    // transport failure
//	}
package stream

import (
	"io"
)

// readBufferSize is the chunk size for stream reads. Events are small
// (one JSON object per line); 32 KiB comfortably covers bursts.
const readBufferSize = 32 * 1024

// Scanner reads chat events from an io.Reader. Frames that fail to
// parse are skipped rather than aborting the turn — a single corrupt
// line should not discard an otherwise healthy response. Skipped
// frames are counted in [Scanner.Dropped] so callers can log them.
//
// Scanner is not safe for concurrent use.
type Scanner struct {
	reader  io.Reader
	lines   LineScanner
	buffer  []byte
	pending []string
	current Event
	dropped int
	err     error
	eof     bool
}

// NewScanner creates a Scanner reading from reader.
func NewScanner(reader io.Reader) *Scanner {
	return &Scanner{
		reader: reader,
		buffer: make([]byte, readBufferSize),
	}
}

// Next advances to the next event. Returns false when the stream ends
// or a read error occurs; call [Err] to distinguish.
func (scanner *Scanner) Next() bool {
	for {
		// Drain decoded lines before reading more bytes.
		for len(scanner.pending) > 0 {
			line := scanner.pending[0]
			scanner.pending = scanner.pending[1:]

			event, ok, parseErr := ParseLine(line)
			if parseErr != nil {
				scanner.dropped++
				continue
			}
			if !ok {
				continue
			}
			scanner.current = event
			return true
		}

		if scanner.eof || scanner.err != nil {
			return false
		}

		n, readErr := scanner.reader.Read(scanner.buffer)
		if n > 0 {
			scanner.pending = scanner.lines.Feed(scanner.buffer[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				scanner.eof = true
				// A final unterminated line still counts as a frame.
				if tail, ok := scanner.lines.Flush(); ok {
					scanner.pending = append(scanner.pending, tail)
				}
			} else {
				scanner.err = readErr
			}
		}
	}
}

// Event returns the most recently decoded event. Only valid after
// [Next] returns true.
func (scanner *Scanner) Event() Event {
	return scanner.current
}

// Err returns the first read error encountered. Returns nil after a
// clean end of stream.
func (scanner *Scanner) Err() error {
	return scanner.err
}

// Dropped returns the number of frames discarded because their payload
// failed to parse.
func (scanner *Scanner) Dropped() int {
	return scanner.dropped
}
