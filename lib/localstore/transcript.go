// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/recall-sh/recall/lib/chat"
)

// transcriptEncoding identifies how a cached transcript payload is
// stored. Persisted in the encoding column; values are format
// constants, do not renumber.
type transcriptEncoding int64

const (
	// encodingCBOR is a bare CBOR message array.
	encodingCBOR transcriptEncoding = 0

	// encodingCBORZstd is CBOR wrapped in zstd. Applied when the CBOR
	// payload exceeds compressThreshold; long transcripts are mostly
	// prose and compress well.
	encodingCBORZstd transcriptEncoding = 1
)

// compressThreshold is the CBOR payload size above which transcripts
// are zstd-compressed before storage.
const compressThreshold = 4 * 1024

var (
	transcriptEncoder, _ = zstd.NewWriter(nil)
	transcriptDecoder, _ = zstd.NewReader(nil)
)

// CacheTranscript stores the last-known rendered state of a session's
// conversation, replacing any previous snapshot.
func (store *Store) CacheTranscript(ctx context.Context, sessionUID string, messages []chat.Message) error {
	payload, err := cbor.Marshal(messages)
	if err != nil {
		return fmt.Errorf("localstore: encoding transcript for %s: %w", sessionUID, err)
	}

	encoding := encodingCBOR
	if len(payload) > compressThreshold {
		payload = transcriptEncoder.EncodeAll(payload, nil)
		encoding = encodingCBORZstd
	}

	err = store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO transcripts (session_uid, encoding, payload, updated_ts) VALUES (?, ?, ?, ?)
			 ON CONFLICT (session_uid) DO UPDATE SET
			   encoding = excluded.encoding,
			   payload = excluded.payload,
			   updated_ts = excluded.updated_ts`,
			&sqlitex.ExecOptions{
				Args: []any{sessionUID, int64(encoding), payload, store.now().Unix()},
			})
	})
	if err != nil {
		return fmt.Errorf("localstore: caching transcript for %s: %w", sessionUID, err)
	}
	return nil
}

// LoadTranscript returns the cached conversation snapshot for a
// session, or nil if none is cached.
func (store *Store) LoadTranscript(ctx context.Context, sessionUID string) ([]chat.Message, error) {
	var (
		payload  []byte
		encoding transcriptEncoding
		found    bool
	)
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT encoding, payload FROM transcripts WHERE session_uid = ?`,
			&sqlitex.ExecOptions{
				Args: []any{sessionUID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					encoding = transcriptEncoding(stmt.ColumnInt64(0))
					payload = make([]byte, stmt.ColumnLen(1))
					stmt.ColumnBytes(1, payload)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: loading transcript for %s: %w", sessionUID, err)
	}
	if !found {
		return nil, nil
	}

	switch encoding {
	case encodingCBOR:
	case encodingCBORZstd:
		payload, err = transcriptDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("localstore: decompressing transcript for %s: %w", sessionUID, err)
		}
	default:
		return nil, fmt.Errorf("localstore: transcript for %s has unknown encoding %d", sessionUID, encoding)
	}

	var messages []chat.Message
	if err := cbor.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("localstore: decoding transcript for %s: %w", sessionUID, err)
	}
	return messages, nil
}
