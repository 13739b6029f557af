// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/recall-sh/recall/lib/api"
)

// SaveDraft stores unsent input text for a session, replacing any
// previous draft. An empty draft is deleted instead of stored.
func (store *Store) SaveDraft(ctx context.Context, sessionUID, content string) error {
	if content == "" {
		return store.DeleteDraft(ctx, sessionUID)
	}
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO drafts (session_uid, content, updated_ts) VALUES (?, ?, ?)
			 ON CONFLICT (session_uid) DO UPDATE SET content = excluded.content, updated_ts = excluded.updated_ts`,
			&sqlitex.ExecOptions{
				Args: []any{sessionUID, content, store.now().Unix()},
			})
	})
	if err != nil {
		return fmt.Errorf("localstore: saving draft for %s: %w", sessionUID, err)
	}
	return nil
}

// LoadDraft returns the stored draft for a session, or "" if none.
func (store *Store) LoadDraft(ctx context.Context, sessionUID string) (string, error) {
	var content string
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT content FROM drafts WHERE session_uid = ?`,
			&sqlitex.ExecOptions{
				Args: []any{sessionUID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					content = stmt.ColumnText(0)
					return nil
				},
			})
	})
	if err != nil {
		return "", fmt.Errorf("localstore: loading draft for %s: %w", sessionUID, err)
	}
	return content, nil
}

// DeleteDraft removes a session's draft, if any.
func (store *Store) DeleteDraft(ctx context.Context, sessionUID string) error {
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`DELETE FROM drafts WHERE session_uid = ?`,
			&sqlitex.ExecOptions{Args: []any{sessionUID}})
	})
	if err != nil {
		return fmt.Errorf("localstore: deleting draft for %s: %w", sessionUID, err)
	}
	return nil
}

// CacheSessions replaces the cached session list with the given one.
// The cache backs the session picker when the server is unreachable.
func (store *Store) CacheSessions(ctx context.Context, sessions []api.Session) error {
	err := store.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Transaction(conn)(&err)

		if err := sqlitex.Execute(conn, `DELETE FROM sessions`, nil); err != nil {
			return err
		}
		for _, session := range sessions {
			err := sqlitex.Execute(conn,
				`INSERT INTO sessions (uid, title, created_ts, updated_ts) VALUES (?, ?, ?, ?)`,
				&sqlitex.ExecOptions{
					Args: []any{session.UID, session.Title, session.CreatedTs, session.UpdatedTs},
				})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstore: caching sessions: %w", err)
	}
	return nil
}

// CachedSessions returns the cached session list, most recently
// updated first.
func (store *Store) CachedSessions(ctx context.Context) ([]api.Session, error) {
	var sessions []api.Session
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT uid, title, created_ts, updated_ts FROM sessions ORDER BY updated_ts DESC`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sessions = append(sessions, api.Session{
						UID:       stmt.ColumnText(0),
						Title:     stmt.ColumnText(1),
						CreatedTs: stmt.ColumnInt64(2),
						UpdatedTs: stmt.ColumnInt64(3),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: reading cached sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session's cached row, draft, and transcript.
// Called after the server confirms deletion.
func (store *Store) DeleteSession(ctx context.Context, sessionUID string) error {
	err := store.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Transaction(conn)(&err)
		for _, query := range []string{
			`DELETE FROM sessions WHERE uid = ?`,
			`DELETE FROM drafts WHERE session_uid = ?`,
			`DELETE FROM transcripts WHERE session_uid = ?`,
		} {
			if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: []any{sessionUID}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstore: deleting session %s: %w", sessionUID, err)
	}
	return nil
}
