// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SaveSetting stores a UI preference that should survive restarts,
// such as the thinking-block visibility toggle.
func (store *Store) SaveSetting(ctx context.Context, key, value string) error {
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			&sqlitex.ExecOptions{Args: []any{key, value}})
	})
	if err != nil {
		return fmt.Errorf("localstore: saving setting %s: %w", key, err)
	}
	return nil
}

// LoadSetting returns the stored value for key, or "" if unset.
func (store *Store) LoadSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT value FROM settings WHERE key = ?`,
			&sqlitex.ExecOptions{
				Args: []any{key},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					value = stmt.ColumnText(0)
					return nil
				},
			})
	})
	if err != nil {
		return "", fmt.Errorf("localstore: loading setting %s: %w", key, err)
	}
	return value, nil
}
