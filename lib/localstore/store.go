// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package localstore is Recall's local SQLite database: per-session
// input drafts, a cached copy of the session list, and an offline
// transcript cache so a session renders instantly while the server
// round-trip is still in flight.
//
// All state here is a cache or a convenience; the server remains the
// source of truth for sessions and messages. Losing the database loses
// unsent drafts and nothing else.
package localstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	uid        TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	session_uid TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	updated_ts  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	session_uid TEXT PRIMARY KEY,
	encoding    INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	updated_ts  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is a fixed-size pool of SQLite connections over the local
// database. Safe for concurrent use; individual connections are not,
// so every operation borrows a connection and returns it before the
// call completes.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
	now    func() time.Time
}

// Open opens (creating if needed) the local database at path. The
// parent directory must exist. Use ":memory:" with in-memory semantics
// for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("localstore: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    4,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: opening %s: %w", path, err)
	}

	logger.Info("local store opened", "path", path)
	return &Store{
		pool:   pool,
		logger: logger,
		path:   path,
		now:    time.Now,
	}, nil
}

// Close closes all connections. Blocks until borrowed connections are
// returned.
func (store *Store) Close() error {
	if err := store.pool.Close(); err != nil {
		return fmt.Errorf("localstore: closing %s: %w", store.path, err)
	}
	store.logger.Info("local store closed", "path", store.path)
	return nil
}

// prepareConnection applies pragmas and the schema. Runs once per
// pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	// WAL keeps reads cheap while a draft save is in flight;
	// busy_timeout covers the brief writer contention that remains.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("localstore: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("localstore: applying schema: %w", err)
	}
	return nil
}

// withConn borrows a connection for one operation.
func (store *Store) withConn(ctx context.Context, operation func(conn *sqlite.Conn) error) error {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("localstore: take: %w", err)
	}
	defer store.pool.Put(conn)
	return operation(conn)
}
