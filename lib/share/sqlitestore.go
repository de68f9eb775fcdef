// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/overlay-playground/lib/sqlitepool"
)

const objectsSchema = `
CREATE TABLE IF NOT EXISTS objects (
	key  TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	size INTEGER NOT NULL
) WITHOUT ROWID;
`

// SQLiteStore keeps objects as rows of a single SQLite table. Writes
// take an immediate transaction, so concurrent Puts of one key
// serialize on the database lock and exactly one of them inserts.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: objectsSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{pool: pool}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) (created bool, err error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	existing, found, err := selectObject(conn, key)
	if err != nil {
		return false, err
	}
	if found {
		return false, compareExisting(existing, data)
	}

	err = sqlitex.Execute(conn, "INSERT INTO objects (key, data, size) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{key, data, len(data)},
	})
	if err != nil {
		return false, fmt.Errorf("inserting object: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Open(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	var data []byte
	var found bool
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		var err error
		data, found, err = selectObject(conn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	var found bool
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT 1 FROM objects WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	})
	return found, err
}

func selectObject(conn *sqlite.Conn, key string) ([]byte, bool, error) {
	var data []byte
	found := false
	err := sqlitex.Execute(conn, "SELECT data FROM objects WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, found, nil
}
