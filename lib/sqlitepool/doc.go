// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases with the pragmas the
// playground's stores expect.
//
// It wraps a zombiezen.com/go/sqlite connection pool. Every connection
// runs in WAL mode with NORMAL synchronous, a five second busy timeout,
// and the caller's schema script applied on first use. Connections are
// not safe for concurrent use: borrow one with [Pool.Take] and return
// it with [Pool.Put], or run a function against one with [Pool.With].
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/playground/objects.db",
//	    Schema: "CREATE TABLE IF NOT EXISTS objects (...);",
//	    Logger: logger,
//	})
//
// Callers write SQL directly with sqlitex.Execute and wrap multi-step
// writes in sqlitex.ImmediateTransaction.
package sqlitepool
