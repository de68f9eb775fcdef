// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized rejects a request whose Origin is missing or not
	// allowed. It is returned before the body is read or the store is
	// consulted.
	ErrUnauthorized = errors.New("origin not allowed")

	// ErrPayloadTooLarge aborts ingestion as soon as the body exceeds
	// the configured maximum.
	ErrPayloadTooLarge = errors.New("share payload exceeds size limit")

	// ErrEmptyBody rejects a request with no body bytes.
	ErrEmptyBody = errors.New("share payload is empty")

	// ErrMalformedBody rejects a body that is not a compressed snapshot
	// or that could not be read.
	ErrMalformedBody = errors.New("share payload is not a compressed snapshot")

	// ErrKeyCollision means different bytes are already stored under
	// the derived key. Only short keys can collide.
	ErrKeyCollision = errors.New("share key already holds different content")

	// ErrNotFound is returned by ObjectStore.Open for an unknown key.
	ErrNotFound = errors.New("share object not found")

	// ErrInvalidKey rejects keys that are not a slash-separated list of
	// plain path segments.
	ErrInvalidKey = errors.New("invalid share key")
)

// StorageError reports an object store failure. It is never retried
// internally.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("share storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
