// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// ObjectStore holds immutable share objects by key.
type ObjectStore interface {
	// Put stores data under key unless it is already there. Storing the
	// same bytes again is a no-op that reports created=false. Different
	// bytes under an existing key fail with ErrKeyCollision. Concurrent
	// Puts of the same bytes are safe.
	Put(ctx context.Context, key string, data []byte) (created bool, err error)

	// Open returns the object's content, or ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadSeekCloser, error)

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)
}

// MemoryStore is an in-process ObjectStore for tests and throwaway
// servers.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[key]; ok {
		if !bytes.Equal(existing, data) {
			return false, ErrKeyCollision
		}
		return false, nil
	}
	s.objects[key] = bytes.Clone(data)
	return true, nil
}

func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
