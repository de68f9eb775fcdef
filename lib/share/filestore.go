// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each object as a read-only file under a root
// directory, at the path named by its key.
//
// Objects are written to a temporary file in the destination directory
// and then moved into place with an operation that fails instead of
// replacing an existing file. Readers never observe a partial object,
// and concurrent writers of the same key agree on a single file.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("share: file store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating file store root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the store directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}

	// The common repeat-share case needs no write at all.
	if existing, err := os.ReadFile(path); err == nil {
		return false, compareExisting(existing, data)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", directory, err)
	}

	temporary, err := os.CreateTemp(directory, ".upload-*")
	if err != nil {
		return false, fmt.Errorf("creating temporary object: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if err := writeAndSync(temporary, data); err != nil {
		return false, fmt.Errorf("writing temporary object: %w", err)
	}

	err = placeNoReplace(temporaryPath, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrExist):
		existing, readErr := os.ReadFile(path)
		if readErr != nil {
			return false, fmt.Errorf("reading existing object: %w", readErr)
		}
		return false, compareExisting(existing, data)
	default:
		return false, fmt.Errorf("placing object: %w", err)
	}
}

func writeAndSync(file *os.File, data []byte) error {
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Chmod(0o444); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func compareExisting(existing, data []byte) error {
	if !bytes.Equal(existing, data) {
		return ErrKeyCollision
	}
	return nil
}

func (s *FileStore) Open(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
