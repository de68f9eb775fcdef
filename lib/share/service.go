// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/overlay-playground/lib/compress"
	"github.com/bureau-foundation/overlay-playground/lib/snapshot"
)

// DefaultMaxSize is the largest accepted share payload.
const DefaultMaxSize = 5 << 20

// chunkSize is the read granularity for incoming payloads.
const chunkSize = 32 << 10

// ObjectsPath is the URL path under which stored objects are served.
const ObjectsPath = "/objects/"

// Config configures a Service.
type Config struct {
	// Store persists objects. Required.
	Store ObjectStore

	Origins OriginPolicy

	// MaxSize defaults to DefaultMaxSize.
	MaxSize int64

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string

	// KeyEncoding defaults to KeyEncodingHex.
	KeyEncoding KeyEncoding

	// ShortLength is the base64 key length. Defaults to
	// DefaultShortLength.
	ShortLength int

	// PublicBaseURL is the externally visible base of the objects
	// route, e.g. "https://play.example.com". Required.
	PublicBaseURL string

	Logger *slog.Logger
}

// Service ingests share payloads into content-addressed storage.
type Service struct {
	store         ObjectStore
	origins       OriginPolicy
	maxSize       int64
	keyPrefix     string
	keyEncoding   KeyEncoding
	shortLength   int
	publicBaseURL string
	logger        *slog.Logger
}

// Receipt describes a stored share.
type Receipt struct {
	Key string `json:"key"`

	// Digest is the hex SHA-256 of the payload.
	Digest string `json:"digest"`

	Size int64 `json:"size"`

	// Created is false when identical bytes were already stored.
	Created bool `json:"created"`

	// URL retrieves the stored payload.
	URL string `json:"url"`

	// Locator is URL encoded for embedding as the "s" query parameter
	// of a share link.
	Locator string `json:"locator"`
}

// NewService validates config and returns a Service.
func NewService(config Config) (*Service, error) {
	if config.Store == nil {
		return nil, errors.New("share: Store is required")
	}
	if config.PublicBaseURL == "" {
		return nil, errors.New("share: PublicBaseURL is required")
	}
	service := &Service{
		store:         config.Store,
		origins:       config.Origins,
		maxSize:       config.MaxSize,
		keyPrefix:     config.KeyPrefix,
		keyEncoding:   config.KeyEncoding,
		shortLength:   config.ShortLength,
		publicBaseURL: strings.TrimRight(config.PublicBaseURL, "/"),
		logger:        config.Logger,
	}
	if service.maxSize <= 0 {
		service.maxSize = DefaultMaxSize
	}
	if service.keyPrefix == "" {
		service.keyPrefix = DefaultKeyPrefix
	}
	if service.keyEncoding == "" {
		service.keyEncoding = KeyEncodingHex
	}
	if service.shortLength <= 0 {
		service.shortLength = DefaultShortLength
	}
	if service.logger == nil {
		service.logger = slog.Default()
	}
	if err := ValidateKey(strings.TrimSuffix(service.keyPrefix, "/") + "/x"); err != nil {
		return nil, fmt.Errorf("share: key prefix %q: %w", service.keyPrefix, err)
	}
	return service, nil
}

// Origins returns the origin policy.
func (s *Service) Origins() OriginPolicy { return s.origins }

// MaxSize returns the payload limit in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// Store returns the object store.
func (s *Service) Store() ObjectStore { return s.store }

// ObjectURL returns the public URL for key.
func (s *Service) ObjectURL(key string) string {
	return s.publicBaseURL + ObjectsPath + key
}

// Ingest authorizes origin, reads body up to the size limit, and
// stores it under its content key. Nothing is stored unless every
// check passes.
func (s *Service) Ingest(ctx context.Context, origin string, body io.Reader) (*Receipt, error) {
	if !s.origins.Allowed(origin) {
		s.logger.Info("share rejected", "reason", "origin", "origin", origin)
		return nil, ErrUnauthorized
	}

	payload, digest, err := s.readPayload(ctx, body)
	if err != nil {
		s.logger.Info("share rejected", "reason", err.Error(), "origin", origin)
		return nil, err
	}

	key := DeriveKey(digest, s.keyPrefix, s.keyEncoding, s.shortLength)
	created, err := s.store.Put(ctx, key, payload)
	if err != nil {
		if errors.Is(err, ErrKeyCollision) {
			s.logger.Warn("share key collision", "key", key, "size", len(payload))
			return nil, err
		}
		s.logger.Error("share storage failed", "key", key, "error", err)
		return nil, &StorageError{Op: "put", Key: key, Err: err}
	}

	url := s.ObjectURL(key)
	receipt := &Receipt{
		Key:     key,
		Digest:  hex.EncodeToString(digest[:]),
		Size:    int64(len(payload)),
		Created: created,
		URL:     url,
		Locator: snapshot.EncodeLocator(url),
	}
	s.logger.Info("share stored",
		"key", key,
		"size", receipt.Size,
		"created", created,
	)
	return receipt, nil
}

// readPayload reads body in chunks, hashing as it goes, and stops the
// moment the total passes maxSize.
func (s *Service) readPayload(ctx context.Context, body io.Reader) ([]byte, [32]byte, error) {
	var digest [32]byte
	if body == nil {
		return nil, digest, ErrEmptyBody
	}

	hash := sha256.New()
	payload := make([]byte, 0, chunkSize)
	chunk := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, digest, err
		}
		count, err := body.Read(chunk)
		if count > 0 {
			total += int64(count)
			if total > s.maxSize {
				return nil, digest, ErrPayloadTooLarge
			}
			payload = append(payload, chunk[:count]...)
			hash.Write(chunk[:count])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, digest, fmt.Errorf("%w: reading body: %v", ErrMalformedBody, err)
		}
	}

	if total == 0 {
		return nil, digest, ErrEmptyBody
	}
	if _, ok := compress.DetectFormat(payload); !ok {
		return nil, digest, ErrMalformedBody
	}
	hash.Sum(digest[:0])
	return payload, digest, nil
}
