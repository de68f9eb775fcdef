// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/overlay-playground/lib/bridge"
	"github.com/bureau-foundation/overlay-playground/lib/codec"
	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// engineMock answers engine operations from fixtures, falling back to
// built-in answers for kinds without one.
type engineMock struct {
	fixtures fixtureSet
	delay    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	counts map[engine.Kind]int
}

func newEngineMock(fixtures fixtureSet, delay time.Duration, logger *slog.Logger) *engineMock {
	return &engineMock{
		fixtures: fixtures,
		delay:    delay,
		logger:   logger,
		counts:   make(map[engine.Kind]int),
	}
}

// register installs a handler for every operation kind.
func (m *engineMock) register(server *engine.Server) {
	for _, kind := range engine.Kinds {
		server.Handle(kind, m.handler(kind))
	}
}

// count returns how many operations of kind have been answered.
func (m *engineMock) count(kind engine.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[kind]
}

func (m *engineMock) handler(kind engine.Kind) engine.HandlerFunc {
	return func(ctx context.Context, payload codec.RawMessage) (string, error) {
		var fields map[string]string
		if len(payload) > 0 {
			if err := codec.Unmarshal(payload, &fields); err != nil {
				return "", fmt.Errorf("decoding %s fields: %w", kind, err)
			}
		}

		m.mu.Lock()
		m.counts[kind]++
		m.mu.Unlock()

		canned := m.fixtures[kind]
		delay := m.delay
		if canned != nil && canned.Delay != "" {
			delay = canned.delay
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		m.logger.Debug("answering operation", "kind", kind, "fixture", canned != nil, "delay", delay)

		if canned != nil {
			if canned.Error != "" {
				return "", errors.New(canned.Error)
			}
			return *canned.Result, nil
		}
		return builtin(kind, fields)
	}
}

// builtin answers kinds that have no fixture. GetInfo reads the
// document's info block; the overlay kinds echo their primary input.
func builtin(kind engine.Kind, fields map[string]string) (string, error) {
	switch kind {
	case engine.KindGetInfo:
		return documentInfo(fields["openapi"])
	case engine.KindCalculateOverlay:
		return fields["to"], nil
	case engine.KindApplyOverlay:
		encoded, err := json.Marshal(bridge.ApplyOutcome{
			Type:   bridge.OutcomeSuccess,
			Result: fields["source"],
		})
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case engine.KindQueryJSONPath:
		return fields["source"], nil
	default:
		return "", fmt.Errorf("unsupported operation %q", kind)
	}
}

// infoDocument is the subset of an OpenAPI document GetInfo reads.
// YAML is a superset of JSON, so one decoder handles both.
type infoDocument struct {
	Info struct {
		Title       string `yaml:"title"`
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
	} `yaml:"info"`
}

func documentInfo(text string) (string, error) {
	var document infoDocument
	if err := yaml.Unmarshal([]byte(text), &document); err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}
	encoded, err := json.Marshal(bridge.DocumentInfo{
		Title:       document.Info.Title,
		Version:     document.Info.Version,
		Description: document.Info.Description,
	})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
