// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// fixture is the canned answer for one operation kind. Exactly one of
// Result and Error is set.
type fixture struct {
	Result *string `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`

	// Delay overrides the global --delay for this kind.
	Delay string `json:"delay,omitempty"`

	delay time.Duration
}

// fixtureSet maps operation kinds to their canned answers.
type fixtureSet map[engine.Kind]*fixture

// parseFixtures strips JSONC comments and trailing commas from data,
// then decodes and validates the fixture set. Keys are matched to
// kinds case-insensitively.
func parseFixtures(data []byte) (fixtureSet, error) {
	var raw map[string]*fixture
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	fixtures := make(fixtureSet, len(raw))
	var errs []error
	for name, entry := range raw {
		kind, err := engine.ParseKind(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if entry == nil {
			errs = append(errs, fmt.Errorf("%s: fixture is null", name))
			continue
		}
		if (entry.Result == nil) == (entry.Error == "") {
			errs = append(errs, fmt.Errorf("%s: exactly one of result and error is required", name))
			continue
		}
		if entry.Delay != "" {
			entry.delay, err = time.ParseDuration(entry.Delay)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: delay: %w", name, err))
				continue
			}
		}
		if _, duplicate := fixtures[kind]; duplicate {
			errs = append(errs, fmt.Errorf("%s: duplicate fixture for %s", name, kind))
			continue
		}
		fixtures[kind] = entry
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fixtures, nil
}

// readFixtures reads and parses a JSONC fixture file.
func readFixtures(path string) (fixtureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fixtures, err := parseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixtures, nil
}
