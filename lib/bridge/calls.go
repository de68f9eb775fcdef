// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// OutcomeType tags the result of ApplyOverlay.
type OutcomeType string

const (
	// OutcomeSuccess means every overlay action applied.
	OutcomeSuccess OutcomeType = "success"

	// OutcomeIncomplete means an action's target selected nothing. The
	// result holds the document as far as it could be applied and
	// Line/Col locate the action in the overlay.
	OutcomeIncomplete OutcomeType = "incomplete"

	// OutcomeError means an action's target is not a valid JSONPath.
	// Line/Col locate the action in the overlay.
	OutcomeError OutcomeType = "error"
)

// ApplyOutcome is the decoded result of ApplyOverlay.
type ApplyOutcome struct {
	Type   OutcomeType `json:"type"`
	Result string      `json:"result,omitempty"`
	Line   int         `json:"line,omitempty"`
	Col    int         `json:"col,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// DecodeApplyOutcome parses the engine's ApplyOverlay result.
func DecodeApplyOutcome(result string) (*ApplyOutcome, error) {
	var outcome ApplyOutcome
	if err := json.Unmarshal([]byte(result), &outcome); err != nil {
		return nil, fmt.Errorf("decoding ApplyOverlay result: %w", err)
	}
	switch outcome.Type {
	case OutcomeSuccess, OutcomeIncomplete, OutcomeError:
		return &outcome, nil
	default:
		return nil, fmt.Errorf("decoding ApplyOverlay result: unknown outcome type %q", outcome.Type)
	}
}

// DocumentInfo is the decoded result of GetInfo.
type DocumentInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// DecodeDocumentInfo parses the engine's GetInfo result.
func DecodeDocumentInfo(result string) (*DocumentInfo, error) {
	var info DocumentInfo
	if err := json.Unmarshal([]byte(result), &info); err != nil {
		return nil, fmt.Errorf("decoding GetInfo result: %w", err)
	}
	return &info, nil
}

// CalculateOverlay returns the overlay document that turns from into
// to, extending existing.
func (b *Bridge) CalculateOverlay(ctx context.Context, from, to, existing string, supersede bool) (string, error) {
	return b.Do(ctx, CalculateOverlay{From: from, To: to, Existing: existing}, supersede)
}

// ApplyOverlay applies overlay to source.
func (b *Bridge) ApplyOverlay(ctx context.Context, source, overlay string, supersede bool) (*ApplyOutcome, error) {
	result, err := b.Do(ctx, ApplyOverlay{Source: source, Overlay: overlay}, supersede)
	if err != nil {
		return nil, err
	}
	return DecodeApplyOutcome(result)
}

// GetInfo describes document.
func (b *Bridge) GetInfo(ctx context.Context, document string, supersede bool) (*DocumentInfo, error) {
	result, err := b.Do(ctx, GetInfo{Document: document}, supersede)
	if err != nil {
		return nil, err
	}
	return DecodeDocumentInfo(result)
}

// QueryJSONPath evaluates path against source and returns the matched
// nodes as the engine renders them.
func (b *Bridge) QueryJSONPath(ctx context.Context, source, path string, supersede bool) (string, error) {
	return b.Do(ctx, QueryJSONPath{Source: source, Path: path}, supersede)
}
