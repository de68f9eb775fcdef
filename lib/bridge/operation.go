// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// Operation is one engine request. The set of operations is closed:
// the implementations are the four types in this file, and every
// consumer handles them through an OperationVisitor, so adding an
// operation fails to compile until every visitor handles it.
type Operation interface {
	// Kind is the operation's wire name.
	Kind() engine.Kind

	accept(visitor OperationVisitor)
}

// OperationVisitor has one method per Operation type.
type OperationVisitor interface {
	VisitCalculateOverlay(CalculateOverlay)
	VisitApplyOverlay(ApplyOverlay)
	VisitGetInfo(GetInfo)
	VisitQueryJSONPath(QueryJSONPath)
}

// Visit dispatches operation to the visitor method for its type.
func Visit(operation Operation, visitor OperationVisitor) {
	operation.accept(visitor)
}

// CalculateOverlay asks the engine for the overlay that turns From
// into To, extending Existing.
type CalculateOverlay struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Existing string `json:"existing"`
}

// ApplyOverlay asks the engine to apply Overlay to Source.
type ApplyOverlay struct {
	Source  string `json:"source"`
	Overlay string `json:"overlay"`
}

// GetInfo asks the engine to describe Document.
type GetInfo struct {
	Document string `json:"openapi"`
}

// QueryJSONPath evaluates Path against Source.
type QueryJSONPath struct {
	Source string `json:"source"`
	Path   string `json:"jsonpath"`
}

func (CalculateOverlay) Kind() engine.Kind { return engine.KindCalculateOverlay }
func (ApplyOverlay) Kind() engine.Kind     { return engine.KindApplyOverlay }
func (GetInfo) Kind() engine.Kind          { return engine.KindGetInfo }
func (QueryJSONPath) Kind() engine.Kind    { return engine.KindQueryJSONPath }

func (o CalculateOverlay) accept(v OperationVisitor) { v.VisitCalculateOverlay(o) }
func (o ApplyOverlay) accept(v OperationVisitor)     { v.VisitApplyOverlay(o) }
func (o GetInfo) accept(v OperationVisitor)          { v.VisitGetInfo(o) }
func (o QueryJSONPath) accept(v OperationVisitor)    { v.VisitQueryJSONPath(o) }

// ParseOperation decodes the JSON fields of the operation named by
// kind. Unknown fields are rejected.
func ParseOperation(kind engine.Kind, data []byte) (Operation, error) {
	var operation Operation
	var err error
	switch kind {
	case engine.KindCalculateOverlay:
		operation, err = decodeStrict[CalculateOverlay](data)
	case engine.KindApplyOverlay:
		operation, err = decodeStrict[ApplyOverlay](data)
	case engine.KindGetInfo:
		operation, err = decodeStrict[GetInfo](data)
	case engine.KindQueryJSONPath:
		operation, err = decodeStrict[QueryJSONPath](data)
	default:
		return nil, fmt.Errorf("unknown engine operation %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, err)
	}
	return operation, nil
}

func decodeStrict[T Operation](data []byte) (Operation, error) {
	var operation T
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&operation); err != nil {
		return nil, err
	}
	return operation, nil
}

// logAttributes summarizes an operation for logs by input size, never
// by content.
type logAttributes struct {
	attributes []any
}

func (l *logAttributes) VisitCalculateOverlay(o CalculateOverlay) {
	l.attributes = []any{"from_bytes", len(o.From), "to_bytes", len(o.To), "existing_bytes", len(o.Existing)}
}

func (l *logAttributes) VisitApplyOverlay(o ApplyOverlay) {
	l.attributes = []any{"source_bytes", len(o.Source), "overlay_bytes", len(o.Overlay)}
}

func (l *logAttributes) VisitGetInfo(o GetInfo) {
	l.attributes = []any{"document_bytes", len(o.Document)}
}

func (l *logAttributes) VisitQueryJSONPath(o QueryJSONPath) {
	l.attributes = []any{"source_bytes", len(o.Source), "jsonpath", o.Path}
}

func operationGroup(operation Operation) slog.Attr {
	var visitor logAttributes
	Visit(operation, &visitor)
	return slog.Group("operation", visitor.attributes...)
}

// payloadEncoder builds the engine request for an operation.
type payloadEncoder struct {
	id      string
	message engine.Message
	err     error
}

func (p *payloadEncoder) encode(kind engine.Kind, fields any) {
	p.message, p.err = engine.NewRequest(p.id, kind, fields)
}

func (p *payloadEncoder) VisitCalculateOverlay(o CalculateOverlay) {
	p.encode(engine.KindCalculateOverlay, o)
}

func (p *payloadEncoder) VisitApplyOverlay(o ApplyOverlay) {
	p.encode(engine.KindApplyOverlay, o)
}

func (p *payloadEncoder) VisitGetInfo(o GetInfo) {
	p.encode(engine.KindGetInfo, o)
}

func (p *payloadEncoder) VisitQueryJSONPath(o QueryJSONPath) {
	p.encode(engine.KindQueryJSONPath, o)
}

func encodeRequest(id string, operation Operation) (engine.Message, error) {
	encoder := payloadEncoder{id: id}
	Visit(operation, &encoder)
	return encoder.message, encoder.err
}
