// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/overlay-playground/lib/codec"
)

// Kind names an engine operation on the wire.
type Kind string

// Operation kinds the engine understands.
const (
	KindCalculateOverlay Kind = "CalculateOverlay"
	KindApplyOverlay     Kind = "ApplyOverlay"
	KindGetInfo          Kind = "GetInfo"
	KindQueryJSONPath    Kind = "QueryJSONPath"
)

// Kinds lists every operation kind in a stable order.
var Kinds = []Kind{KindCalculateOverlay, KindApplyOverlay, KindGetInfo, KindQueryJSONPath}

const (
	resultSuffix = "Result"
	errorSuffix  = "Error"
)

// Result returns the kind of a successful answer to k.
func (k Kind) Result() Kind { return k + resultSuffix }

// Error returns the kind of a failed answer to k.
func (k Kind) Error() Kind { return k + errorSuffix }

// Valid reports whether k is one of the request kinds in Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind accepts a request kind by its wire name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	for _, known := range Kinds {
		if strings.EqualFold(name, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown engine operation %q", name)
}

// Message is one engine request or response.
type Message struct {
	// ID correlates a response with its request.
	ID string `cbor:"id"`

	Kind Kind `cbor:"kind"`

	// Payload is the CBOR-encoded operation fields on a request and
	// the CBOR-encoded result string on a Result response.
	Payload codec.RawMessage `cbor:"payload,omitempty"`

	// Error is set only on Error responses.
	Error string `cbor:"error,omitempty"`
}

// NewRequest builds a request message, encoding fields as its payload.
func NewRequest(id string, kind Kind, fields any) (Message, error) {
	payload, err := codec.Marshal(fields)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return Message{ID: id, Kind: kind, Payload: payload}, nil
}

// NewResult builds the success answer to request.
func NewResult(request Message, result string) (Message, error) {
	payload, err := codec.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s result: %w", request.Kind, err)
	}
	return Message{ID: request.ID, Kind: request.Kind.Result(), Payload: payload}, nil
}

// NewError builds the failure answer to request.
func NewError(request Message, message string) Message {
	return Message{ID: request.ID, Kind: request.Kind.Error(), Error: message}
}

// RemoteError is the engine's own report that an operation failed.
type RemoteError struct {
	Kind    Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine %s failed: %s", e.Kind, e.Message)
}

// ProtocolError means the engine answered with something that is not a
// valid response to the request.
type ProtocolError struct {
	RequestID string
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("engine protocol violation for request %s: %s", e.RequestID, e.Reason)
}

// Interpret reads response as the answer to request. It returns the
// result string, a *RemoteError for an Error answer, or a
// *ProtocolError if the response is not correlated with request or has
// an unexpected kind.
func Interpret(request, response Message) (string, error) {
	if response.ID != request.ID {
		return "", &ProtocolError{
			RequestID: request.ID,
			Reason:    fmt.Sprintf("response carries id %q", response.ID),
		}
	}

	switch response.Kind {
	case request.Kind.Result():
		var result string
		if err := codec.Unmarshal(response.Payload, &result); err != nil {
			return "", &ProtocolError{
				RequestID: request.ID,
				Reason:    fmt.Sprintf("decoding result payload: %v", err),
			}
		}
		return result, nil

	case request.Kind.Error():
		return "", &RemoteError{Kind: request.Kind, Message: response.Error}

	default:
		return "", &ProtocolError{
			RequestID: request.ID,
			Reason:    fmt.Sprintf("response kind %q does not answer %q", response.Kind, request.Kind),
		}
	}
}
