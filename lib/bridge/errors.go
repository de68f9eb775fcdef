// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// ErrClosed settles requests submitted to, or still queued in, a
// closed Bridge.
var ErrClosed = errors.New("bridge closed")

// ErrCallTimeout is the cause inside a *TransportError when an engine
// call exceeded Config.CallTimeout.
var ErrCallTimeout = errors.New("engine call timed out")

// CancellationError settles a queued request that a later supersede
// request made stale. The request was never sent to the engine.
type CancellationError struct {
	RequestID string
	Kind      engine.Kind

	// SupersededBy is the ID of the latest supersede request queued
	// behind the cancelled one.
	SupersededBy string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("%s request %s superseded by %s", e.Kind, e.RequestID, e.SupersededBy)
}

// TransportError settles a request whose engine call failed: the
// engine reported an error, the exchange broke, or the call timed out.
type TransportError struct {
	RequestID string
	Kind      engine.Kind
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request %s: %v", e.Kind, e.RequestID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InitError settles the dispatched request and every queued request
// when the engine could not be loaded.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
