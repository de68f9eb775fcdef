// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "context"

// Engine executes one message at a time on behalf of the bridge.
type Engine interface {
	// Call sends request and returns the engine's response. Call must
	// return promptly once ctx is done.
	Call(ctx context.Context, request Message) (Message, error)

	// Close releases the engine. Calls after Close fail.
	Close() error
}

// Loader produces a ready Engine. The bridge calls it lazily and never
// concurrently with itself.
type Loader func(ctx context.Context) (Engine, error)
