// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge orders calls from independent editors into one stream
// executed by a single compute engine.
//
// Callers Submit an [Operation] and receive a [Pending] handle. The
// Bridge keeps a FIFO queue and dispatches its head whenever nothing
// is executing, so the engine never sees more than one call at a time.
// When a call finishes, every queued request that has a later request
// marked supersede behind it is rejected with a [*CancellationError],
// in enqueue order, before the finished request settles and the next
// one is dispatched. A request that is already executing is never
// cancelled.
//
// The engine is loaded on first use through an [engine.Loader]. Callers
// racing the first load share it. If the load fails, the dispatched
// request and everything queued behind it settle with [*InitError];
// the next dispatch tries again. Nothing retries in the background.
//
// Each engine call is bounded by Config.CallTimeout. A call that
// exceeds it settles with a [*TransportError] wrapping
// [ErrCallTimeout] and the queue moves on.
//
// Typed helpers ([Bridge.CalculateOverlay], [Bridge.ApplyOverlay],
// [Bridge.GetInfo], [Bridge.QueryJSONPath]) submit and wait, decoding
// the structured results where the engine returns them as JSON.
package bridge
