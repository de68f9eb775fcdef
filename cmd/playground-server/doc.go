// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Playground-server is the overlay playground backend. It serves the
// share persistence routes and puts the compute engine behind an HTTP
// API whose calls run one at a time through a bridge queue.
//
// Configuration comes from a single YAML file named by --config or
// PLAYGROUND_CONFIG. The engine is either dialed on its configured
// socket or, when engine.command is set, started on first use.
//
// Engine calls are POST /api/engine/{kind} with the operation's JSON
// fields as the body. A ?supersede=true request cancels every request
// queued ahead of it; the cancelled callers receive 409.
package main
