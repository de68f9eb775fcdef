// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Playground-engine-mock is a drop-in replacement for the compute
// engine in integration tests and local development. It accepts the
// engine socket protocol exactly (one CBOR request per connection)
// and answers from a JSONC fixture file keyed by operation kind.
//
// Kinds without a fixture get built-in answers: GetInfo reads
// info.title, info.version, and info.description from the YAML or
// JSON document; CalculateOverlay echoes its target document;
// ApplyOverlay reports success with the unchanged source; and
// QueryJSONPath echoes its source.
//
// The server starts it through engine.command with
// --socket appended, or it can be run by hand and dialed.
package main
