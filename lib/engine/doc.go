// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the transport between the compute bridge and the
// overlay engine process.
//
// The engine speaks tagged messages. A request carries a [Kind] and a
// CBOR payload of the operation's fields; the engine answers with the
// same ID and either kind+"Result" with a string payload or
// kind+"Error" with a human-readable message. [Interpret] checks the
// correlation and turns the answer into a result or an error.
//
// [SocketEngine] sends each message on its own Unix socket connection
// and reads exactly one reply, the same one-request-per-connection
// model as the service sockets elsewhere in the tree. [Server] is the
// other end: it hosts a handler per kind and is used by the mock
// engine binary and by tests.
//
// Engines are obtained through a [Loader], called lazily by the
// bridge on first use. [DialLoader] connects to an engine that is
// already running; [ProcessLoader] starts the engine binary on demand
// and waits for its socket to accept connections.
package engine
