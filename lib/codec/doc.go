// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration for the engine
// socket protocol.
//
// JSON is used at the HTTP edge (share endpoint responses, compute
// endpoint bodies, snapshot payloads inside share blobs). CBOR is used
// between the compute bridge and the engine process, where payloads
// are whole documents and a self-delimiting binary framing avoids any
// length-prefix protocol.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For connections:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that only travel over the engine socket use `cbor` struct
// tags. Types that also appear in HTTP bodies use `json` tags, which
// fxamacker/cbor reads as a fallback.
package codec
