// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot is the client side of share links.
//
// A [Snapshot] holds the original and result documents of an editing
// session. [Encode] renders it as compressed JSON; that blob is what the
// share endpoint stores. The endpoint answers with a locator, the
// base64 of the stored object's URL, which is placed in the "s" query
// parameter of a share link. [Client.Resolve] reverses the chain: it
// decodes the locator, fetches the object, decompresses it, and decodes
// the JSON.
package snapshot
