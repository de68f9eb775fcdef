// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package share persists session snapshots for share links.
//
// [Service.Ingest] is the whole protocol: check the caller's Origin
// against an [OriginPolicy], read the body in 32 KiB chunks and abort
// the moment it passes the size limit, require a compressed snapshot
// blob, hash it with SHA-256, and store it write-once in an
// [ObjectStore] under prefix+digest. The [Receipt] carries the object's
// public URL and its base64 locator, the value of a share link's "s"
// parameter.
//
// Keys use the full hex digest by default. The base64 encoding yields
// shorter links; if two payloads ever map to the same short key the
// second share is rejected with [ErrKeyCollision] and the stored
// object is left untouched.
//
// [Service.Register] mounts POST /api/share and GET /objects/{key...}
// on a ServeMux.
package share
