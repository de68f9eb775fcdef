// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress converts session snapshot text to and from the
// compact binary form carried by share links.
//
// Three stream formats are supported ([FormatGzip], [FormatZstd],
// [FormatLZ4]). Each is self-identifying by its magic bytes, so
// [Decompress] and [NewReader] need no format argument and the share
// service can reject bodies that are not compressed snapshots with
// [DetectFormat] before storing anything.
//
// Both directions stream: [NewWriter] and [CompressStream] accept input
// in arbitrary chunks, and [NewReader] decodes incrementally. The
// whole-buffer helpers [Compress] and [Decompress] are thin wrappers.
//
// Every failure is an [*Error]. Truncated or corrupt input is never
// partially recovered.
package compress
