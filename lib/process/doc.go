// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for playground
// binaries. These functions centralize the raw I/O that happens before
// or after the structured logger exists:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main(), with the
//     exit code carried by an [ExitError] when the command wants one.
package process
