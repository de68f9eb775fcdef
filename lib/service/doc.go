// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared infrastructure for playground
// binaries:
//
//   - [HTTPServer]: TCP listener lifecycle with readiness signalling
//     and graceful shutdown.
//   - [LogRequests], [WriteJSON], [RespondError]: small HTTP helpers
//     shared by the API handlers.
//   - [NewLogger] and [NewCLILogger]: the standard slog setup for
//     servers and interactive commands.
//
// Binaries compose these in their own main() function rather than
// subclassing a framework. The package provides building blocks, not
// a runtime.
package service
