// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the playground test suites.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes; t.TempDir() paths can exceed
// that under some runners.
//
// [RequireReceive] and [RequireClosed] are the only places tests wait
// on the wall clock. Everything else that involves time goes through
// lib/clock's fake.
package testutil
