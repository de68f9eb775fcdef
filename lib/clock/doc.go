// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations used by the compute
// bridge (engine call timeouts) and the engine process loader (socket
// readiness polling).
//
// Components hold a Clock field. Production passes Real(). Tests pass
// Fake(start), wait for the component to arm its timer with
// WaitForTimers, and then fire it with Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	b := bridge.New(bridge.Config{Clock: fake, CallTimeout: time.Second, ...})
//	pending := b.Submit(op, false)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second) // the in-flight call times out
package clock
