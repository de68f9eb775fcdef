// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"

	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// Pending is the completion handle for one submitted operation. It is
// settled exactly once, with either a result or an error.
type Pending struct {
	id   string
	kind engine.Kind
	done chan struct{}

	// Written once before done is closed.
	result string
	err    error
}

func newPending(id string, kind engine.Kind) *Pending {
	return &Pending{id: id, kind: kind, done: make(chan struct{})}
}

// ID returns the request identifier, also used as the engine message ID.
func (p *Pending) ID() string { return p.id }

// Kind returns the operation kind.
func (p *Pending) Kind() engine.Kind { return p.kind }

// Done is closed when the request settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request settles or ctx is done. Giving up on
// the wait does not cancel the request.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the
// request is unsettled.
func (p *Pending) Result() (result string, ok bool, err error) {
	select {
	case <-p.done:
		return p.result, true, p.err
	default:
		return "", false, nil
	}
}

func (p *Pending) settle(result string, err error) {
	p.result = result
	p.err = err
	close(p.done)
}
