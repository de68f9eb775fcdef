// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bureau-foundation/overlay-playground/lib/clock"
	"github.com/bureau-foundation/overlay-playground/lib/engine"
)

// DefaultCallTimeout bounds a single engine call when Config.CallTimeout
// is zero.
const DefaultCallTimeout = 30 * time.Second

// Config configures a Bridge.
type Config struct {
	// Loader produces the engine on first use. Required.
	Loader engine.Loader

	// Clock drives call timeouts. Defaults to clock.Real().
	Clock clock.Clock

	// CallTimeout bounds each engine call. Zero selects
	// DefaultCallTimeout; a negative value disables the bound, and a
	// hung engine then stalls the queue.
	CallTimeout time.Duration

	// Logger receives structured output. If nil, slog.Default() is
	// used. Per-request events are logged at Debug; engine lifecycle
	// at Info; failures at Warn/Error.
	Logger *slog.Logger
}

// Bridge serializes operations from independent callers into a single
// ordered stream against one engine. At most one operation executes at
// a time. A request submitted with supersede set cancels every request
// queued ahead of it that has not yet been dispatched; the cancellation
// is applied when the in-flight request completes.
//
// One Bridge is created per process and shared by reference.
type Bridge struct {
	loader      engine.Loader
	clock       clock.Clock
	callTimeout time.Duration
	logger      *slog.Logger

	// lifetime is cancelled by Close and aborts a pending engine load.
	lifetime       context.Context
	cancelLifetime context.CancelFunc

	mu       sync.Mutex
	queue    []*request
	inFlight *request
	engine   engine.Engine
	loading  *loadAttempt
	closed   bool
	stats    Stats

	// workers counts dispatch and load goroutines.
	workers sync.WaitGroup
}

type request struct {
	pending   *Pending
	operation Operation
	supersede bool
}

// loadAttempt is one engine initialization, shared by every caller
// that needs the engine while it runs.
type loadAttempt struct {
	done   chan struct{}
	engine engine.Engine
	err    error
}

// Stats is a point-in-time view of the Bridge.
type Stats struct {
	Queued       int    `json:"queued"`
	InFlight     bool   `json:"in_flight"`
	EngineLoaded bool   `json:"engine_loaded"`
	Submitted    uint64 `json:"submitted"`
	Dispatched   uint64 `json:"dispatched"`
	Completed    uint64 `json:"completed"`
	Cancelled    uint64 `json:"cancelled"`
	Failed       uint64 `json:"failed"`
	InitAttempts uint64 `json:"init_attempts"`
}

// New creates a Bridge. The engine is not loaded until the first
// dispatch or an explicit Warm.
func New(config Config) (*Bridge, error) {
	if config.Loader == nil {
		return nil, errors.New("bridge: Loader is required")
	}
	bridgeClock := config.Clock
	if bridgeClock == nil {
		bridgeClock = clock.Real()
	}
	callTimeout := config.CallTimeout
	if callTimeout == 0 {
		callTimeout = DefaultCallTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Bridge{
		loader:         config.Loader,
		clock:          bridgeClock,
		callTimeout:    callTimeout,
		logger:         logger,
		lifetime:       lifetime,
		cancelLifetime: cancel,
	}, nil
}

// Submit enqueues operation and returns its completion handle without
// blocking. If nothing is executing, the head of the queue is
// dispatched before Submit returns.
func (b *Bridge) Submit(operation Operation, supersede bool) *Pending {
	pending := newPending(ulid.Make().String(), operation.Kind())

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		pending.settle("", ErrClosed)
		return pending
	}
	b.queue = append(b.queue, &request{
		pending:   pending,
		operation: operation,
		supersede: supersede,
	})
	b.stats.Submitted++
	depth := len(b.queue)
	if b.inFlight == nil {
		b.dispatchLocked()
	}
	b.mu.Unlock()

	b.logger.Debug("request queued",
		"request_id", pending.id,
		"kind", pending.kind,
		"supersede", supersede,
		"queue_depth", depth,
	)
	return pending
}

// Do submits operation and waits for its result.
func (b *Bridge) Do(ctx context.Context, operation Operation, supersede bool) (string, error) {
	return b.Submit(operation, supersede).Wait(ctx)
}

// Warm loads the engine now instead of on first dispatch. It shares the
// load with any dispatch that races it.
func (b *Bridge) Warm(ctx context.Context) error {
	_, err := b.engineFor(ctx)
	return err
}

// Stats returns current queue and counter values.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.Queued = len(b.queue)
	stats.InFlight = b.inFlight != nil
	stats.EngineLoaded = b.engine != nil
	return stats
}

// Close rejects every queued request with ErrClosed, waits for the
// in-flight request to settle, and closes the engine. Submit after
// Close settles immediately with ErrClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	queued := b.queue
	b.queue = nil
	b.stats.Failed += uint64(len(queued))
	b.mu.Unlock()

	for _, abandoned := range queued {
		abandoned.pending.settle("", ErrClosed)
	}

	b.cancelLifetime()
	b.workers.Wait()

	b.mu.Lock()
	loaded := b.engine
	b.engine = nil
	b.mu.Unlock()

	b.logger.Info("bridge closed", "abandoned", len(queued))
	if loaded != nil {
		if err := loaded.Close(); err != nil {
			return fmt.Errorf("closing engine: %w", err)
		}
	}
	return nil
}

// dispatchLocked moves the queue head in flight. The caller holds mu,
// has checked that nothing is in flight, and that the queue is not
// empty.
func (b *Bridge) dispatchLocked() {
	next := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	b.inFlight = next
	b.stats.Dispatched++

	b.workers.Add(1)
	go b.run(next)
}

// run executes one dispatched request, applies supersession to the
// queue, settles the victims and then the request itself, and
// dispatches the next request.
func (b *Bridge) run(current *request) {
	defer b.workers.Done()

	started := b.clock.Now()
	result, err := b.execute(current)

	b.mu.Lock()
	victims, supersededBy := b.takeSupersededLocked()
	b.stats.Cancelled += uint64(len(victims))
	if err != nil {
		b.stats.Failed++
	} else {
		b.stats.Completed++
	}
	b.mu.Unlock()

	for _, victim := range victims {
		b.logger.Debug("request superseded",
			"request_id", victim.pending.id,
			"kind", victim.pending.kind,
			"superseded_by", supersededBy,
		)
		victim.pending.settle("", &CancellationError{
			RequestID:    victim.pending.id,
			Kind:         victim.pending.kind,
			SupersededBy: supersededBy,
		})
	}

	if err != nil {
		b.logger.Warn("request failed",
			"request_id", current.pending.id,
			"kind", current.pending.kind,
			"error", err,
		)
	} else {
		b.logger.Debug("request complete",
			"request_id", current.pending.id,
			"kind", current.pending.kind,
			"result_bytes", len(result),
			"duration", b.clock.Now().Sub(started),
		)
	}
	current.pending.settle(result, err)

	b.mu.Lock()
	b.inFlight = nil
	if len(b.queue) > 0 && !b.closed {
		b.dispatchLocked()
	}
	b.mu.Unlock()
}

// takeSupersededLocked removes every queued request that has a later
// supersede request behind it and returns them in enqueue order, with
// the ID of the last supersede request.
func (b *Bridge) takeSupersededLocked() ([]*request, string) {
	last := -1
	for index, queued := range b.queue {
		if queued.supersede {
			last = index
		}
	}
	if last <= 0 {
		return nil, ""
	}

	victims := make([]*request, last)
	copy(victims, b.queue[:last])
	b.queue = append([]*request(nil), b.queue[last:]...)
	return victims, b.queue[0].pending.id
}

func (b *Bridge) execute(current *request) (string, error) {
	loaded, err := b.engineFor(b.lifetime)
	if err != nil {
		if b.lifetime.Err() != nil {
			return "", ErrClosed
		}
		return "", b.failQueued(&InitError{Err: err})
	}

	message, err := encodeRequest(current.pending.id, current.operation)
	if err != nil {
		return "", &TransportError{RequestID: current.pending.id, Kind: current.pending.kind, Err: err}
	}

	b.logger.Debug("request dispatched",
		"request_id", current.pending.id,
		"kind", current.pending.kind,
		operationGroup(current.operation),
	)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	if b.callTimeout > 0 {
		timer := b.clock.AfterFunc(b.callTimeout, func() {
			cancel(ErrCallTimeout)
		})
		defer timer.Stop()
	}

	response, err := loaded.Call(ctx, message)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrCallTimeout) && !errors.Is(err, ErrCallTimeout) {
			err = fmt.Errorf("%w after %v: %v", ErrCallTimeout, b.callTimeout, err)
		}
		return "", &TransportError{RequestID: current.pending.id, Kind: current.pending.kind, Err: err}
	}

	result, err := engine.Interpret(message, response)
	if err != nil {
		return "", &TransportError{RequestID: current.pending.id, Kind: current.pending.kind, Err: err}
	}
	return result, nil
}

// failQueued rejects every queued request with initErr and returns it
// for the dispatched request.
func (b *Bridge) failQueued(initErr *InitError) error {
	b.mu.Lock()
	queued := b.queue
	b.queue = nil
	b.stats.Failed += uint64(len(queued))
	b.mu.Unlock()

	for _, rejected := range queued {
		rejected.pending.settle("", initErr)
	}
	return initErr
}

// engineFor returns the loaded engine, starting a load or joining the
// one in progress.
func (b *Bridge) engineFor(ctx context.Context) (engine.Engine, error) {
	b.mu.Lock()
	if b.engine != nil {
		loaded := b.engine
		b.mu.Unlock()
		return loaded, nil
	}
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	attempt := b.loading
	if attempt == nil {
		attempt = &loadAttempt{done: make(chan struct{})}
		b.loading = attempt
		b.stats.InitAttempts++
		b.workers.Add(1)
		go b.load(attempt)
	}
	b.mu.Unlock()

	select {
	case <-attempt.done:
		return attempt.engine, attempt.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) load(attempt *loadAttempt) {
	defer b.workers.Done()

	b.logger.Info("loading engine")
	started := b.clock.Now()
	loaded, err := b.loader(b.lifetime)
	if err == nil && loaded == nil {
		err = errors.New("loader returned no engine")
	}

	var discard engine.Engine
	b.mu.Lock()
	b.loading = nil
	if err == nil && b.closed {
		discard, loaded, err = loaded, nil, ErrClosed
	}
	if err == nil {
		b.engine = loaded
	}
	attempt.engine, attempt.err = loaded, err
	b.mu.Unlock()
	close(attempt.done)

	if discard != nil {
		discard.Close()
	}
	if err != nil {
		b.logger.Error("engine load failed", "error", err)
		return
	}
	b.logger.Info("engine loaded", "duration", b.clock.Now().Sub(started))
}
