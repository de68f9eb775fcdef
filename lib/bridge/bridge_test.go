// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/overlay-playground/lib/clock"
	"github.com/bureau-foundation/overlay-playground/lib/codec"
	"github.com/bureau-foundation/overlay-playground/lib/engine"
	"github.com/bureau-foundation/overlay-playground/lib/testutil"
)

const waitTimeout = 5 * time.Second

// stubEngine records every call and the highest number of calls it
// ever saw executing at once.
type stubEngine struct {
	// respond produces the result or engine-side error for a request.
	// Nil echoes the request kind.
	respond func(request engine.Message) (string, error)

	// gate, when set, holds each call until a value is received or the
	// call's context ends.
	gate chan struct{}

	// started receives every request as its call begins.
	started chan engine.Message

	mu        sync.Mutex
	active    int
	maxActive int
	calls     []string
	closed    bool
}

func newStubEngine() *stubEngine {
	return &stubEngine{started: make(chan engine.Message, 1024)}
}

func (s *stubEngine) Call(ctx context.Context, request engine.Message) (engine.Message, error) {
	s.mu.Lock()
	s.active++
	s.maxActive = max(s.maxActive, s.active)
	s.calls = append(s.calls, request.ID)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	s.started <- request

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return engine.Message{}, context.Cause(ctx)
		}
	}

	respond := s.respond
	if respond == nil {
		respond = func(request engine.Message) (string, error) {
			return string(request.Kind) + " done", nil
		}
	}
	result, err := respond(request)
	if err != nil {
		return engine.NewError(request, err.Error()), nil
	}
	return engine.NewResult(request, result)
}

func (s *stubEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubEngine) callIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubEngine) loader() engine.Loader {
	return func(ctx context.Context) (engine.Engine, error) { return s, nil }
}

func newTestBridge(t *testing.T, config Config) *Bridge {
	t.Helper()
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	b, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func waitResult(t *testing.T, pending *Pending) (string, error) {
	t.Helper()
	testutil.RequireClosed(t, pending.Done(), waitTimeout, "request %s to settle", pending.ID())
	result, ok, err := pending.Result()
	if !ok {
		t.Fatalf("request %s: Done closed but Result not ready", pending.ID())
	}
	return result, err
}

func requireCancelled(t *testing.T, pending *Pending, supersededBy *Pending) {
	t.Helper()
	_, err := waitResult(t, pending)
	var cancellation *CancellationError
	if !errors.As(err, &cancellation) {
		t.Fatalf("request %s error = %v, want *CancellationError", pending.ID(), err)
	}
	if cancellation.RequestID != pending.ID() {
		t.Errorf("CancellationError.RequestID = %q, want %q", cancellation.RequestID, pending.ID())
	}
	if supersededBy != nil && cancellation.SupersededBy != supersededBy.ID() {
		t.Errorf("CancellationError.SupersededBy = %q, want %q", cancellation.SupersededBy, supersededBy.ID())
	}
}

func info(document string) Operation { return GetInfo{Document: document} }

func TestNewRequiresLoader(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without a Loader should fail")
	}
}

func TestSubmissionOrderIsDispatchOrder(t *testing.T) {
	stub := newStubEngine()
	b := newTestBridge(t, Config{Loader: stub.loader()})

	var pendings []*Pending
	for i := range 25 {
		pendings = append(pendings, b.Submit(info(fmt.Sprintf("doc %d", i)), false))
	}

	for _, pending := range pendings {
		result, err := waitResult(t, pending)
		if err != nil {
			t.Fatalf("request %s: %v", pending.ID(), err)
		}
		if result != "GetInfo done" {
			t.Errorf("request %s result = %q", pending.ID(), result)
		}
	}

	calls := stub.callIDs()
	if len(calls) != len(pendings) {
		t.Fatalf("engine saw %d calls, want %d", len(calls), len(pendings))
	}
	for i, pending := range pendings {
		if calls[i] != pending.ID() {
			t.Fatalf("call %d was %s, want %s", i, calls[i], pending.ID())
		}
	}
}

func TestEngineNeverSeesConcurrentCalls(t *testing.T) {
	stub := newStubEngine()
	b := newTestBridge(t, Config{Loader: stub.loader()})

	const submitters = 16
	const perSubmitter = 20

	var waitGroup sync.WaitGroup
	results := make(chan *Pending, submitters*perSubmitter)
	for submitter := range submitters {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for i := range perSubmitter {
				results <- b.Submit(info("burst"), (submitter+i)%5 == 0)
			}
		}()
	}
	waitGroup.Wait()
	close(results)

	settled := 0
	for pending := range results {
		_, err := waitResult(t, pending)
		var cancellation *CancellationError
		if err != nil && !errors.As(err, &cancellation) {
			t.Errorf("request %s: unexpected error %v", pending.ID(), err)
		}
		settled++
	}
	if settled != submitters*perSubmitter {
		t.Errorf("settled %d requests, want %d", settled, submitters*perSubmitter)
	}

	stub.mu.Lock()
	maxActive := stub.maxActive
	stub.mu.Unlock()
	if maxActive != 1 {
		t.Errorf("engine observed %d concurrent calls, want 1", maxActive)
	}
}

func TestSupersedeCancelsEarlierQueuedRequest(t *testing.T) {
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	stub.respond = func(request engine.Message) (string, error) {
		var fields GetInfo
		if err := codec.Unmarshal(request.Payload, &fields); err != nil {
			return "", err
		}
		return "answer for " + fields.Document, nil
	}
	b := newTestBridge(t, Config{Loader: stub.loader()})

	// The first request occupies the engine so the next two queue.
	running := b.Submit(info("running"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "first call to start")

	stale := b.Submit(info("stale"), false)
	fresh := b.Submit(info("fresh"), true)

	stub.gate <- struct{}{}
	if result, err := waitResult(t, running); err != nil || result != "answer for running" {
		t.Fatalf("running request = (%q, %v)", result, err)
	}

	next := testutil.RequireReceive(t, stub.started, waitTimeout, "superseding call to start")
	if next.ID != fresh.ID() {
		t.Fatalf("engine received %s, want the superseding request %s", next.ID, fresh.ID())
	}
	// The stale request was settled before the superseding one was
	// dispatched.
	if _, ok, _ := stale.Result(); !ok {
		t.Fatal("stale request not settled before the next dispatch")
	}
	requireCancelled(t, stale, fresh)

	stub.gate <- struct{}{}
	if result, err := waitResult(t, fresh); err != nil || result != "answer for fresh" {
		t.Fatalf("superseding request = (%q, %v)", result, err)
	}

	for _, id := range stub.callIDs() {
		if id == stale.ID() {
			t.Error("cancelled request reached the engine")
		}
	}
}

func TestSupersedeOnlyCancelsPrecedingRequests(t *testing.T) {
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	b := newTestBridge(t, Config{Loader: stub.loader()})

	running := b.Submit(info("running"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "first call to start")

	first := b.Submit(info("first"), false)
	second := b.Submit(info("second"), true)
	third := b.Submit(info("third"), false)
	fourth := b.Submit(info("fourth"), true)
	fifth := b.Submit(info("fifth"), false)

	stub.gate <- struct{}{}
	if _, err := waitResult(t, running); err != nil {
		t.Fatalf("running request: %v", err)
	}

	// Everything ahead of the last supersede request is stale,
	// including an earlier supersede request.
	requireCancelled(t, first, fourth)
	requireCancelled(t, second, fourth)
	requireCancelled(t, third, fourth)

	for _, pending := range []*Pending{fourth, fifth} {
		next := testutil.RequireReceive(t, stub.started, waitTimeout, "queued call to start")
		if next.ID != pending.ID() {
			t.Fatalf("engine received %s, want %s", next.ID, pending.ID())
		}
		stub.gate <- struct{}{}
		if _, err := waitResult(t, pending); err != nil {
			t.Fatalf("request %s: %v", pending.ID(), err)
		}
	}

	stats := b.Stats()
	if stats.Cancelled != 3 || stats.Completed != 3 || stats.Dispatched != 3 {
		t.Errorf("Stats = %+v, want 3 cancelled, 3 completed, 3 dispatched", stats)
	}
}

func TestInFlightRequestIsNeverCancelled(t *testing.T) {
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	b := newTestBridge(t, Config{Loader: stub.loader()})

	running := b.Submit(info("running"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "first call to start")
	superseding := b.Submit(info("newer"), true)

	stub.gate <- struct{}{}
	if _, err := waitResult(t, running); err != nil {
		t.Fatalf("in-flight request was not allowed to finish: %v", err)
	}
	testutil.RequireReceive(t, stub.started, waitTimeout, "superseding call to start")
	stub.gate <- struct{}{}
	if _, err := waitResult(t, superseding); err != nil {
		t.Fatalf("superseding request: %v", err)
	}
}

func TestCalculateOverlayReturnsEngineAnswer(t *testing.T) {
	const overlay = "overlay: 1.0.0\nactions:\n  - target: $.a\n    update: 2\n"

	stub := newStubEngine()
	var seen CalculateOverlay
	stub.respond = func(request engine.Message) (string, error) {
		if request.Kind != engine.KindCalculateOverlay {
			return "", fmt.Errorf("unexpected kind %s", request.Kind)
		}
		if err := codec.Unmarshal(request.Payload, &seen); err != nil {
			return "", err
		}
		return overlay, nil
	}
	b := newTestBridge(t, Config{Loader: stub.loader()})

	result, err := b.CalculateOverlay(t.Context(), "a: 1", "a: 2", "", true)
	if err != nil {
		t.Fatalf("CalculateOverlay: %v", err)
	}
	if result != overlay {
		t.Errorf("CalculateOverlay = %q, want %q", result, overlay)
	}
	if seen.From != "a: 1" || seen.To != "a: 2" || seen.Existing != "" {
		t.Errorf("engine received %+v", seen)
	}
}

func TestEngineErrorSettlesOnlyItsRequest(t *testing.T) {
	stub := newStubEngine()
	stub.respond = func(request engine.Message) (string, error) {
		var fields GetInfo
		codec.Unmarshal(request.Payload, &fields)
		if fields.Document == "broken" {
			return "", errors.New("failed to parse source schema")
		}
		return "ok", nil
	}
	b := newTestBridge(t, Config{Loader: stub.loader()})

	broken := b.Submit(info("broken"), false)
	healthy := b.Submit(info("healthy"), false)

	_, err := waitResult(t, broken)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("broken request error = %v, want *TransportError", err)
	}
	var remote *engine.RemoteError
	if !errors.As(err, &remote) || remote.Message != "failed to parse source schema" {
		t.Errorf("broken request error = %v, want the engine's message", err)
	}

	if result, err := waitResult(t, healthy); err != nil || result != "ok" {
		t.Errorf("healthy request = (%q, %v)", result, err)
	}
}

func TestInitFailureRejectsQueuedAndRetriesLazily(t *testing.T) {
	stub := newStubEngine()
	release := make(chan error)
	var loads atomic.Int32
	loader := func(ctx context.Context) (engine.Engine, error) {
		loads.Add(1)
		if err := <-release; err != nil {
			return nil, err
		}
		return stub, nil
	}
	b := newTestBridge(t, Config{Loader: loader})

	dispatched := b.Submit(info("a"), false)
	queued := b.Submit(info("b"), false)
	queuedSupersede := b.Submit(info("c"), true)

	loadFailure := errors.New("engine binary missing")
	release <- loadFailure

	for _, pending := range []*Pending{dispatched, queued, queuedSupersede} {
		_, err := waitResult(t, pending)
		var initErr *InitError
		if !errors.As(err, &initErr) {
			t.Fatalf("request %s error = %v, want *InitError", pending.ID(), err)
		}
		if !errors.Is(err, loadFailure) {
			t.Errorf("request %s error = %v, want it to wrap the load failure", pending.ID(), err)
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("loader called %d times after one failure, want 1", loads.Load())
	}
	if stats := b.Stats(); stats.EngineLoaded || stats.Queued != 0 {
		t.Errorf("Stats after failed load = %+v", stats)
	}

	retry := b.Submit(info("d"), false)
	release <- nil
	if _, err := waitResult(t, retry); err != nil {
		t.Fatalf("request after retry: %v", err)
	}
	if loads.Load() != 2 {
		t.Errorf("loader called %d times, want 2", loads.Load())
	}
	if stats := b.Stats(); !stats.EngineLoaded || stats.InitAttempts != 2 {
		t.Errorf("Stats after retry = %+v", stats)
	}
}

func TestConcurrentInitializationLoadsOnce(t *testing.T) {
	stub := newStubEngine()
	release := make(chan struct{})
	var loads atomic.Int32
	loader := func(ctx context.Context) (engine.Engine, error) {
		loads.Add(1)
		<-release
		return stub, nil
	}
	b := newTestBridge(t, Config{Loader: loader})

	const warmers = 8
	warmErrors := make(chan error, warmers)
	for range warmers {
		go func() { warmErrors <- b.Warm(t.Context()) }()
	}
	pending := b.Submit(info("a"), false)

	close(release)
	for range warmers {
		if err := testutil.RequireReceive(t, warmErrors, waitTimeout, "Warm to return"); err != nil {
			t.Errorf("Warm: %v", err)
		}
	}
	if _, err := waitResult(t, pending); err != nil {
		t.Fatalf("request: %v", err)
	}
	if loads.Load() != 1 {
		t.Errorf("loader called %d times, want 1", loads.Load())
	}
}

func TestCallTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	b := newTestBridge(t, Config{
		Loader:      stub.loader(),
		Clock:       fake,
		CallTimeout: 2 * time.Second,
	})

	hung := b.Submit(info("hung"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "hung call to start")
	following := b.Submit(info("following"), false)

	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)

	_, err := waitResult(t, hung)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("hung request error = %v, want *TransportError", err)
	}
	if !errors.Is(err, ErrCallTimeout) {
		t.Errorf("hung request error = %v, want ErrCallTimeout", err)
	}

	testutil.RequireReceive(t, stub.started, waitTimeout, "following call to start")
	stub.gate <- struct{}{}
	if _, err := waitResult(t, following); err != nil {
		t.Fatalf("request after timeout: %v", err)
	}
}

func TestCloseRejectsQueued(t *testing.T) {
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	b := newTestBridge(t, Config{Loader: stub.loader()})

	running := b.Submit(info("running"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "first call to start")
	queued := b.Submit(info("queued"), false)

	closed := make(chan error, 1)
	go func() { closed <- b.Close() }()

	if _, err := waitResult(t, queued); !errors.Is(err, ErrClosed) {
		t.Errorf("queued request error = %v, want ErrClosed", err)
	}

	// Close waits for the in-flight call.
	stub.gate <- struct{}{}
	if _, err := waitResult(t, running); err != nil {
		t.Errorf("in-flight request: %v", err)
	}
	if err := testutil.RequireReceive(t, closed, waitTimeout, "Close to return"); err != nil {
		t.Errorf("Close: %v", err)
	}

	stub.mu.Lock()
	engineClosed := stub.closed
	stub.mu.Unlock()
	if !engineClosed {
		t.Error("Close did not close the engine")
	}

	if _, err := waitResult(t, b.Submit(info("late"), false)); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close error = %v, want ErrClosed", err)
	}
}

func TestPendingWaitHonorsContext(t *testing.T) {
	stub := newStubEngine()
	stub.gate = make(chan struct{})
	b := newTestBridge(t, Config{Loader: stub.loader()})

	pending := b.Submit(info("slow"), false)
	testutil.RequireReceive(t, stub.started, waitTimeout, "call to start")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := pending.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait with cancelled context = %v, want context.Canceled", err)
	}
	if _, ok, _ := pending.Result(); ok {
		t.Error("abandoning Wait must not settle the request")
	}

	stub.gate <- struct{}{}
	if _, err := pending.Wait(t.Context()); err != nil {
		t.Errorf("Wait: %v", err)
	}
}
