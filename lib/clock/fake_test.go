// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(3 * time.Second)
	if got := fake.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now() after Advance = %v", got)
	}
}

func TestFakeClockAfter(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(5 * time.Second)

	fake.Advance(4 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(5 * time.Second)) {
			t.Errorf("After delivered %v", fired)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeClockAfterNonPositive(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
	if fake.PendingCount() != 0 {
		t.Errorf("After(0) registered a waiter")
	}
}

func TestFakeClockAfterFunc(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	fake.AfterFunc(time.Second, func() { calls.Add(1) })

	fake.Advance(999 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("AfterFunc ran early")
	}
	fake.Advance(time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("AfterFunc calls = %d, want 1", calls.Load())
	}
	fake.Advance(time.Hour)
	if calls.Load() != 1 {
		t.Errorf("one-shot AfterFunc ran %d times", calls.Load())
	}
}

func TestFakeClockAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	timer := fake.AfterFunc(time.Second, func() { calls.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}
	fake.Advance(time.Minute)
	if calls.Load() != 0 {
		t.Error("stopped AfterFunc ran")
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after Stop", fake.PendingCount())
	}
}

func TestFakeClockTicker(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	for i := range 3 {
		fake.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestFakeClockTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewTicker(0) should panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeClockWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	registered := make(chan struct{})
	fired := make(chan struct{})

	go func() {
		channel := fake.After(time.Second)
		close(registered)
		<-channel
		close(fired)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	<-registered
	<-fired
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("firing order = %v, want [1 2 3]", order)
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}
