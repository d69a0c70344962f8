package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerExpiresOnce(t *testing.T) {
	timer := NewQuestionTimer(5 * time.Millisecond)
	var (
		mu      sync.Mutex
		ticks   []int
		expired atomic.Int32
		done    = make(chan struct{})
	)
	timer.Start(3, func(left int) {
		mu.Lock()
		ticks = append(ticks, left)
		mu.Unlock()
	}, func() {
		if expired.Add(1) == 1 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never expired")
	}
	time.Sleep(30 * time.Millisecond)

	if expired.Load() != 1 {
		t.Fatalf("expected a single expiry, got %d", expired.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 2 || ticks[0] != 2 || ticks[1] != 1 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	if timer.Active() {
		t.Fatalf("timer should be inactive after expiry")
	}
}

func TestTimerCancelIsIdempotent(t *testing.T) {
	timer := NewQuestionTimer(5 * time.Millisecond)
	var expired atomic.Int32
	timer.Start(4, nil, func() { expired.Add(1) })
	if !timer.Active() {
		t.Fatalf("expected active timer")
	}
	timer.Cancel()
	timer.Cancel()

	time.Sleep(50 * time.Millisecond)
	if expired.Load() != 0 || timer.Active() {
		t.Fatalf("canceled timer fired or stayed active")
	}

	// cancel with nothing running
	NewQuestionTimer(0).Cancel()
}

func TestTimerZeroDurationStartsNothing(t *testing.T) {
	timer := NewQuestionTimer(5 * time.Millisecond)
	var calls atomic.Int32
	timer.Start(0, func(int) { calls.Add(1) }, func() { calls.Add(1) })
	if timer.Active() {
		t.Fatalf("zero duration must not start a countdown")
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("unexpected callbacks")
	}
}

func TestTimerRestartCancelsPrevious(t *testing.T) {
	timer := NewQuestionTimer(5 * time.Millisecond)
	var first, second atomic.Int32
	timer.Start(2, nil, func() { first.Add(1) })
	timer.Start(1000, nil, func() { second.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("replaced countdown must not expire")
	}
	if !timer.Active() || second.Load() != 0 {
		t.Fatalf("second countdown should still be running")
	}
	timer.Cancel()
}
