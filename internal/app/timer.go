package app

import (
	"sync"
	"time"
)

// QuestionTimer is a per-question countdown. At most one countdown runs at a time.
type QuestionTimer struct {
	tick time.Duration

	mu     sync.Mutex
	gen    uint64
	stop   chan struct{}
	active bool
}

// NewQuestionTimer returns a timer that counts down once per tick (one second in production).
func NewQuestionTimer(tick time.Duration) *QuestionTimer {
	if tick <= 0 {
		tick = time.Second
	}
	return &QuestionTimer{tick: tick}
}

// Start begins a countdown of the given seconds, canceling any running one first.
// onTick receives the seconds left after each tick; onExpire fires exactly once at zero.
// A non-positive duration starts nothing.
func (t *QuestionTimer) Start(seconds int, onTick func(secondsLeft int), onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	if seconds <= 0 {
		return
	}

	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.active = true

	go t.run(gen, stop, seconds, onTick, onExpire)
}

func (t *QuestionTimer) run(gen uint64, stop <-chan struct{}, seconds int, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	left := seconds
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		left--

		t.mu.Lock()
		if t.gen != gen || !t.active {
			t.mu.Unlock()
			return
		}
		expired := left <= 0
		if expired {
			t.active = false
			t.stop = nil
		}
		t.mu.Unlock()

		if expired {
			if onExpire != nil {
				onExpire()
			}
			return
		}
		if onTick != nil {
			onTick(left)
		}
	}
}

// Cancel stops the running countdown. Safe to call repeatedly or with nothing running.
func (t *QuestionTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *QuestionTimer) cancelLocked() {
	if !t.active {
		return
	}
	t.active = false
	t.gen++
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Active reports whether a countdown is running.
func (t *QuestionTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
