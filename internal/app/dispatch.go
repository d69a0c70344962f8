package app

import (
	"context"
	"sync"
)

// dispatcher runs background jobs one at a time in submission order, so a later save
// always lands after an earlier one. Callers never wait on it except through flush.
type dispatcher struct {
	mu      sync.Mutex
	pending []func(context.Context)
	running bool
	idle    chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{}
}

func (d *dispatcher) submit(job func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, job)
	if !d.running {
		d.running = true
		d.idle = make(chan struct{})
		go d.drain()
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.running = false
			close(d.idle)
			d.mu.Unlock()
			return
		}
		job := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		job(context.Background())
	}
}

// flush waits until every submitted job has run.
func (d *dispatcher) flush(ctx context.Context) error {
	for {
		d.mu.Lock()
		if !d.running {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
