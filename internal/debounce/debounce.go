// Package debounce provides per-key cancellable timers: each Trigger replaces
// and cancels the previous pending call for the same key.
package debounce

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer a Debouncer needs.
type Timer interface {
	Stop() bool
}

// Scheduler starts f after d. time.AfterFunc satisfies it via AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

// AfterFunc schedules on the runtime timer heap.
func AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type handle struct {
	timer Timer
	gen   uint64
}

// Debouncer owns one pending handle per key. A handle that fires after it has
// been replaced or cancelled does nothing.
type Debouncer struct {
	schedule Scheduler

	mu      sync.Mutex
	gen     uint64
	pending map[string]handle
	stopped bool
}

func New(schedule Scheduler) *Debouncer {
	if schedule == nil {
		schedule = AfterFunc
	}
	return &Debouncer{
		schedule: schedule,
		pending:  make(map[string]handle),
	}
}

// Trigger cancels any pending call for key and schedules fn after d.
func (d *Debouncer) Trigger(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if h, ok := d.pending[key]; ok {
		h.timer.Stop()
	}
	d.gen++
	gen := d.gen
	timer := d.schedule(delay, func() {
		if d.claim(key, gen) {
			fn()
		}
	})
	d.pending[key] = handle{timer: timer, gen: gen}
}

// claim removes the handle for key if it is still generation gen.
func (d *Debouncer) claim(key string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.pending[key]
	if !ok || h.gen != gen {
		return false
	}
	delete(d.pending, key)
	return true
}

// Cancel drops the pending call for key, if any.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.pending[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(d.pending, key)
	return true
}

// CancelAll drops every pending call.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelAllLocked()
}

func (d *Debouncer) cancelAllLocked() {
	for key, h := range d.pending {
		h.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether key has a scheduled call.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len is the number of pending calls.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels everything and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelAllLocked()
}
