package bank

import (
	"sync"
	"time"
)

// debouncer collapses bursts of triggers into one callback per quiet
// window. Each watched directory owns its own debouncer, so concurrent
// event callbacks never share timer state. A new trigger resets the
// timer rather than extending it.
type debouncer struct {
	window  time.Duration
	fire    func()
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(window time.Duration, fire func()) *debouncer {
	return &debouncer{
		window: window,
		fire:   fire,
	}
}

func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.timer = nil
		d.mu.Unlock()

		if !stopped {
			d.fire()
		}
	})
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
