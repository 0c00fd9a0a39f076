package engine

import "sync"

// Dispatcher runs listing mutations one at a time on a single goroutine,
// in submission order.
type Dispatcher struct {
	work   chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the dispatch goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		work: make(chan func()),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for fn := range d.work {
		fn()
	}
}

// Do runs fn on the dispatch goroutine and waits for it to finish. After
// Close, Do is a no-op.
func (d *Dispatcher) Do(fn func()) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return
	}
	finished := make(chan struct{})
	d.work <- func() {
		defer close(finished)
		fn()
	}
	d.mu.RUnlock()
	<-finished
}

// Close stops the dispatch goroutine after queued work has run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.work)
	d.mu.Unlock()
	<-d.done
}
