package temi

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Poster schedules work on the goroutine that owns listener delivery.
// Hosts with their own event loop can supply one through WithDispatcher.
type Poster interface {
	Post(fn func())
}

// Dispatcher is a serial FIFO queue drained by a single goroutine.
// Post never blocks: the queue is unbounded so that a transport goroutine
// delivering events can never stall behind a slow listener.
type Dispatcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

// NewDispatcher starts a dispatcher goroutine.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

// Post queues fn. Funcs posted after Close are dropped.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("dispatcher closed, dropping work")
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Sync blocks until every func posted before it has run.
// It must not be called from a posted func.
func (d *Dispatcher) Sync() {
	done := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.queue = append(d.queue, func() { close(done) })
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-done
}

// Close runs what is already queued, then stops the goroutine.
// Like Sync, it must not be called from a posted func.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
}

func (d *Dispatcher) run() {
	defer close(d.stopped)

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			d.invoke(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

// invoke runs fn, keeping the queue alive if a listener panics.
func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
