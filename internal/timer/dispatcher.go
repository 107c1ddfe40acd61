// Package timer implements the single-threaded event loop the voice session
// runs on, plus delay scheduling onto that loop.
//
// Adapters (recognizer, synthesizer, UI) do their blocking work on their own
// goroutines and hand results back with Post. Every state transition in the
// engine therefore happens inside one callback turn on the loop goroutine.
package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Scheduler = (*Dispatcher)(nil)
	_ domain.Poster    = (*Dispatcher)(nil)
)

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets how many callbacks may wait before Post blocks.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		d.queue = make(chan func(), n)
	}
}

// Dispatcher runs posted callbacks one at a time on a single goroutine.
type Dispatcher struct {
	log   *logger.Logger
	queue chan func()

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	pending atomic.Int64 // scheduled, not yet fired or cancelled
}

// New creates a dispatcher. Callbacks posted before Start are buffered.
func New(log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:   log,
		queue: make(chan func(), 64),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins the loop goroutine. Non-blocking.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.log.Warn("dispatcher already running")
		return
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.running = true

	go d.loop(d.ctx, d.done)
	d.log.Info("dispatcher started (queue=%d)", cap(d.queue))
}

// Stop ends the loop and waits for the current callback to return.
// Callbacks still queued are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.running = false
	done := d.done
	d.mu.Unlock()

	<-done
	d.log.Info("dispatcher stopped")
}

// Post queues fn to run on the loop. Blocks while the queue is full; drops
// fn once the dispatcher has been stopped.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()

	select {
	case d.queue <- fn:
	case <-ctx.Done():
		d.log.Debug("dispatcher: dropped callback after stop")
	}
}

// AfterFunc runs fn on the loop after delay. Calling the returned cancel
// func from the loop guarantees fn will not run afterwards, even if its
// timer already fired and the callback is sitting in the queue.
func (d *Dispatcher) AfterFunc(delay time.Duration, fn func()) func() {
	var cancelled atomic.Bool
	d.pending.Add(1)

	t := time.AfterFunc(delay, func() {
		if cancelled.Load() {
			return
		}
		d.Post(func() {
			if cancelled.Swap(true) {
				return
			}
			d.pending.Add(-1)
			fn()
		})
	})

	return func() {
		if cancelled.Swap(true) {
			return
		}
		d.pending.Add(-1)
		t.Stop()
	}
}

// Pending returns the number of scheduled callbacks that have neither run
// nor been cancelled.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.queue:
			d.run(fn)
		}
	}
}

// run invokes one callback, keeping the loop alive if it panics.
func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatcher: callback panicked: %v", r)
		}
	}()
	fn()
}
