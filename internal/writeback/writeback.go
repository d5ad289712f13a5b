// Package writeback runs the queue's fire-and-forget persistence work
// (reason-code pruning, auto-trust promotion, extract production) on a
// single bounded worker. Making the channel explicit keeps failure
// visibility and backpressure a design decision instead of an unawaited
// call: when the buffer is full the task is dropped and counted, and the
// next queue read self-heals.
package writeback

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const defaultTaskTimeout = 30 * time.Second

// Task is one unit of deferred persistence work.
type Task struct {
	Name string
	Do   func(ctx context.Context) error
}

// Worker executes tasks sequentially off a bounded buffer.
type Worker struct {
	tasks   chan Task
	logger  log.Logger
	onDrop  func(name string)
	timeout time.Duration

	mu        sync.Mutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a worker with the given buffer size. onDrop, if non-nil, is
// invoked for every task rejected because the buffer was full.
func New(logger log.Logger, buffer int, onDrop func(name string)) *Worker {
	if logger == nil {
		logger = log.Nop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Worker{
		tasks:   make(chan Task, buffer),
		logger:  logger,
		onDrop:  onDrop,
		timeout: defaultTaskTimeout,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. Safe to call once; subsequent calls
// are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Enqueue submits a task without blocking. Returns false (and counts a
// drop) when the buffer is full or the worker is closed.
func (w *Worker) Enqueue(t Task) bool {
	w.mu.Lock()
	if !w.closed {
		select {
		case w.tasks <- t:
			w.mu.Unlock()
			return true
		default:
		}
	}
	w.mu.Unlock()
	if w.onDrop != nil {
		w.onDrop(t.Name)
	}
	w.logger.Warn(context.Background(), "writeback task dropped", "task", t.Name)
	return false
}

// Flush blocks until every task enqueued before the call has run. The
// worker stays open for further work. Returns immediately once the worker
// is closed.
func (w *Worker) Flush() {
	w.Start()
	done := make(chan struct{})
	marker := Task{Name: "flush", Do: func(context.Context) error {
		close(done)
		return nil
	}}
	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		select {
		case w.tasks <- marker:
			w.mu.Unlock()
			<-done
			return
		default:
		}
		w.mu.Unlock()
		// Buffer full; the worker is draining it, so room opens up.
		time.Sleep(time.Millisecond)
	}
}

// Depth reports the number of buffered tasks, for gauges.
func (w *Worker) Depth() int {
	return len(w.tasks)
}

// Close stops intake and drains already-buffered tasks before returning.
func (w *Worker) Close() {
	w.Start() // so done is always closed, even if Start was never called
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.tasks)
		<-w.done
	})
}

func (w *Worker) run() {
	defer close(w.done)
	for t := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := t.Do(ctx); err != nil {
			// A failed write-back is logged, never retried here: the read
			// path recomputes and re-dispatches on the next cycle.
			w.logger.Error(ctx, err, "writeback task failed", "task", t.Name)
		}
		cancel()
	}
}
