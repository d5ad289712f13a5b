package writeback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

func TestWorker_ExecutesTasksInOrder(t *testing.T) {
	t.Parallel()

	w := New(log.Nop(), 8, nil)
	w.Start()

	var mu []int
	var done atomic.Int32
	for i := 0; i < 3; i++ {
		ok := w.Enqueue(Task{Name: "append", Do: func(context.Context) error {
			mu = append(mu, i)
			done.Add(1)
			return nil
		}})
		if !ok {
			t.Fatalf("Enqueue %d rejected", i)
		}
	}
	w.Close()

	if done.Load() != 3 {
		t.Fatalf("executed %d tasks, want 3", done.Load())
	}
	for i, v := range mu {
		if v != i {
			t.Errorf("execution order %v, want sequential", mu)
		}
	}
}

func TestWorker_DropsWhenFull(t *testing.T) {
	t.Parallel()

	var drops atomic.Int32
	w := New(log.Nop(), 1, func(string) { drops.Add(1) })
	// Not started: buffered channel fills and further enqueues drop.

	block := Task{Name: "noop", Do: func(context.Context) error { return nil }}
	if !w.Enqueue(block) {
		t.Fatal("first enqueue should fit the buffer")
	}
	if w.Enqueue(block) {
		t.Fatal("second enqueue should be dropped")
	}
	if drops.Load() != 1 {
		t.Errorf("drops = %d, want 1", drops.Load())
	}
	if w.Depth() != 1 {
		t.Errorf("depth = %d, want 1", w.Depth())
	}
	w.Close()
}

func TestWorker_TaskErrorDoesNotStopWorker(t *testing.T) {
	t.Parallel()

	w := New(log.Nop(), 4, nil)
	w.Start()

	var ran atomic.Bool
	w.Enqueue(Task{Name: "fails", Do: func(context.Context) error { return errors.New("boom") }})
	w.Enqueue(Task{Name: "succeeds", Do: func(context.Context) error { ran.Store(true); return nil }})
	w.Close()

	if !ran.Load() {
		t.Error("task after a failing task never ran")
	}
}

func TestWorker_EnqueueAfterCloseRejected(t *testing.T) {
	t.Parallel()

	var drops atomic.Int32
	w := New(log.Nop(), 4, func(string) { drops.Add(1) })
	w.Start()
	w.Close()

	if w.Enqueue(Task{Name: "late", Do: func(context.Context) error { return nil }}) {
		t.Error("enqueue after close should be rejected")
	}
	if drops.Load() != 1 {
		t.Errorf("drops = %d, want 1", drops.Load())
	}
}

func TestWorker_CloseDrains(t *testing.T) {
	t.Parallel()

	w := New(log.Nop(), 8, nil)
	var done atomic.Int32
	for i := 0; i < 5; i++ {
		w.Enqueue(Task{Name: "slow", Do: func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}})
	}
	w.Start()
	w.Close()

	if done.Load() != 5 {
		t.Errorf("Close returned before draining: %d of 5 ran", done.Load())
	}
}

func TestWorker_FlushKeepsWorkerOpen(t *testing.T) {
	t.Parallel()

	w := New(log.Nop(), 8, nil)
	w.Start()

	var done atomic.Int32
	for i := 0; i < 4; i++ {
		w.Enqueue(Task{Name: "slow", Do: func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}})
	}
	w.Flush()
	if done.Load() != 4 {
		t.Fatalf("Flush returned before draining: %d of 4 ran", done.Load())
	}

	// The worker must still accept and run work after a flush.
	if ok := w.Enqueue(Task{Name: "after", Do: func(context.Context) error {
		done.Add(1)
		return nil
	}}); !ok {
		t.Fatal("Enqueue rejected after Flush")
	}
	w.Close()
	if done.Load() != 5 {
		t.Errorf("post-flush task did not run: %d of 5", done.Load())
	}
}

func TestWorker_FlushAfterCloseReturns(t *testing.T) {
	t.Parallel()

	w := New(log.Nop(), 8, nil)
	w.Close()
	w.Flush() // must not block or panic
}
