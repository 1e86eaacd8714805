package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storekit/gamify/gamify/services"
	"github.com/storekit/gamify/gamify/worker"
)

// countingDispatcher records processed events.
type countingDispatcher struct {
	mu     sync.Mutex
	events []worker.Event
	block  chan struct{}
	panics bool
}

func (d *countingDispatcher) Dispatch(ctx context.Context, eventName string, storeID int64, payload map[string]any) (*services.EventResult, error) {
	if d.block != nil {
		<-d.block
	}
	if d.panics {
		panic("poisoned event")
	}

	d.mu.Lock()
	d.events = append(d.events, worker.Event{Name: eventName, StoreID: storeID, Payload: payload})
	d.mu.Unlock()
	return &services.EventResult{}, nil
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func TestPool_ProcessesEnqueuedEvents(t *testing.T) {
	dispatcher := &countingDispatcher{}
	pool := worker.NewPool(dispatcher, 4, 64)

	for i := 0; i < 20; i++ {
		err := pool.Enqueue(worker.Event{Name: "product_created", StoreID: int64(i)})
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	if err := pool.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := dispatcher.count(); got != 20 {
		t.Errorf("processed %d events, want 20", got)
	}
}

func TestPool_QueueFull(t *testing.T) {
	block := make(chan struct{})
	dispatcher := &countingDispatcher{block: block}
	pool := worker.NewPool(dispatcher, 1, 1)

	// One event occupies the worker, one fills the queue; the next must be
	// rejected rather than block the producer.
	var err error
	full := false
	for i := 0; i < 8; i++ {
		err = pool.Enqueue(worker.Event{Name: "order_created"})
		if errors.Is(err, worker.ErrQueueFull) {
			full = true
			break
		}
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if !full {
		t.Error("saturated queue never returned ErrQueueFull")
	}

	close(block)
	if err := pool.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestPool_EnqueueAfterShutdown(t *testing.T) {
	dispatcher := &countingDispatcher{}
	pool := worker.NewPool(dispatcher, 1, 4)

	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := pool.Enqueue(worker.Event{Name: "order_created"}); !errors.Is(err, worker.ErrStopped) {
		t.Errorf("Enqueue() after shutdown error = %v, want ErrStopped", err)
	}
}

func TestPool_RecoverFromPanic(t *testing.T) {
	dispatcher := &countingDispatcher{panics: true}
	pool := worker.NewPool(dispatcher, 1, 4)

	if err := pool.Enqueue(worker.Event{Name: "order_created"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// The worker must survive the panic and the pool must still shut down
	// cleanly.
	if err := pool.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() after panic error = %v", err)
	}
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	dispatcher := &countingDispatcher{}
	pool := worker.NewPool(dispatcher, 2, 128)

	for i := 0; i < 50; i++ {
		if err := pool.Enqueue(worker.Event{Name: "order_created", StoreID: int64(i)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	if err := pool.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := dispatcher.count(); got != 50 {
		t.Errorf("drained %d events, want 50", got)
	}
}
