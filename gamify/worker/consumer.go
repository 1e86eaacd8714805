// Package worker runs the queued consumer pool that feeds inbound events to
// the dispatcher. Events for the same store may be processed concurrently by
// different workers; ordering is only guaranteed within one event.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit/gamify/gamify/logger"
	"github.com/storekit/gamify/gamify/services"
	"golang.org/x/sync/errgroup"
)

// Event is one inbound domain event.
type Event struct {
	Name    string
	StoreID int64
	Payload map[string]any
}

// Dispatcher processes one event; satisfied by services.EventDispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventName string, storeID int64, payload map[string]any) (*services.EventResult, error)
}

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrStopped   = errors.New("consumer pool is stopped")
)

// Pool consumes events from a bounded queue with a fixed number of workers.
type Pool struct {
	dispatcher Dispatcher
	queue      chan Event

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	stopped bool
}

// NewPool starts workerCount workers over a queue of queueSize events.
func NewPool(dispatcher Dispatcher, workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	p := &Pool{
		dispatcher: dispatcher,
		queue:      make(chan Event, queueSize),
		ctx:        groupCtx,
		cancel:     cancel,
		group:      group,
	}

	for i := 0; i < workerCount; i++ {
		worker := i
		group.Go(func() error {
			p.run(worker)
			return nil
		})
	}

	slog.Info("Event consumer pool started",
		slog.Int("workers", workerCount),
		slog.Int("queue_size", queueSize))
	return p
}

// Enqueue hands an event to the pool without blocking. Returns ErrQueueFull
// when the queue is saturated so the producer can apply backpressure.
func (p *Pool) Enqueue(event Event) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	select {
	case p.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run(worker int) {
	for {
		select {
		case <-p.ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case event := <-p.queue:
					p.process(worker, event)
				default:
					return
				}
			}
		case event := <-p.queue:
			p.process(worker, event)
		}
	}
}

// process dispatches one event, recovering from panics so a poisoned event
// cannot take a worker down.
func (p *Pool) process(worker int, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event processing panic",
				slog.Int("worker", worker),
				slog.String("event", event.Name),
				slog.Int64("store_id", event.StoreID),
				slog.Any("panic", r))
		}
	}()

	start := time.Now()
	_, err := p.dispatcher.Dispatch(context.Background(), event.Name, event.StoreID, event.Payload)
	logger.LogEvent(event.Name, event.StoreID, time.Since(start), err)
}

// Shutdown stops intake, lets the workers drain the queue, and waits up to
// the timeout for them to finish.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Event consumer pool stopped")
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for event workers to stop",
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}
