// Package eventbus provides an in-memory, asynchronous event bus that moves
// bookkeeping (metrics, delivery log) off the dispatch path. Events are
// dispatched through a buffered channel and processed by a worker pool.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWorkers    = 1
	defaultBufferSize = 64
)

// EventBus is the interface for publishing events and managing subscribers.
type EventBus interface {
	// Publish enqueues an event with the given type and payload. It blocks
	// while the buffer is full. Events published after Close are dropped.
	Publish(eventType string, payload map[string]string)

	// Subscribe registers a listener that will be called for every published event.
	// Subscribe must be called before the first Publish.
	Subscribe(listener Listener)

	// Close stops accepting new events and waits for all pending events to be processed.
	Close()
}

// inMemoryBus is the default EventBus implementation.
type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	closeMu   sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	workers   int
	logger    *slog.Logger
}

// New creates a new in-memory EventBus with the specified number of worker
// goroutines. If workers is <= 0, a single worker is used, which keeps
// listeners seeing events in publish order.
func New(workers int, logger *slog.Logger) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &inMemoryBus{
		ch:      make(chan Event, defaultBufferSize),
		workers: workers,
		logger:  logger,
	}
	b.startWorkers()
	return b
}

// startWorkers launches the worker goroutines that process events from the channel.
func (b *inMemoryBus) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls all registered listeners for the given event.
// Each listener is invoked with panic recovery to prevent one bad listener
// from affecting others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus: listener panicked", "event", e.Type, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

// Publish enqueues an event.
func (b *inMemoryBus) Publish(eventType string, payload map[string]string) {
	e := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		b.logger.Warn("eventbus: bus closed, dropping event", "event", eventType)
		return
	}
	b.ch <- e
}

// Subscribe adds a listener to receive all future events.
func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close drains and closes the event channel, then waits for all workers to
// finish. It is safe to call more than once.
func (b *inMemoryBus) Close() {
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.closeMu.Unlock()
	b.wg.Wait()
}
