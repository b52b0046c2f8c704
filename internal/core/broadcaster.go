package core

import (
	"sync"

	"github.com/google/uuid"

	"supplywatch/pkg/domain"
)

// DefaultSubscriberBuffer is the per-subscriber queue length used when none is configured.
const DefaultSubscriberBuffer = 64

// SubscriberMetrics observes broadcaster activity.
type SubscriberMetrics interface {
	SubscriberAdded()
	SubscriberRemoved()
	SubscriberEvicted()
	EventPublished(kind string)
}

type noopSubscriberMetrics struct{}

func (noopSubscriberMetrics) SubscriberAdded()      {}
func (noopSubscriberMetrics) SubscriberRemoved()    {}
func (noopSubscriberMetrics) SubscriberEvicted()    {}
func (noopSubscriberMetrics) EventPublished(string) {}

// Broadcaster fans change events out to subscribers. Each subscriber owns a
// buffered queue; Publish never blocks, and a subscriber whose queue is full
// is evicted so it reconnects and re-baselines instead of missing an event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[string]chan domain.ChangeEvent
	buffer  int
	closed  bool
	logger  Logger
	metrics SubscriberMetrics
}

// NewBroadcaster returns a broadcaster with the given per-subscriber buffer.
// Nil logger and metrics are replaced by no-ops.
func NewBroadcaster(buffer int, logger Logger, metrics SubscriberMetrics) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopSubscriberMetrics{}
	}
	return &Broadcaster{
		subs:    make(map[string]chan domain.ChangeEvent),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// Subscription is one observer's view of the event stream. The Events
// channel is closed when the subscription is cancelled or evicted, or when
// the broadcaster shuts down.
type Subscription struct {
	ID     string
	events <-chan domain.ChangeEvent
	cancel func()
}

// Events returns the receive side of the subscriber queue.
func (s *Subscription) Events() <-chan domain.ChangeEvent { return s.events }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() { s.cancel() }

// Subscribe registers a new observer. Events emitted before the call are not
// replayed.
func (b *Broadcaster) Subscribe() *Subscription {
	id := uuid.NewString()
	ch := make(chan domain.ChangeEvent, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return &Subscription{ID: id, events: ch, cancel: func() {}}
	}
	b.subs[id] = ch
	b.metrics.SubscriberAdded()
	b.logger.Debug("subscriber connected", "subscriber", id, "subscribers", len(b.subs))
	return &Subscription{ID: id, events: ch, cancel: func() { b.remove(id, false) }}
}

func (b *Broadcaster) remove(id string, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id, evicted)
}

func (b *Broadcaster) removeLocked(id string, evicted bool) {
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.metrics.SubscriberRemoved()
	if evicted {
		b.metrics.SubscriberEvicted()
		b.logger.Warn("subscriber evicted: queue full", "subscriber", id)
		return
	}
	b.logger.Debug("subscriber disconnected", "subscriber", id)
}

// Publish delivers event to every current subscriber without blocking.
func (b *Broadcaster) Publish(event domain.ChangeEvent) {
	if event == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.metrics.EventPublished(string(event.Kind()))
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.removeLocked(id, true)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every subscriber. Later Publish calls are dropped and
// later subscriptions start closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id := range b.subs {
		b.removeLocked(id, false)
	}
}
