package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultBufferSize = 64

type subscription[T any] struct {
	ch      chan Event[T]
	types   map[EventType]struct{} // nil accepts everything
	dropped atomic.Uint64
}

func (s *subscription[T]) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Broker delivers each published event to every interested subscriber.
// Publish never blocks: a subscriber whose buffer is full loses the event and
// the loss is counted.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[*subscription[T]]struct{}
	closed bool
	buffer int

	// lost keeps the drops of subscriptions that are already gone.
	lost atomic.Uint64
}

// Ensure Broker implements Subscriber and Publisher.
var (
	_ Subscriber[any] = (*Broker[any])(nil)
	_ Publisher[any]  = (*Broker[any])(nil)
)

// NewBroker creates a broker with a 64-event buffer per subscriber.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

// NewBrokerWithBuffer creates a broker with size events of buffer per
// subscriber (at least 1).
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:   make(map[*subscription[T]]struct{}),
		buffer: max(size, 1),
	}
}

// Subscribe returns a channel of events, restricted to types when any are
// given. The channel closes when ctx ends or the broker closes.
func (b *Broker[T]) Subscribe(ctx context.Context, types ...EventType) <-chan Event[T] {
	sub := &subscription[T]{ch: make(chan Event[T], b.buffer)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			b.unsubscribe(sub)
		}()
	}
	return sub.ch
}

func (b *Broker[T]) unsubscribe(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	b.lost.Add(sub.dropped.Load())
	close(sub.ch)
}

// Publish stamps payload with an ID and time and offers it to subscribers.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || len(b.subs) == 0 {
		return
	}

	ev := Event[T]{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for sub := range b.subs {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Later publishes are ignored and later
// subscriptions get a closed channel.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		b.lost.Add(sub.dropped.Load())
		close(sub.ch)
	}
	b.subs = nil
}

// SubscriberCount returns the number of open subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped reports how many deliveries were lost to full buffers, across
// current and past subscriptions.
func (b *Broker[T]) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := b.lost.Load()
	for sub := range b.subs {
		n += sub.dropped.Load()
	}
	return n
}
