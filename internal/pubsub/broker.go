package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Broker delivers events to subscribers grouped by topic.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker[T any] struct {
	mu         sync.RWMutex
	topics     map[string]map[chan Event[T]]struct{}
	done       chan struct{}
	bufferSize int
	now        func() time.Time
}

func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		topics:     make(map[string]map[chan Event[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
		now:        time.Now,
	}
}

// Subscribe registers interest in topic. The channel closes when ctx is
// cancelled or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context, topic string) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.bufferSize)
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan Event[T]]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return
		default:
		}

		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
		close(sub)
	}()

	return sub
}

// Publish sends payload to every subscriber of topic.
func (b *Broker[T]) Publish(topic string, eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{
		Topic:     topic,
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.now(),
	}
	for sub := range b.topics[topic] {
		select {
		case sub <- event:
		default:
		}
	}
}

// Close shuts the broker down and closes every subscription.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for _, subs := range b.topics {
		for sub := range subs {
			close(sub)
		}
	}
	b.topics = nil
}

// SubscriberCount returns how many subscribers watch topic.
func (b *Broker[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
