// Package pubsub fans session updates out to the sockets watching them.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened to a topic.
type EventType string

const (
	UpdatedEvent   EventType = "updated"
	CompletedEvent EventType = "completed"
	EvictedEvent   EventType = "evicted"
)

// Event is a published payload tagged with its topic.
type Event[T any] struct {
	Topic     string
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for one topic.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, topic string) <-chan Event[T]
}

// Publisher sends a payload to everyone subscribed to topic.
type Publisher[T any] interface {
	Publish(topic string, eventType EventType, payload T)
}
