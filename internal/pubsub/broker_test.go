package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
	return Event[T]{}
}

func TestBroker_DeliversToTopic(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx, "session-1")
	broker.Publish("session-1", UpdatedEvent, "hello")

	ev := receive(t, ch)
	require.Equal(t, "hello", ev.Payload)
	require.Equal(t, "session-1", ev.Topic)
	require.Equal(t, UpdatedEvent, ev.Type)
	require.False(t, ev.Timestamp.IsZero())
}

func TestBroker_TopicsAreIsolated(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()
	a1 := broker.Subscribe(ctx, "a")
	a2 := broker.Subscribe(ctx, "a")
	b := broker.Subscribe(ctx, "b")
	require.Equal(t, 2, broker.SubscriberCount("a"))
	require.Equal(t, 1, broker.SubscriberCount("b"))

	broker.Publish("a", CompletedEvent, 7)

	require.Equal(t, 7, receive(t, a1).Payload)
	require.Equal(t, 7, receive(t, a2).Payload)
	select {
	case <-b:
		require.Fail(t, "topic b should not see events for a")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx, "s")
	require.Equal(t, 1, broker.SubscriberCount("s"))

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "channel not closed after cancel")
	}
	require.Eventually(t, func() bool { return broker.SubscriberCount("s") == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroker_FullBufferDrops(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background(), "s")
	broker.Publish("s", UpdatedEvent, 1)
	broker.Publish("s", UpdatedEvent, 2)

	require.Equal(t, 1, receive(t, ch).Payload)
	select {
	case ev := <-ch:
		require.Fail(t, "expected drop", "got %v", ev.Payload)
	default:
	}
}

func TestBroker_CloseClosesSubscribers(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background(), "s")

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok)

	late := broker.Subscribe(context.Background(), "s")
	_, ok = <-late
	require.False(t, ok, "subscribing after close yields a closed channel")

	broker.Publish("s", UpdatedEvent, "ignored")
}
