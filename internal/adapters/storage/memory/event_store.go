package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// EventStore appends analytics events per session.
type EventStore struct {
	mu     sync.RWMutex
	events map[domain.SessionID][]domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[domain.SessionID][]domain.Event),
	}
}

func (s *EventStore) AppendEvents(_ context.Context, sessionID domain.SessionID, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[sessionID] = append(s.events[sessionID], events...)
	return nil
}

func (s *EventStore) ListEvents(_ context.Context, sessionID domain.SessionID) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Event{}, s.events[sessionID]...), nil
}
