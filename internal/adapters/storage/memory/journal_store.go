package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// JournalStore is a simple in-memory implementation of domain.JournalStore.
// It is NOT persistent and is only suitable for development / local mode.
type JournalStore struct {
	mu       sync.RWMutex
	entries  map[domain.JournalEntryID]*domain.JournalEntry
	byUserID map[domain.UserID][]domain.JournalEntryID
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries:  make(map[domain.JournalEntryID]*domain.JournalEntry),
		byUserID: make(map[domain.UserID][]domain.JournalEntryID),
	}
}

// AppendJournalEntry saves a new journal entry, assigning an ID when missing.
func (s *JournalStore) AppendJournalEntry(_ context.Context, entry *domain.JournalEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = domain.JournalEntryID(uuid.NewString())
	}

	e := *entry
	e.ActionPlan = append([]domain.JournalAction(nil), entry.ActionPlan...)
	s.entries[e.ID] = &e
	s.byUserID[e.UserID] = append(s.byUserID[e.UserID], e.ID)
	return nil
}

// ListJournalEntriesByUser returns the last `limit` entries for a user, oldest first.
// If limit <= 0, returns all.
func (s *JournalStore) ListJournalEntriesByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	if len(ids) == 0 {
		return []*domain.JournalEntry{}, nil
	}

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	selected := ids[len(ids)-limit:]

	out := make([]*domain.JournalEntry, 0, len(selected))
	for _, id := range selected {
		if e, ok := s.entries[id]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
