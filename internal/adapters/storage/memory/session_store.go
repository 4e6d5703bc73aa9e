package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// SessionStore keeps session records in a map. Records are copied on the way
// in and out so callers never share memory with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.SessionRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.SessionRecord),
	}
}

func (s *SessionStore) SaveSession(_ context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[rec.ID] = copyRecord(rec)
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copyRecord(rec), nil
}

// ListSessionsByUser returns the user's sessions, newest first.
func (s *SessionStore) ListSessionsByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.SessionRecord{}
	for _, rec := range s.sessions {
		if rec.OwnerID == userID {
			result = append(result, copyRecord(rec))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyRecord(rec *domain.SessionRecord) *domain.SessionRecord {
	out := *rec
	out.StageData = append([]byte(nil), rec.StageData...)
	out.DialogueHistory = append([]string(nil), rec.DialogueHistory...)
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
