package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
)

const defaultLimit = 20

// Service writes and reads the long-term journal kept from completed sessions.
type Service struct {
	store domain.JournalStore
	now   func() time.Time
}

// NewService creates a journal service from a JournalStore.
// A nil store disables the journal.
func NewService(store domain.JournalStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// GetUserJournal returns the last `limit` journal entries for a user, oldest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) GetUserJournal(
	ctx context.Context,
	userID domain.UserID,
	limit int,
) ([]*domain.JournalEntry, error) {
	if s.store == nil {
		return []*domain.JournalEntry{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.store.ListJournalEntriesByUser(ctx, userID, limit)
}

// RecordSession stores the journal entry for a completed session.
func (s *Service) RecordSession(ctx context.Context, sess *domain.Session) (*domain.JournalEntry, error) {
	if s.store == nil {
		return nil, nil
	}
	if sess == nil || !sess.IsCompleted() {
		return nil, fmt.Errorf("journal: session is not completed")
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sess.ID,
		"user_id", sess.OwnerID,
	)

	entry := EntryFromSession(sess, s.now())
	if err := s.store.AppendJournalEntry(ctx, entry); err != nil {
		log.Error("failed to append journal entry", "error", err)
		return nil, fmt.Errorf("journal: append failed: %w", err)
	}

	log.Info("journal entry recorded", "entry_id", entry.ID)
	return entry, nil
}

// EntryFromSession maps the stage data of a finished session onto a journal entry.
func EntryFromSession(sess *domain.Session, now time.Time) *domain.JournalEntry {
	d := sess.Data
	entry := &domain.JournalEntry{
		ID:         domain.JournalEntryID(uuid.NewString()),
		SessionID:  sess.ID,
		UserID:     sess.OwnerID,
		CreatedAt:  now,
		UpdatedAt:  now,
		ActionPlan: []domain.JournalAction{},
	}

	if d.Situation != nil {
		entry.ProblemSummary = d.Situation.Description
	}
	if d.Affect != nil && d.Affect.Emotion != "" {
		entry.MoodBefore = fmt.Sprintf("%s (%d/10)", d.Affect.Emotion, d.Affect.Intensity)
	}
	if d.KeyResult != nil {
		entry.Reflection = d.KeyResult.Insights
		if opt, ok := domain.LookupFollowThrough(string(d.KeyResult.FollowThrough)); ok {
			entry.MoodAfter = opt.Label
		}
	}
	if d.Response != nil && d.Response.SelectedAction != "" {
		action := domain.JournalAction{
			ID:          string(d.Response.SelectedAction),
			Description: string(d.Response.SelectedAction),
			Status:      domain.ActionStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if opt, ok := domain.LookupAction(string(d.Response.SelectedAction)); ok {
			action.Description = opt.Label
			action.Notes = opt.Duration
		}
		if d.Response.ActionCompleted {
			action.Status = domain.ActionStatusDone
		}
		entry.ActionPlan = append(entry.ActionPlan, action)
	}
	return entry
}
