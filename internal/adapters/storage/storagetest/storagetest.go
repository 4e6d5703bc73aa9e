// Package storagetest holds behaviour checks every store backend must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

var base = time.Date(2026, 4, 2, 10, 30, 0, 123456789, time.UTC)

func record(id domain.SessionID, owner domain.UserID, startedAt time.Time) *domain.SessionRecord {
	return &domain.SessionRecord{
		ID:              id,
		OwnerID:         owner,
		StageName:       domain.StagePerception,
		StageData:       json.RawMessage(`{"situation":{"description":"Inbox","thoughts":"Too much"}}`),
		DialogueHistory: []string{"first reply"},
		StartedAt:       startedAt,
	}
}

// SessionStore exercises save, upsert, lookup and per-user listing.
func SessionStore(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	t.Run("missing session", func(t *testing.T) {
		_, err := store.GetSession(ctx, "nope")
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("save and upsert", func(t *testing.T) {
		rec := record("s-upsert", "u-1", base)
		require.NoError(t, store.SaveSession(ctx, rec))

		got, err := store.GetSession(ctx, "s-upsert")
		require.NoError(t, err)
		require.Equal(t, domain.StagePerception, got.StageName)
		require.JSONEq(t, string(rec.StageData), string(got.StageData))
		require.Equal(t, []string{"first reply"}, got.DialogueHistory)
		require.True(t, base.Equal(got.StartedAt))
		require.Nil(t, got.CompletedAt)

		done := base.Add(20 * time.Minute)
		rec.StageName = domain.StageCompleted
		rec.CompletedAt = &done
		rec.DialogueHistory = append(rec.DialogueHistory, "second reply")
		require.NoError(t, store.SaveSession(ctx, rec))

		got, err = store.GetSession(ctx, "s-upsert")
		require.NoError(t, err)
		require.Equal(t, domain.StageCompleted, got.StageName)
		require.NotNil(t, got.CompletedAt)
		require.True(t, done.Equal(*got.CompletedAt))
		require.Len(t, got.DialogueHistory, 2)
	})

	t.Run("round trips through the domain session", func(t *testing.T) {
		s := &domain.Session{
			ID:           "s-round",
			OwnerID:      "u-round",
			CurrentStage: domain.StageAffect,
			StartedAt:    base,
			Data: domain.StageData{
				Situation:  &domain.SituationData{Description: "Late", Thoughts: "Doomed"},
				Perception: &domain.PerceptionData{SelectedReframe: domain.ReframeQuestions[1], UserReflection: "Fine"},
				Affect:     &domain.AffectData{Emotion: domain.EmotionSad},
			},
			DialogueHistory: []string{},
		}
		rec, err := s.ToRecord()
		require.NoError(t, err)
		require.NoError(t, store.SaveSession(ctx, rec))

		got, err := store.GetSession(ctx, "s-round")
		require.NoError(t, err)
		back, err := domain.SessionFromRecord(got)
		require.NoError(t, err)
		require.Equal(t, s.Data, back.Data)
		require.Equal(t, s.CurrentStage, back.CurrentStage)
		require.True(t, s.StartedAt.Equal(back.StartedAt))
	})

	t.Run("list by user newest first", func(t *testing.T) {
		for i, id := range []domain.SessionID{"l-1", "l-2", "l-3"} {
			require.NoError(t, store.SaveSession(ctx, record(id, "u-list", base.Add(time.Duration(i)*time.Hour))))
		}
		require.NoError(t, store.SaveSession(ctx, record("l-other", "u-other", base)))

		all, err := store.ListSessionsByUser(ctx, "u-list", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, domain.SessionID("l-3"), all[0].ID)
		require.Equal(t, domain.SessionID("l-1"), all[2].ID)

		limited, err := store.ListSessionsByUser(ctx, "u-list", 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)

		none, err := store.ListSessionsByUser(ctx, "u-ghost", 0)
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("newest first within one second", func(t *testing.T) {
		second := time.Date(2026, 4, 2, 9, 0, 5, 0, time.UTC)
		require.NoError(t, store.SaveSession(ctx, record("sub-older", "u-sub", second)))
		require.NoError(t, store.SaveSession(ctx, record("sub-newer", "u-sub", second.Add(500*time.Millisecond))))

		got, err := store.ListSessionsByUser(ctx, "u-sub", 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, domain.SessionID("sub-newer"), got[0].ID)
		require.Equal(t, domain.SessionID("sub-older"), got[1].ID)
		require.True(t, second.Equal(got[1].StartedAt))
	})
}

// EventStore checks append order and per-session isolation.
func EventStore(t *testing.T, store domain.EventStore) {
	ctx := context.Background()

	events := []domain.Event{
		{Type: domain.EventStateChange, Stage: domain.StageSituation, Payload: map[string]any{"to": "SITUATION"}, Timestamp: base},
		{Type: domain.EventUserInput, Stage: domain.StageSituation, Timestamp: base.Add(time.Second)},
	}
	require.NoError(t, store.AppendEvents(ctx, "e-1", events))
	require.NoError(t, store.AppendEvents(ctx, "e-1", []domain.Event{
		{Type: domain.EventAvatarResponse, Stage: domain.StagePerception, Timestamp: base.Add(2 * time.Second)},
	}))
	require.NoError(t, store.AppendEvents(ctx, "e-2", nil))

	got, err := store.ListEvents(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, domain.EventStateChange, got[0].Type)
	require.Equal(t, domain.EventAvatarResponse, got[2].Type)
	require.Equal(t, domain.StagePerception, got[2].Stage)
	require.True(t, base.Equal(got[0].Timestamp))

	empty, err := store.ListEvents(ctx, "e-2")
	require.NoError(t, err)
	require.Empty(t, empty)
}

// JournalStore checks id assignment and the limit window.
func JournalStore(t *testing.T, store domain.JournalStore) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &domain.JournalEntry{
			SessionID:      domain.SessionID("j-s"),
			UserID:         "j-user",
			ProblemSummary: []string{"one", "two", "three"}[i],
			ActionPlan: []domain.JournalAction{
				{ID: "breathing_exercise", Description: "Guided breathing exercise", Status: domain.ActionStatusDone, CreatedAt: base, UpdatedAt: base},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.AppendJournalEntry(ctx, entry))
		require.NotEmpty(t, entry.ID)
	}

	all, err := store.ListJournalEntriesByUser(ctx, "j-user", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "one", all[0].ProblemSummary)
	require.Len(t, all[0].ActionPlan, 1)

	last, err := store.ListJournalEntriesByUser(ctx, "j-user", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	require.Equal(t, "two", last[0].ProblemSummary)
	require.Equal(t, "three", last[1].ProblemSummary)

	none, err := store.ListJournalEntriesByUser(ctx, "nobody", 5)
	require.NoError(t, err)
	require.Empty(t, none)

	second := time.Date(2026, 4, 2, 9, 0, 5, 0, time.UTC)
	for i, at := range []time.Time{second, second.Add(500 * time.Millisecond)} {
		require.NoError(t, store.AppendJournalEntry(ctx, &domain.JournalEntry{
			SessionID:      "j-sub",
			UserID:         "j-sub-user",
			ProblemSummary: []string{"older", "newer"}[i],
			CreatedAt:      at,
			UpdatedAt:      at,
		}))
	}
	latest, err := store.ListJournalEntriesByUser(ctx, "j-sub-user", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "newer", latest[0].ProblemSummary)
}
