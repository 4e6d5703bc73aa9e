package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/spark-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/spark-agent/internal/app/journal"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

func completedSession() *domain.Session {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	done := started.Add(10 * time.Minute)
	return &domain.Session{
		ID:           "s1",
		OwnerID:      "u1",
		CurrentStage: domain.StageCompleted,
		StartedAt:    started,
		CompletedAt:  &done,
		Data: domain.StageData{
			Situation:  &domain.SituationData{Description: "Inbox overflow", Thoughts: "I'm behind"},
			Perception: &domain.PerceptionData{SelectedReframe: domain.ReframeQuestions[1], UserReflection: "It's fixable"},
			Affect:     &domain.AffectData{Emotion: domain.EmotionOverwhelmed, Intensity: 7},
			Response:   &domain.ResponseData{SelectedAction: domain.ActionFiveMinWalk, ActionCompleted: true},
			KeyResult:  &domain.KeyResultData{FollowThrough: domain.FollowThroughSignificantProgress, Insights: "Walking resets me"},
		},
	}
}

func TestEntryFromSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := journal.EntryFromSession(completedSession(), now)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, domain.SessionID("s1"), entry.SessionID)
	assert.Equal(t, domain.UserID("u1"), entry.UserID)
	assert.Equal(t, "Inbox overflow", entry.ProblemSummary)
	assert.Equal(t, "overwhelmed (7/10)", entry.MoodBefore)
	assert.Equal(t, "Made significant progress", entry.MoodAfter)
	assert.Equal(t, "Walking resets me", entry.Reflection)
	require.Len(t, entry.ActionPlan, 1)
	assert.Equal(t, "Go for a 5-minute walk", entry.ActionPlan[0].Description)
	assert.Equal(t, "5 minutes", entry.ActionPlan[0].Notes)
	assert.Equal(t, domain.ActionStatusDone, entry.ActionPlan[0].Status)
	assert.Equal(t, now, entry.CreatedAt)
}

func TestRecordSession_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := journal.NewService(memory.NewJournalStore())

	_, err := svc.RecordSession(ctx, completedSession())
	require.NoError(t, err)

	entries, err := svc.GetUserJournal(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Inbox overflow", entries[0].ProblemSummary)

	other, err := svc.GetUserJournal(ctx, "someone-else", 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordSession_RejectsOpenSession(t *testing.T) {
	svc := journal.NewService(memory.NewJournalStore())
	open := completedSession()
	open.CompletedAt = nil
	open.CurrentStage = domain.StageKeyResult

	_, err := svc.RecordSession(context.Background(), open)
	require.Error(t, err)
}

func TestNilStoreIsDisabled(t *testing.T) {
	svc := journal.NewService(nil)

	entry, err := svc.RecordSession(context.Background(), completedSession())
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, err := svc.GetUserJournal(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
