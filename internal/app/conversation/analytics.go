package conversation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
)

const topChoices = 5

// Tally is one ranked choice with how often it was made.
type Tally struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// UserAnalytics summarises every stored session of one user. Action counts
// come from the flushed event log, so sessions still live are not in them yet.
type UserAnalytics struct {
	UserID                   domain.UserID `json:"user_id"`
	TotalSessions            int           `json:"total_sessions"`
	CompletedSessions        int           `json:"completed_sessions"`
	AverageCompletionSeconds float64       `json:"average_completion_seconds"`
	MostUsedEmotions         []Tally       `json:"most_used_emotions"`
	MostSelectedActions      []Tally       `json:"most_selected_actions"`
	ActionsStarted           int           `json:"actions_started"`
	ActionsCompleted         int           `json:"actions_completed"`
}

// UserAnalytics aggregates the user's session history.
func (s *Service) UserAnalytics(ctx context.Context, userID domain.UserID) (*UserAnalytics, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.UserAnalytics")
	defer span.End()

	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	sessions, err := s.ListSessionsByUser(ctx, userID, 0)
	if err != nil {
		log.Error("failed to list sessions", "error", err)
		return nil, err
	}

	out := &UserAnalytics{
		UserID:              userID,
		TotalSessions:       len(sessions),
		MostUsedEmotions:    []Tally{},
		MostSelectedActions: []Tally{},
	}

	emotions := map[string]int{}
	actions := map[string]int{}
	var total time.Duration

	for _, sess := range sessions {
		if sess.IsCompleted() && sess.CompletedAt != nil {
			out.CompletedSessions++
			total += sess.CompletedAt.Sub(sess.StartedAt)
		}
		if a := sess.Data.Affect; a != nil && a.Emotion != "" {
			emotions[string(a.Emotion)]++
		}
		if r := sess.Data.Response; r != nil && r.SelectedAction != "" {
			actions[string(r.SelectedAction)]++
		}

		events, err := s.events.ListEvents(ctx, sess.ID)
		if err != nil {
			log.Error("failed to list events", "session_id", sess.ID, "error", err)
			return nil, fmt.Errorf("list events for %s: %w", sess.ID, err)
		}
		for _, ev := range events {
			switch ev.Type {
			case domain.EventActionStart:
				out.ActionsStarted++
			case domain.EventActionComplete:
				out.ActionsCompleted++
			}
		}
	}

	if out.CompletedSessions > 0 {
		out.AverageCompletionSeconds = (total / time.Duration(out.CompletedSessions)).Seconds()
	}
	out.MostUsedEmotions = rank(emotions)
	out.MostSelectedActions = rank(actions)

	log.Info("user analytics built",
		"total_sessions", out.TotalSessions,
		"completed_sessions", out.CompletedSessions)
	return out, nil
}

// rank orders by count, then by value, and keeps the top few.
func rank(counts map[string]int) []Tally {
	out := make([]Tally, 0, len(counts))
	for v, n := range counts {
		out = append(out, Tally{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > topChoices {
		out = out[:topChoices]
	}
	return out
}
