package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// JournalStore implements domain.JournalStore using SQLite
type JournalStore struct {
	db *sql.DB
}

func (s *JournalStore) AppendJournalEntry(ctx context.Context, entry *domain.JournalEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = domain.JournalEntryID(uuid.NewString())
	}

	plan := entry.ActionPlan
	if plan == nil {
		plan = []domain.JournalAction{}
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode action plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries
			(id, session_id, user_id, problem_summary, action_plan, reflection, mood_before, mood_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(entry.ID),
		string(entry.SessionID),
		string(entry.UserID),
		entry.ProblemSummary,
		string(planJSON),
		entry.Reflection,
		entry.MoodBefore,
		entry.MoodAfter,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// ListJournalEntriesByUser returns the last `limit` entries, oldest first.
func (s *JournalStore) ListJournalEntriesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT id, session_id, user_id, problem_summary, action_plan, reflection, mood_before, mood_after, created_at, updated_at
		FROM journal_entries
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	args := []any{string(userID)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var newestFirst []*domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var id, sessionID, uid, plan, created, updated string
		if err := rows.Scan(&id, &sessionID, &uid, &e.ProblemSummary, &plan, &e.Reflection,
			&e.MoodBefore, &e.MoodAfter, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.ID = domain.JournalEntryID(id)
		e.SessionID = domain.SessionID(sessionID)
		e.UserID = domain.UserID(uid)
		if err := json.Unmarshal([]byte(plan), &e.ActionPlan); err != nil {
			return nil, fmt.Errorf("failed to decode action plan: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.JournalEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
