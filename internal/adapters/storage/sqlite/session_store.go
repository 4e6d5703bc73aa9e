package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// SessionStore implements domain.SessionStore using SQLite
type SessionStore struct {
	db *sql.DB
}

// SaveSession inserts the record or replaces the existing row with the same id.
func (s *SessionStore) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	history, err := json.Marshal(nonNil(rec.DialogueHistory))
	if err != nil {
		return fmt.Errorf("failed to encode dialogue history: %w", err)
	}

	stageData := string(rec.StageData)
	if stageData == "" {
		stageData = "{}"
	}

	var completedAt sql.NullString
	if rec.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*rec.CompletedAt), Valid: true}
	}

	query := `
		INSERT INTO sessions (id, owner_id, stage_name, stage_data, dialogue_history, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage_name = excluded.stage_name,
			stage_data = excluded.stage_data,
			dialogue_history = excluded.dialogue_history,
			completed_at = excluded.completed_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(rec.ID),
		string(rec.OwnerID),
		string(rec.StageName),
		stageData,
		string(history),
		formatTime(rec.StartedAt),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	query := `
		SELECT id, owner_id, stage_name, stage_data, dialogue_history, started_at, completed_at
		FROM sessions
		WHERE id = ?
	`
	rec, err := scanSession(s.db.QueryRowContext(ctx, query, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return rec, nil
}

// ListSessionsByUser returns the user's sessions, newest first.
func (s *SessionStore) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, owner_id, stage_name, stage_data, dialogue_history, started_at, completed_at
		FROM sessions
		WHERE owner_id = ?
		ORDER BY started_at DESC
	`
	args := []any{string(userID)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := []*domain.SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var (
		id, owner, stage, data, history, startedAt string
		completedAt                                sql.NullString
	)
	if err := row.Scan(&id, &owner, &stage, &data, &history, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	rec := &domain.SessionRecord{
		ID:        domain.SessionID(id),
		OwnerID:   domain.UserID(owner),
		StageName: domain.Stage(stage),
		StageData: json.RawMessage(data),
	}
	if err := json.Unmarshal([]byte(history), &rec.DialogueHistory); err != nil {
		return nil, fmt.Errorf("failed to decode dialogue history: %w", err)
	}

	var err error
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
