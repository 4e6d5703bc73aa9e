package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// EventStore implements domain.EventStore using SQLite
type EventStore struct {
	db *sql.DB
}

// AppendEvents writes the batch in one transaction.
func (s *EventStore) AppendEvents(ctx context.Context, sessionID domain.SessionID, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_events (session_id, type, stage, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", ev.Type, err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(sessionID),
			string(ev.Type),
			string(ev.Stage),
			string(payload),
			formatTime(ev.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// ListEvents returns events in insertion order. Payloads come back as decoded JSON values.
func (s *EventStore) ListEvents(ctx context.Context, sessionID domain.SessionID) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, stage, payload, created_at
		FROM session_events
		WHERE session_id = ?
		ORDER BY id
	`, string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	out := []domain.Event{}
	for rows.Next() {
		var (
			typ, stage, createdAt string
			payload               sql.NullString
		)
		if err := rows.Scan(&typ, &stage, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev := domain.Event{Type: domain.EventType(typ), Stage: domain.Stage(stage)}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload: %w", err)
			}
		}
		if ev.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
