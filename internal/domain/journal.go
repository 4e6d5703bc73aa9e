package domain

import (
	"context"
	"time"
)

// JournalEntryID identifies a journal entry
type JournalEntryID string

// ActionStatus represents the status of an action in the plan
type ActionStatus string

const (
	ActionStatusPending ActionStatus = "pending"
	ActionStatusDone    ActionStatus = "done"
)

// JournalAction is the regulation step the user picked during the session
type JournalAction struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Status      ActionStatus `json:"status"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// JournalEntry is the long-term summary written when a SPARK session completes
type JournalEntry struct {
	ID        JournalEntryID `json:"id"`
	SessionID SessionID      `json:"session_id"`
	UserID    UserID         `json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Situation the user worked through
	ProblemSummary string `json:"problem_summary"`

	ActionPlan []JournalAction `json:"action_plan"`

	// Key insight the user wrote at the end
	Reflection string `json:"reflection"`

	// Emotion and intensity going in, follow-through coming out
	MoodBefore string `json:"mood_before"`
	MoodAfter  string `json:"mood_after"`
}

// JournalStore defines the minimum operations to persist the journal
type JournalStore interface {
	AppendJournalEntry(ctx context.Context, entry *JournalEntry) error
	ListJournalEntriesByUser(ctx context.Context, userID UserID, limit int) ([]*JournalEntry, error)
}
