package domain

import "context"

// LLMClient defines how the core application interacts with an LLM service.
type LLMClient interface {
	GenerateReply(ctx context.Context, prompt string, coachCtx CoachContext) (string, error)
}

// CoachContext gives the LLM minimal context about the session being coached.
type CoachContext struct {
	SessionID SessionID
	UserID    UserID
	Stage     Stage
	History   []string // most recent coach replies, oldest first
}

// SessionStore persists session snapshots. SaveSession is an upsert.
type SessionStore interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id SessionID) (*SessionRecord, error)
	ListSessionsByUser(ctx context.Context, userID UserID, limit int) ([]*SessionRecord, error)
}

// EventStore keeps the analytics log flushed when a session is finalized.
type EventStore interface {
	AppendEvents(ctx context.Context, sessionID SessionID, events []Event) error
	ListEvents(ctx context.Context, sessionID SessionID) ([]Event, error)
}
