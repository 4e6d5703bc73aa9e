package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// Store implements the session, event and journal stores on Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project (SPARK_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("spark_sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) eventsCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("events")
}

func (s *Store) journalCol() *firestore.CollectionRef {
	return s.client.Collection("journal_entries")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

// Stage data is kept as a JSON string so the document shape does not
// follow every change of the stage structs.
type sessionDoc struct {
	OwnerID         string     `firestore:"owner_id"`
	StageName       string     `firestore:"stage_name"`
	StageData       string     `firestore:"stage_data"`
	DialogueHistory []string   `firestore:"dialogue_history"`
	StartedAt       time.Time  `firestore:"started_at"`
	CompletedAt     *time.Time `firestore:"completed_at"`
}

type eventDoc struct {
	Seq       int       `firestore:"seq"`
	Type      string    `firestore:"type"`
	Stage     string    `firestore:"stage"`
	Payload   string    `firestore:"payload"`
	Timestamp time.Time `firestore:"timestamp"`
}

type journalDoc struct {
	SessionID      string `firestore:"session_id"`
	UserID         string `firestore:"user_id"`
	ProblemSummary string `firestore:"problem_summary"`
	ActionPlan     string `firestore:"action_plan"`
	Reflection     string `firestore:"reflection"`
	MoodBefore     string `firestore:"mood_before"`
	MoodAfter      string `firestore:"mood_after"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func toSessionDoc(rec *domain.SessionRecord) sessionDoc {
	history := rec.DialogueHistory
	if history == nil {
		history = []string{}
	}
	return sessionDoc{
		OwnerID:         string(rec.OwnerID),
		StageName:       string(rec.StageName),
		StageData:       string(rec.StageData),
		DialogueHistory: history,
		StartedAt:       rec.StartedAt,
		CompletedAt:     rec.CompletedAt,
	}
}

func fromSessionDoc(id string, doc sessionDoc) *domain.SessionRecord {
	return &domain.SessionRecord{
		ID:              domain.SessionID(id),
		OwnerID:         domain.UserID(doc.OwnerID),
		StageName:       domain.Stage(doc.StageName),
		StageData:       json.RawMessage(doc.StageData),
		DialogueHistory: doc.DialogueHistory,
		StartedAt:       doc.StartedAt,
		CompletedAt:     doc.CompletedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	_, err := s.sessionDoc(rec.ID).Set(ctx, toSessionDoc(rec))
	if err != nil {
		return fmt.Errorf("firestore SaveSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return fromSessionDoc(snap.Ref.ID, doc), nil
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SessionRecord, error) {
	q := s.sessionsCol().Where("owner_id", "==", string(userID)).OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.SessionRecord{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListSessionsByUser: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, fromSessionDoc(snap.Ref.ID, doc))
	}
	return out, nil
}

// ─────────────────────────────────────────
// EventStore implementation
// ─────────────────────────────────────────

// AppendEvents writes the batch atomically under the session document.
func (s *Store) AppendEvents(ctx context.Context, sessionID domain.SessionID, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	col := s.eventsCol(sessionID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(col).GetAll()
		if err != nil {
			return err
		}
		seq := len(existing)

		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encode %s payload: %w", ev.Type, err)
			}
			doc := eventDoc{
				Seq:       seq,
				Type:      string(ev.Type),
				Stage:     string(ev.Stage),
				Payload:   string(payload),
				Timestamp: ev.Timestamp,
			}
			if err := tx.Create(col.Doc(uuid.NewString()), doc); err != nil {
				return err
			}
			seq++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("firestore AppendEvents: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID domain.SessionID) ([]domain.Event, error) {
	iter := s.eventsCol(sessionID).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []domain.Event{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListEvents: %w", err)
		}

		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode eventDoc: %w", err)
		}
		ev := domain.Event{
			Type:      domain.EventType(doc.Type),
			Stage:     domain.Stage(doc.Stage),
			Timestamp: doc.Timestamp,
		}
		if doc.Payload != "" {
			if err := json.Unmarshal([]byte(doc.Payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// ─────────────────────────────────────────
// JournalStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendJournalEntry(ctx context.Context, entry *domain.JournalEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = domain.JournalEntryID(uuid.NewString())
	}

	plan, err := json.Marshal(entry.ActionPlan)
	if err != nil {
		return fmt.Errorf("encode action plan: %w", err)
	}

	doc := journalDoc{
		SessionID:      string(entry.SessionID),
		UserID:         string(entry.UserID),
		ProblemSummary: entry.ProblemSummary,
		ActionPlan:     string(plan),
		Reflection:     entry.Reflection,
		MoodBefore:     entry.MoodBefore,
		MoodAfter:      entry.MoodAfter,
		CreatedAt:      entry.CreatedAt,
		UpdatedAt:      entry.UpdatedAt,
	}
	if _, err := s.journalCol().Doc(string(entry.ID)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendJournalEntry: %w", err)
	}
	return nil
}

// ListJournalEntriesByUser returns the last `limit` entries, oldest first.
func (s *Store) ListJournalEntriesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.JournalEntry, error) {
	q := s.journalCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var newestFirst []*domain.JournalEntry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListJournalEntriesByUser: %w", err)
		}

		var doc journalDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode journalDoc: %w", err)
		}
		e := &domain.JournalEntry{
			ID:             domain.JournalEntryID(snap.Ref.ID),
			SessionID:      domain.SessionID(doc.SessionID),
			UserID:         domain.UserID(doc.UserID),
			ProblemSummary: doc.ProblemSummary,
			Reflection:     doc.Reflection,
			MoodBefore:     doc.MoodBefore,
			MoodAfter:      doc.MoodAfter,
			CreatedAt:      doc.CreatedAt,
			UpdatedAt:      doc.UpdatedAt,
		}
		if err := json.Unmarshal([]byte(doc.ActionPlan), &e.ActionPlan); err != nil {
			return nil, fmt.Errorf("decode action plan: %w", err)
		}
		newestFirst = append(newestFirst, e)
	}

	out := make([]*domain.JournalEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
