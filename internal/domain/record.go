package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionRecord is the persisted shape of a session.
type SessionRecord struct {
	ID              SessionID       `json:"id"`
	OwnerID         UserID          `json:"owner_id"`
	StageName       Stage           `json:"stage_name"`
	StageData       json.RawMessage `json:"stage_data"`
	DialogueHistory []string        `json:"dialogue_history"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
}

// ToRecord converts the session into its persisted record.
func (s *Session) ToRecord() (*SessionRecord, error) {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return nil, fmt.Errorf("encode stage data: %w", err)
	}

	rec := &SessionRecord{
		ID:              s.ID,
		OwnerID:         s.OwnerID,
		StageName:       s.CurrentStage,
		StageData:       data,
		DialogueHistory: append([]string(nil), s.DialogueHistory...),
		StartedAt:       s.StartedAt,
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		rec.CompletedAt = &t
	}
	return rec, nil
}

// SessionFromRecord rebuilds a session from its persisted record.
func SessionFromRecord(rec *SessionRecord) (*Session, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil session record")
	}
	if !rec.StageName.Valid() {
		return nil, fmt.Errorf("session %s: unknown stage %q", rec.ID, rec.StageName)
	}

	var data StageData
	if len(rec.StageData) > 0 {
		if err := json.Unmarshal(rec.StageData, &data); err != nil {
			return nil, fmt.Errorf("decode stage data: %w", err)
		}
	}

	s := &Session{
		ID:              rec.ID,
		OwnerID:         rec.OwnerID,
		CurrentStage:    rec.StageName,
		Data:            data,
		StartedAt:       rec.StartedAt,
		DialogueHistory: append([]string(nil), rec.DialogueHistory...),
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		s.CompletedAt = &t
	}
	return s, nil
}
