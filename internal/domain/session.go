package domain

import "time"

// DialogueHistoryLimit caps how many coach replies a session keeps.
const DialogueHistoryLimit = 10

type SituationData struct {
	Description string `json:"description"`
	Thoughts    string `json:"thoughts"`
}

type PerceptionData struct {
	SelectedReframe string `json:"selected_reframe"`
	UserReflection  string `json:"user_reflection"`
}

type AffectData struct {
	Emotion   EmotionType `json:"emotion"`
	Intensity int         `json:"intensity"`
}

type ResponseData struct {
	SelectedAction  ResponseAction `json:"selected_action"`
	ActionCompleted bool           `json:"action_completed"`
}

type KeyResultData struct {
	FollowThrough FollowThroughLevel `json:"follow_through"`
	Insights      string             `json:"insights"`
}

// StageData holds one slot per stage. A slot stays nil until its stage is entered.
type StageData struct {
	Situation  *SituationData  `json:"situation,omitempty"`
	Perception *PerceptionData `json:"perception,omitempty"`
	Affect     *AffectData     `json:"affect,omitempty"`
	Response   *ResponseData   `json:"response,omitempty"`
	KeyResult  *KeyResultData  `json:"key_result,omitempty"`
}

// Session is one user's run through the five SPARK stages.
type Session struct {
	ID              SessionID  `json:"id"`
	OwnerID         UserID     `json:"owner_id"`
	CurrentStage    Stage      `json:"current_stage"`
	Data            StageData  `json:"stage_data"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DialogueHistory []string   `json:"dialogue_history"`
}

// LastActivity is CompletedAt when set, StartedAt otherwise.
func (s *Session) LastActivity() time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.StartedAt
}

func (s *Session) IsCompleted() bool {
	return s.CurrentStage == StageCompleted
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	out := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.DialogueHistory = append([]string(nil), s.DialogueHistory...)

	if s.Data.Situation != nil {
		v := *s.Data.Situation
		out.Data.Situation = &v
	}
	if s.Data.Perception != nil {
		v := *s.Data.Perception
		out.Data.Perception = &v
	}
	if s.Data.Affect != nil {
		v := *s.Data.Affect
		out.Data.Affect = &v
	}
	if s.Data.Response != nil {
		v := *s.Data.Response
		out.Data.Response = &v
	}
	if s.Data.KeyResult != nil {
		v := *s.Data.KeyResult
		out.Data.KeyResult = &v
	}
	return &out
}

// AppendDialogue adds a reply and evicts the oldest entries beyond DialogueHistoryLimit.
func (s *Session) AppendDialogue(text string) {
	s.DialogueHistory = append(s.DialogueHistory, text)
	if n := len(s.DialogueHistory); n > DialogueHistoryLimit {
		s.DialogueHistory = append([]string(nil), s.DialogueHistory[n-DialogueHistoryLimit:]...)
	}
}
