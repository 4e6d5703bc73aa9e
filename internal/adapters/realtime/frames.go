package realtime

import (
	"encoding/json"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

// Client events.
const (
	EventJoinSession    = "join_session"
	EventUserInput      = "user_input"
	EventStartAction    = "start_action"
	EventActionComplete = "action_complete"
)

// Server events.
const (
	EventSessionJoined    = "session_joined"
	EventSessionUpdate    = "session_update"
	EventSessionCompleted = "session_completed"
	EventActionGuide      = "action_guide"
	EventError            = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type joinSessionData struct {
	SessionID domain.SessionID `json:"session_id"`
}

type userInputData struct {
	SessionID domain.SessionID `json:"session_id"`
	Input     domain.UserInput `json:"input"`
}

type startActionData struct {
	ActionType string `json:"action_type"`
}

type sessionJoinedData struct {
	Session  *domain.Session `json:"session"`
	Progress spark.Progress  `json:"progress"`
}

type sessionUpdateData struct {
	Messages     []domain.AvatarMessage `json:"messages"`
	Progress     spark.Progress         `json:"progress"`
	Transitioned bool                   `json:"transitioned"`
	Completed    bool                   `json:"completed"`
}

type sessionCompletedData struct {
	Session *domain.Session `json:"session"`
	Events  []domain.Event  `json:"events"`
}

type errorData struct {
	Message string `json:"message"`
}
