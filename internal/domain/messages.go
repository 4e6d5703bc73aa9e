package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type InputType string

const (
	InputText           InputType = "text"
	InputOptionSelect   InputType = "option_select"
	InputEmotionSelect  InputType = "emotion_select"
	InputIntensity      InputType = "intensity"
	InputActionComplete InputType = "action_complete"
)

func (t InputType) Valid() bool {
	switch t {
	case InputText, InputOptionSelect, InputEmotionSelect, InputIntensity, InputActionComplete:
		return true
	}
	return false
}

// UserInput is the uniform envelope every stage handler consumes.
// Value holds a string, a number or a boolean depending on Type.
type UserInput struct {
	Type      InputType `json:"type"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Text reports the value as a string.
func (in UserInput) Text() (string, bool) {
	s, ok := in.Value.(string)
	return s, ok
}

// Int reports the value as an integer. JSON numbers and numeric strings are
// accepted as long as they carry no fractional part.
func (in UserInput) Int() (int, bool) {
	switch v := in.Value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Bool reports the value as a boolean.
func (in UserInput) Bool() (bool, bool) {
	switch v := in.Value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

type MessageType string

const (
	MessageSpeech  MessageType = "speech"
	MessagePrompt  MessageType = "prompt"
	MessageOptions MessageType = "options"
	MessageInput   MessageType = "input"
	MessageGuide   MessageType = "guide"
)

// InputKind tells the client which input widget to render.
type InputKind string

const (
	InputKindText            InputKind = "text"
	InputKindTextarea        InputKind = "textarea"
	InputKindEmotionSelector InputKind = "emotion_selector"
	InputKindIntensitySlider InputKind = "intensity_slider"
)

// AvatarMessage is what the avatar says or asks.
type AvatarMessage struct {
	Type      MessageType    `json:"type"`
	Content   string         `json:"content"`
	Options   []string       `json:"options,omitempty"`
	InputType InputKind      `json:"input_type,omitempty"`
	GuideType string         `json:"guide_type,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func Speech(content string) AvatarMessage {
	return AvatarMessage{Type: MessageSpeech, Content: content}
}

type EventType string

const (
	EventStateChange    EventType = "state_change"
	EventUserInput      EventType = "user_input"
	EventAvatarResponse EventType = "avatar_response"
	EventActionStart    EventType = "action_start"
	EventActionComplete EventType = "action_complete"
)

// Event is an append-only audit entry. It never drives session logic.
type Event struct {
	Type      EventType `json:"type"`
	Stage     Stage     `json:"stage"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
