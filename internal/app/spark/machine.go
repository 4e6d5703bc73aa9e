package spark

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

var (
	// ErrNoActiveHandler is returned when input reaches a session that already completed.
	ErrNoActiveHandler = errors.New("no active stage handler")
	// ErrUnknownStage is returned by Restore for snapshots with an unrecognized stage.
	ErrUnknownStage = errors.New("unknown stage")
)

// Result is what Start and ProcessInput hand back to the caller.
// Session and Events are copies and safe to use outside the machine.
type Result struct {
	Session      *domain.Session        `json:"session"`
	Messages     []domain.AvatarMessage `json:"messages"`
	Transitioned bool                   `json:"transitioned"`
	Completed    bool                   `json:"completed"`
	Events       []domain.Event         `json:"events,omitempty"`
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// Option configures a Machine.
type Option func(*Machine)

// WithPicker sets the randomness source for template selection.
func WithPicker(p Picker) Option {
	return func(m *Machine) { m.picker = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithIDGenerator(gen func() domain.SessionID) Option {
	return func(m *Machine) { m.newID = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithAnalytics toggles the in-memory event log. It is on by default.
func WithAnalytics(enabled bool) Option {
	return func(m *Machine) { m.analytics = enabled }
}

// Machine drives one session through the SPARK stages.
// It is not safe for concurrent use; callers serialize access per session.
type Machine struct {
	owner   domain.UserID
	session *domain.Session
	handler Handler
	events  []domain.Event

	picker    Picker
	now       func() time.Time
	newID     func() domain.SessionID
	logger    *slog.Logger
	analytics bool
}

// New returns a machine for owner. Call Start to open the session.
func New(owner domain.UserID, opts ...Option) *Machine {
	m := &Machine{
		owner:     owner,
		picker:    globalPicker{},
		now:       time.Now,
		newID:     func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
		logger:    slog.Default(),
		analytics: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore rebuilds a machine around a persisted session so it continues
// exactly where it stopped. A completed session restores with no handler.
func Restore(s *domain.Session, opts ...Option) (*Machine, error) {
	if s == nil {
		return nil, fmt.Errorf("restore: nil session")
	}
	if !s.CurrentStage.Valid() {
		return nil, fmt.Errorf("restore session %s: %w: %q", s.ID, ErrUnknownStage, s.CurrentStage)
	}

	m := New(s.OwnerID, opts...)
	m.session = s.Clone()
	m.handler = newHandler(s.CurrentStage, m.session)
	return m, nil
}

// Start opens a fresh session at Situation and returns the greeting.
func (m *Machine) Start() Result {
	m.session = &domain.Session{
		ID:              m.newID(),
		OwnerID:         m.owner,
		CurrentStage:    domain.StageSituation,
		StartedAt:       m.now(),
		DialogueHistory: []string{},
	}
	m.events = nil
	m.handler = newHandler(domain.StageSituation, m.session)

	msgs := m.handler.Enter(m.session)
	m.logEvent(domain.EventStateChange, map[string]any{"to": domain.StageSituation})

	return m.result(msgs, false, false)
}

// ProcessInput applies one user input to the active stage and advances when
// the stage is satisfied.
func (m *Machine) ProcessInput(in domain.UserInput) (Result, error) {
	if m.handler == nil {
		return Result{}, ErrNoActiveHandler
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = m.now()
	}

	from := m.handler.Stage()
	m.logEvent(domain.EventUserInput, in)

	m.handler.ProcessInput(m.session, in)
	m.logActionEvents(from, in)

	if !m.handler.CanTransition(m.session) {
		msgs := []domain.AvatarMessage{domain.Speech(PartialInputReply(m.picker))}
		m.logEvent(domain.EventAvatarResponse, msgs)
		return m.result(msgs, false, false), nil
	}

	var msgs []domain.AvatarMessage
	next := m.handler.NextStage()
	completed := next == domain.StageCompleted

	// the summary closes the session, so KeyResult is not acknowledged twice
	if !completed {
		if ack := Acknowledgment(from, m.session.Data, m.picker); ack != "" {
			msgs = append(msgs, domain.Speech(ack))
		}
	}

	m.session.CurrentStage = next
	m.handler = newHandler(next, m.session)
	m.logEvent(domain.EventStateChange, map[string]any{"from": from, "to": next})

	if completed {
		at := m.now()
		m.session.CompletedAt = &at
		if summary := SessionSummary(m.session.Data); summary != "" {
			msgs = append(msgs, domain.Speech(summary))
		}
		msgs = append(msgs, domain.Speech(ClosingLine))
	} else {
		msgs = append(msgs, m.handler.Enter(m.session)...)
	}

	m.logEvent(domain.EventAvatarResponse, msgs)
	return m.result(msgs, true, completed), nil
}

func (m *Machine) logActionEvents(stage domain.Stage, in domain.UserInput) {
	if stage != domain.StageResponse || m.session.Data.Response == nil {
		return
	}
	r := m.session.Data.Response
	switch {
	case in.Type == domain.InputOptionSelect && r.SelectedAction != "":
		m.logEvent(domain.EventActionStart, map[string]any{"action": r.SelectedAction})
	case in.Type == domain.InputActionComplete && r.ActionCompleted:
		m.logEvent(domain.EventActionComplete, map[string]any{"action": r.SelectedAction})
	}
}

// AddLLMResponse records a coach reply, keeping only the most recent ones.
// It does nothing before Start.
func (m *Machine) AddLLMResponse(text string) {
	if m.session == nil {
		return
	}
	m.session.AppendDialogue(text)
	m.logEvent(domain.EventAvatarResponse, map[string]any{"source": "llm"})
}

// LLMPrompt builds the coach prompt for the current stage.
func (m *Machine) LLMPrompt(userMessage string) string {
	if m.session == nil {
		return ""
	}
	return BuildLLMPrompt(m.session, userMessage)
}

// Progress is the zero value until Start is called.
func (m *Machine) Progress() Progress {
	if m.session == nil {
		return Progress{TotalSteps: TotalSteps}
	}
	return ProgressOf(m.session)
}

func (m *Machine) Validate() IntegrityReport {
	if m.session == nil {
		return IntegrityReport{Valid: false, Errors: []string{"Session not started"}}
	}
	return ValidateIntegrity(m.session)
}

// Session returns a copy of the current session, or nil before Start.
func (m *Machine) Session() *domain.Session {
	return m.session.Clone()
}

// Stage is the current stage without copying the session.
func (m *Machine) Stage() domain.Stage {
	if m.session == nil {
		return ""
	}
	return m.session.CurrentStage
}

func (m *Machine) SessionID() domain.SessionID {
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// LastActivity is when the session completed, or when it started if it has not.
func (m *Machine) LastActivity() time.Time {
	if m.session == nil {
		return time.Time{}
	}
	return m.session.LastActivity()
}

// CoachContext describes the session for the LLM collaborator.
func (m *Machine) CoachContext() domain.CoachContext {
	if m.session == nil {
		return domain.CoachContext{UserID: m.owner}
	}
	return domain.CoachContext{
		SessionID: m.session.ID,
		UserID:    m.session.OwnerID,
		Stage:     m.session.CurrentStage,
		History:   append([]string(nil), m.session.DialogueHistory...),
	}
}

// Active reports whether the machine still accepts input.
func (m *Machine) Active() bool {
	return m.handler != nil
}

// Events returns a copy of the analytics log.
func (m *Machine) Events() []domain.Event {
	return append([]domain.Event(nil), m.events...)
}

func (m *Machine) logEvent(t domain.EventType, payload any) {
	stage := m.session.CurrentStage
	m.logger.Debug("spark event",
		"session_id", m.session.ID,
		"event", t,
		"stage", stage,
	)
	if !m.analytics {
		return
	}
	m.events = append(m.events, domain.Event{
		Type:      t,
		Stage:     stage,
		Payload:   payload,
		Timestamp: m.now(),
	})
}

func (m *Machine) result(msgs []domain.AvatarMessage, transitioned, completed bool) Result {
	return Result{
		Session:      m.session.Clone(),
		Messages:     msgs,
		Transitioned: transitioned,
		Completed:    completed,
		Events:       m.Events(),
	}
}
