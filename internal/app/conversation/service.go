package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/spark-agent/internal/app/agentflow"
	"github.com/PabloGalante/spark-agent/internal/app/journal"
	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
	"github.com/PabloGalante/spark-agent/internal/pubsub"
)

var (
	ErrMissingOwner     = errors.New("user id is required")
	ErrCoachUnavailable = errors.New("coach unavailable")
)

const DefaultIdleTimeout = 30 * time.Minute

// Eviction reasons, also used as the metrics label.
const (
	reasonCompleted = "completed"
	reasonEnded     = "ended"
	reasonIdle      = "idle"
	reasonShutdown  = "shutdown"
)

// Update is published on the session's topic after every change.
type Update struct {
	SessionID    domain.SessionID       `json:"session_id"`
	Session      *domain.Session        `json:"session,omitempty"`
	Messages     []domain.AvatarMessage `json:"messages"`
	Progress     spark.Progress         `json:"progress"`
	Transitioned bool                   `json:"transitioned"`
	Completed    bool                   `json:"completed"`
	Events       []domain.Event         `json:"events,omitempty"`
}

// Service owns the live sessions and everything that happens to them.
type Service struct {
	coach    *agentflow.Orchestrator
	sessions domain.SessionStore
	events   domain.EventStore
	journal  *journal.Service

	dir     *directory
	updates *pubsub.Broker[Update]
	metrics *observability.Metrics
	tracer  trace.Tracer

	now         func() time.Time
	idleTimeout time.Duration
	machineOpts []spark.Option
}

type Option func(*Service)

// WithClock sets the clock used for sweeping and for new machines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMachineOptions is applied to every machine the service creates or restores.
func WithMachineOptions(opts ...spark.Option) Option {
	return func(s *Service) { s.machineOpts = append(s.machineOpts, opts...) }
}

func WithAnalytics(enabled bool) Option {
	return WithMachineOptions(spark.WithAnalytics(enabled))
}

// NewService wires the service. coach and journal may be nil; events may be
// nil when the event log is not kept.
func NewService(
	coach *agentflow.Orchestrator,
	sessions domain.SessionStore,
	events domain.EventStore,
	journalSvc *journal.Service,
	opts ...Option,
) *Service {
	s := &Service{
		coach:       coach,
		sessions:    sessions,
		events:      events,
		journal:     journalSvc,
		dir:         newDirectory(),
		updates:     pubsub.NewBroker[Update](),
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics()
	}
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	return s
}

func (s *Service) machineOptions() []spark.Option {
	base := []spark.Option{
		spark.WithClock(s.now),
		spark.WithLogger(observability.Logger()),
	}
	return append(base, s.machineOpts...)
}

// Updates is the feed of session changes, one topic per session id.
func (s *Service) Updates() *pubsub.Broker[Update] {
	return s.updates
}

// Close stops the update feed.
func (s *Service) Close() {
	s.updates.Close()
}

func (s *Service) ActiveSessionCount() int {
	return s.dir.count()
}

type CreateSessionInput struct {
	OwnerID domain.UserID
}

type CreateSessionOutput struct {
	SessionID domain.SessionID
	Messages  []domain.AvatarMessage
	Progress  spark.Progress
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionOutput, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.CreateSession")
	defer span.End()

	log := observability.LoggerFromContext(ctx).With("user_id", in.OwnerID)
	if strings.TrimSpace(string(in.OwnerID)) == "" {
		return nil, ErrMissingOwner
	}
	log.Info("starting new session")

	m := spark.New(in.OwnerID, s.machineOptions()...)
	res := m.Start()
	span.SetAttributes(attribute.String("session.id", string(m.SessionID())))

	if err := s.persist(ctx, m); err != nil {
		log.Error("failed to save session", "error", err)
		span.RecordError(err)
		return nil, err
	}

	s.dir.add(m.SessionID(), &entry{machine: m})
	s.metrics.SessionsCreated.Inc()
	s.metrics.ActiveSessions.Set(float64(s.dir.count()))

	log.Info("session started", "session_id", m.SessionID())
	return &CreateSessionOutput{
		SessionID: m.SessionID(),
		Messages:  res.Messages,
		Progress:  m.Progress(),
	}, nil
}

type GetSessionOutput struct {
	Session  *domain.Session
	Progress spark.Progress
}

func (s *Service) GetSession(ctx context.Context, id domain.SessionID) (*GetSessionOutput, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.GetSession",
		trace.WithAttributes(attribute.String("session.id", string(id))))
	defer span.End()

	e, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return &GetSessionOutput{
		Session:  e.machine.Session(),
		Progress: e.machine.Progress(),
	}, nil
}

type SubmitInputInput struct {
	SessionID domain.SessionID
	Input     domain.UserInput
}

type SubmitInputOutput struct {
	Session      *domain.Session
	Messages     []domain.AvatarMessage
	Progress     spark.Progress
	Transitioned bool
	Completed    bool
	Events       []domain.Event
}

// SubmitInput feeds one input to the session. A session that completes is
// finalized and leaves the directory before this returns.
func (s *Service) SubmitInput(ctx context.Context, in SubmitInputInput) (*SubmitInputOutput, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.SubmitInput",
		trace.WithAttributes(
			attribute.String("session.id", string(in.SessionID)),
			attribute.String("input.type", string(in.Input.Type)),
		))
	defer span.End()

	log := observability.LoggerFromContext(ctx).With(
		"session_id", in.SessionID,
		"input_type", in.Input.Type,
	)

	e, err := s.lock(ctx, in.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			log.Error("failed to load session", "error", err)
		}
		return nil, err
	}
	defer e.mu.Unlock()

	m := e.machine
	from := m.Stage()

	res, err := m.ProcessInput(in.Input)
	if err != nil {
		log.Warn("input rejected", "stage", from, "error", err)
		return nil, err
	}
	s.metrics.Inputs.WithLabelValues(inputLabel(in.Input.Type)).Inc()
	if res.Transitioned {
		s.metrics.Transitions.WithLabelValues(string(from), string(m.Stage())).Inc()
		log.Info("stage transition", "from", from, "to", m.Stage())
	}

	if err := s.persist(ctx, m); err != nil {
		log.Error("failed to save session", "error", err)
		span.RecordError(err)
		return nil, err
	}

	if res.Completed {
		s.metrics.SessionsCompleted.Inc()
		// the snapshot is already saved, so a failed flush does not fail the input
		if err := s.finalize(ctx, e, reasonCompleted); err != nil {
			log.Error("failed to finalize session", "error", err)
			span.RecordError(err)
		}
	}

	out := &SubmitInputOutput{
		Session:      res.Session,
		Messages:     res.Messages,
		Progress:     m.Progress(),
		Transitioned: res.Transitioned,
		Completed:    res.Completed,
		Events:       res.Events,
	}

	eventType := pubsub.UpdatedEvent
	if res.Completed {
		eventType = pubsub.CompletedEvent
	}
	s.updates.Publish(string(in.SessionID), eventType, Update{
		SessionID:    in.SessionID,
		Session:      out.Session,
		Messages:     out.Messages,
		Progress:     out.Progress,
		Transitioned: out.Transitioned,
		Completed:    out.Completed,
		Events:       out.Events,
	})

	return out, nil
}

type ReflectInput struct {
	SessionID domain.SessionID
	Message   string
}

type ReflectOutput struct {
	Reply string
}

// Reflect asks the coach for a reply to message in the context of the
// current stage and keeps it in the dialogue history. The session is not
// locked while the coach runs.
func (s *Service) Reflect(ctx context.Context, in ReflectInput) (*ReflectOutput, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.Reflect",
		trace.WithAttributes(attribute.String("session.id", string(in.SessionID))))
	defer span.End()

	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID)

	e, err := s.lock(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	prompt := e.machine.LLMPrompt(in.Message)
	coachCtx := e.machine.CoachContext()
	e.mu.Unlock()

	if s.coach == nil {
		return nil, ErrCoachUnavailable
	}

	start := s.now()
	reply, err := s.coach.Run(ctx, prompt, coachCtx)
	if err != nil {
		s.metrics.LLMRequests.WithLabelValues("error").Inc()
		log.Error("coach failed", "error", err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrCoachUnavailable, err)
	}
	s.metrics.LLMRequests.WithLabelValues("ok").Inc()
	log.Info("coach replied", "stage", coachCtx.Stage, "elapsed_ms", s.now().Sub(start).Milliseconds())

	e, err = s.lock(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	e.machine.AddLLMResponse(reply)
	if err := s.persist(ctx, e.machine); err != nil {
		log.Error("failed to save session", "error", err)
		return nil, err
	}

	return &ReflectOutput{Reply: reply}, nil
}

// Validate reports whether every stage before the current one has its data.
func (s *Service) Validate(ctx context.Context, id domain.SessionID) (spark.IntegrityReport, error) {
	e, err := s.lock(ctx, id)
	if err != nil {
		return spark.IntegrityReport{}, err
	}
	defer e.mu.Unlock()

	return e.machine.Validate(), nil
}

// EndSession finalizes a live session and drops it from the directory.
// Ending a session that is not live is a no-op as long as it exists.
func (s *Service) EndSession(ctx context.Context, id domain.SessionID) error {
	e, ok := s.dir.get(id)
	if !ok {
		_, err := s.sessions.GetSession(ctx, id)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return s.finalize(ctx, e, reasonEnded)
}

// Sweep finalizes every live session whose last activity is older than the
// idle timeout and returns how many were evicted.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.Sweep")
	defer span.End()

	now := s.now()
	evicted := 0
	var errs []error

	for _, e := range s.dir.entries() {
		e.mu.Lock()
		if !e.closed && now.Sub(e.machine.LastActivity()) > s.idleTimeout {
			if err := s.finalize(ctx, e, reasonIdle); err != nil {
				errs = append(errs, err)
			}
			evicted++
		}
		e.mu.Unlock()
	}

	span.SetAttributes(attribute.Int("sessions.evicted", evicted))
	observability.LoggerFromContext(ctx).Info("sweep finished",
		"evicted", evicted,
		"active_sessions", s.dir.count(),
	)
	return evicted, errors.Join(errs...)
}

// Shutdown finalizes every live session and closes the update feed.
// Snapshots stay in the store, so the sessions resume on the next start.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range s.dir.entries() {
		e.mu.Lock()
		if !e.closed {
			if err := s.finalize(ctx, e, reasonShutdown); err != nil {
				errs = append(errs, err)
			}
		}
		e.mu.Unlock()
	}
	s.updates.Close()
	return errors.Join(errs...)
}

// ListSessionsByUser returns the user's sessions, newest first.
func (s *Service) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Session, error) {
	recs, err := s.sessions.ListSessionsByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Session, 0, len(recs))
	for _, rec := range recs {
		sess, err := domain.SessionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// load returns the entry for id, restoring it from the store when it is not
// live. Completed sessions are restored but not kept in the directory.
func (s *Service) load(ctx context.Context, id domain.SessionID) (*entry, error) {
	if e, ok := s.dir.get(id); ok {
		return e, nil
	}

	rec, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := domain.SessionFromRecord(rec)
	if err != nil {
		return nil, err
	}
	m, err := spark.Restore(sess, s.machineOptions()...)
	if err != nil {
		return nil, err
	}

	e := &entry{machine: m}
	if !m.Active() {
		return e, nil
	}

	e = s.dir.add(id, e)
	s.metrics.ActiveSessions.Set(float64(s.dir.count()))
	observability.LoggerFromContext(ctx).Info("session restored",
		"session_id", id,
		"stage", m.Stage(),
	)
	return e, nil
}

// lock returns the entry for id with its mutex held. An entry that was
// finalized while we waited is reloaded from the store.
func (s *Service) lock(ctx context.Context, id domain.SessionID) (*entry, error) {
	for {
		e, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if !e.closed {
			return e, nil
		}
		e.mu.Unlock()
	}
}

// inputLabel keeps the input counter to a fixed label set.
func inputLabel(t domain.InputType) string {
	if t.Valid() {
		return string(t)
	}
	return "other"
}

func (s *Service) persist(ctx context.Context, m *spark.Machine) error {
	rec, err := m.Session().ToRecord()
	if err != nil {
		return err
	}
	if err := s.sessions.SaveSession(ctx, rec); err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// finalize saves the session, flushes its event log, writes the journal entry
// for completed sessions and removes it from the directory. The caller holds e.mu.
func (s *Service) finalize(ctx context.Context, e *entry, reason string) error {
	m := e.machine
	id := m.SessionID()
	log := observability.LoggerFromContext(ctx).With("session_id", id, "reason", reason)

	var errs []error
	if err := s.persist(ctx, m); err != nil {
		errs = append(errs, err)
	}
	if events := m.Events(); len(events) > 0 && s.events != nil {
		if err := s.events.AppendEvents(ctx, id, events); err != nil {
			errs = append(errs, fmt.Errorf("flush events for %s: %w", id, err))
		}
	}
	if m.Stage() == domain.StageCompleted && s.journal != nil {
		if _, err := s.journal.RecordSession(ctx, m.Session()); err != nil {
			errs = append(errs, err)
		}
	}

	s.dir.remove(id)
	e.closed = true
	s.metrics.SessionsEvicted.WithLabelValues(reason).Inc()
	s.metrics.ActiveSessions.Set(float64(s.dir.count()))

	if reason != reasonCompleted {
		s.updates.Publish(string(id), pubsub.EvictedEvent, Update{
			SessionID: id,
			Session:   m.Session(),
			Progress:  m.Progress(),
		})
	}

	log.Info("session finalized", "stage", m.Stage(), "events", len(m.Events()))
	return errors.Join(errs...)
}
