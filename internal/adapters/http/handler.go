package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/spark-agent/internal/app/conversation"
	"github.com/PabloGalante/spark-agent/internal/app/journal"
	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
)

const defaultListLimit = 20

type Server struct {
	svc     *conversation.Service
	journal *journal.Service
	metrics *observability.Metrics

	realtime   http.Handler
	corsOrigin string
	now        func() time.Time
}

type Option func(*Server)

// WithMetrics records request counts and serves /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRealtime mounts the websocket handler on /ws.
func WithRealtime(h http.Handler) Option {
	return func(s *Server) { s.realtime = h }
}

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func NewServer(svc *conversation.Service, journalSvc *journal.Service, opts ...Option) http.Handler {
	s := &Server{
		svc:        svc,
		journal:    journalSvc,
		corsOrigin: "*",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = journal.NewService(nil)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleEndSession)
	mux.HandleFunc("POST /api/sessions/{id}/inputs", s.handleSubmitInput)
	mux.HandleFunc("POST /api/sessions/{id}/reflect", s.handleReflect)
	mux.HandleFunc("GET /api/sessions/{id}/integrity", s.handleIntegrity)

	mux.HandleFunc("GET /api/actions/{type}/guide", s.handleActionGuide)

	mux.HandleFunc("GET /api/users/{id}/journal", s.handleUserJournal)
	mux.HandleFunc("GET /api/users/{id}/sessions", s.handleUserSessions)
	mux.HandleFunc("GET /api/users/{id}/analytics", s.handleUserAnalytics)

	if s.realtime != nil {
		mux.Handle("GET /ws", s.realtime)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return chainMiddlewares(mux,
		withCORS(s.corsOrigin),
		withMetrics(s.metrics),
		withLogging,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string                 `json:"session_id"`
	Messages  []domain.AvatarMessage `json:"messages"`
	Progress  spark.Progress         `json:"progress"`
}

type getSessionResponse struct {
	Session  *domain.Session `json:"session"`
	Progress spark.Progress  `json:"progress"`
}

type submitInputResponse struct {
	Messages     []domain.AvatarMessage `json:"messages"`
	Progress     spark.Progress         `json:"progress"`
	Transitioned bool                   `json:"transitioned"`
	Completed    bool                   `json:"completed"`
}

type reflectRequest struct {
	Message string `json:"message"`
}

type reflectResponse struct {
	Reply string `json:"reply"`
}

type healthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ActiveSessions int       `json:"active_sessions"`
}

type journalResponse struct {
	Entries []*domain.JournalEntry `json:"entries"`
}

type sessionsResponse struct {
	Sessions []*domain.Session `json:"sessions"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Timestamp:      s.now().UTC(),
		ActiveSessions: s.svc.ActiveSessionCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		badRequest(w, "user_id is required", "")
		return
	}

	out, err := s.svc.CreateSession(r.Context(), conversation.CreateSessionInput{
		OwnerID: domain.UserID(req.UserID),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: string(out.SessionID),
		Messages:  out.Messages,
		Progress:  out.Progress,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	out, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		Session:  out.Session,
		Progress: out.Progress,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	if err := s.svc.EndSession(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	var in domain.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid JSON body", err.Error())
		return
	}
	if in.Type == "" {
		badRequest(w, "type is required", "")
		return
	}

	out, err := s.svc.SubmitInput(r.Context(), conversation.SubmitInputInput{
		SessionID: id,
		Input:     in,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitInputResponse{
		Messages:     out.Messages,
		Progress:     out.Progress,
		Transitioned: out.Transitioned,
		Completed:    out.Completed,
	})
}

func (s *Server) handleReflect(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	var req reflectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required", "")
		return
	}

	out, err := s.svc.Reflect(r.Context(), conversation.ReflectInput{
		SessionID: id,
		Message:   req.Message,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reflectResponse{Reply: out.Reply})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	report, err := s.svc.Validate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleActionGuide(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, conversation.ActionGuide(r.PathValue("type")))
}

func (s *Server) handleUserJournal(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.PathValue("id"))

	entries, err := s.journal.GetUserJournal(r.Context(), userID, limitParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journalResponse{Entries: entries})
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.PathValue("id"))

	sessions, err := s.svc.ListSessionsByUser(r.Context(), userID, limitParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (s *Server) handleUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.PathValue("id"))

	out, err := s.svc.UserAnalytics(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Details: details})
}

func badRequest(w http.ResponseWriter, msg, details string) {
	writeError(w, http.StatusBadRequest, "invalid_request", msg, details)
}

// writeServiceError maps service errors onto status codes. Unknown errors
// are logged and reported without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Session not found", "")
	case errors.Is(err, spark.ErrNoActiveHandler):
		writeError(w, http.StatusConflict, "no_active_handler", "Session is already completed", "")
	case errors.Is(err, conversation.ErrMissingOwner):
		badRequest(w, "user_id is required", "")
	case errors.Is(err, conversation.ErrCoachUnavailable):
		writeError(w, http.StatusBadGateway, "coach_unavailable", "Coach is unavailable", err.Error())
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
	}
}
