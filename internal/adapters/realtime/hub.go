package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/PabloGalante/spark-agent/internal/app/conversation"
	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
	"github.com/PabloGalante/spark-agent/internal/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 32
)

// Hub serves the websocket channel. Sockets that join a session receive
// every update published for it.
type Hub struct {
	svc      *conversation.Service
	upgrader websocket.Upgrader
}

// NewHub accepts upgrades from allowedOrigin, or from anywhere when it is "*" or empty.
func NewHub(svc *conversation.Service, allowedOrigin string) *Hub {
	return &Hub{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan outFrame, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[domain.SessionID]struct{}),
	}
	c.log = observability.LoggerFromContext(r.Context()).With("socket_id", c.id)
	c.log.Info("client connected")

	go c.writePump()
	c.readPump()
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan outFrame
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	rooms map[domain.SessionID]struct{}
}

func (c *client) readPump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
		c.log.Info("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.emitError("Malformed message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.dispatch(f)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Warn("websocket write failed", "event", f.Event, "error", err)
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *client) emit(event string, data any) {
	select {
	case c.send <- outFrame{Event: event, Data: data}:
	case <-c.ctx.Done():
	}
}

func (c *client) emitError(msg string) {
	c.emit(EventError, errorData{Message: msg})
}

func (c *client) dispatch(f Frame) {
	ctx := observability.WithRequestID(c.ctx, uuid.NewString())

	switch f.Event {
	case EventJoinSession:
		var d joinSessionData
		if !c.decode(f, &d) {
			return
		}
		c.joinSession(ctx, d.SessionID)

	case EventUserInput:
		var d userInputData
		if !c.decode(f, &d) {
			return
		}
		c.submit(ctx, d.SessionID, d.Input)

	case EventActionComplete:
		var d joinSessionData
		if !c.decode(f, &d) {
			return
		}
		c.submit(ctx, d.SessionID, domain.UserInput{
			Type:  domain.InputActionComplete,
			Value: true,
		})

	case EventStartAction:
		var d startActionData
		if !c.decode(f, &d) {
			return
		}
		c.emit(EventActionGuide, conversation.ActionGuide(d.ActionType))

	default:
		c.emitError("Unknown event: " + f.Event)
	}
}

func (c *client) decode(f Frame, v any) bool {
	if len(f.Data) == 0 {
		c.emitError("Missing data for " + f.Event)
		return false
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		c.emitError("Invalid data for " + f.Event)
		return false
	}
	return true
}

func (c *client) joinSession(ctx context.Context, id domain.SessionID) {
	out, err := c.hub.svc.GetSession(ctx, id)
	if err != nil {
		c.emitError(errorMessage(err))
		return
	}

	c.mu.Lock()
	_, already := c.rooms[id]
	c.rooms[id] = struct{}{}
	c.mu.Unlock()

	if !already {
		updates := c.hub.svc.Updates().Subscribe(c.ctx, string(id))
		go c.forward(updates)
	}

	c.emit(EventSessionJoined, sessionJoinedData{
		Session:  out.Session,
		Progress: out.Progress,
	})
	c.log.Info("joined session", "session_id", id)
}

func (c *client) joined(id domain.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[id]
	return ok
}

// forward relays room updates until the socket goes away.
func (c *client) forward(updates <-chan pubsub.Event[conversation.Update]) {
	for ev := range updates {
		switch ev.Type {
		case pubsub.UpdatedEvent, pubsub.CompletedEvent:
			c.emitUpdate(ev.Payload)
		}
	}
}

func (c *client) submit(ctx context.Context, id domain.SessionID, in domain.UserInput) {
	out, err := c.hub.svc.SubmitInput(ctx, conversation.SubmitInputInput{
		SessionID: id,
		Input:     in,
	})
	if err != nil {
		c.emitError(errorMessage(err))
		return
	}

	// room members get the update through the feed
	if c.joined(id) {
		return
	}
	c.emitUpdate(conversation.Update{
		SessionID:    id,
		Session:      out.Session,
		Messages:     out.Messages,
		Progress:     out.Progress,
		Transitioned: out.Transitioned,
		Completed:    out.Completed,
		Events:       out.Events,
	})
}

func (c *client) emitUpdate(u conversation.Update) {
	c.emit(EventSessionUpdate, sessionUpdateData{
		Messages:     u.Messages,
		Progress:     u.Progress,
		Transitioned: u.Transitioned,
		Completed:    u.Completed,
	})
	if u.Completed {
		c.emit(EventSessionCompleted, sessionCompletedData{
			Session: u.Session,
			Events:  u.Events,
		})
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, spark.ErrNoActiveHandler):
		return "Session is already completed"
	default:
		return "Failed to process input"
	}
}
