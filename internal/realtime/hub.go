// Package realtime runs the websocket channel that carries page edit intents
// and their results between browsers and the edit workers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"sitepilot/internal/access"
	"sitepilot/internal/events"
	"sitepilot/internal/metrics"
	"sitepilot/internal/tasks"
	console "sitepilot/internal/utils/logger"
)

const (
	EventJoinSession = "join-session"
	EventJoined      = "session-joined"
	EventEdit        = "webflow-edit"
	EventEditResult  = "edit-result"
	EventError       = "error"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 32
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EditRequest is the data of a webflow-edit frame.
type EditRequest struct {
	EditID          string  `json:"editId"`
	SessionID       string  `json:"sessionId"`
	DiscussionID    string  `json:"discussionId"`
	PageID          string  `json:"pageId"`
	Content         string  `json:"content"`
	Description     string  `json:"description"`
	Element         string  `json:"element"`
	PreviousContent *string `json:"previousContent"`
}

// Hub tracks connected clients and the session rooms they joined.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*client]struct{}
	dispatcher tasks.Dispatcher
	upgrader   gorilla.Upgrader
	log        *console.Logger
}

func NewHub(dispatcher tasks.Dispatcher, origins []string) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*client]struct{}),
		dispatcher: dispatcher,
		log:        console.New("REALTIME"),
	}
	h.upgrader = gorilla.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Subscribe forwards edit results published on bus to their rooms.
func (h *Hub) Subscribe(bus *events.EventBus) {
	bus.On(events.EditResult, func(data interface{}) {
		result, ok := data.(events.EditResultPayload)
		if !ok {
			return
		}
		h.Broadcast(result.Room, EventEditResult, result)
	})
}

// Serve upgrades the request and runs the connection for principal p until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, p access.Principal) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		id:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		principal: p,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	h.join(c, c.id)
	metrics.SocketConnections.Inc()
	h.log.Debug("Client %s connected for user %s", c.id, p.ID)

	go c.writePump()
	c.readPump()
	return nil
}

// Broadcast sends an event to every client in room. Clients that cannot keep
// up are disconnected.
func (h *Hub) Broadcast(room, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		_ = h.log.Error("Failed to encode %s frame", err, event)
		return
	}

	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.deliver(frame) {
			h.log.Warn("Dropping slow client %s", c.id)
			c.close()
		}
	}
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms = append(c.rooms, room)
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

// handle processes one inbound frame.
func (h *Hub) handle(c *client, env Envelope) {
	switch env.Event {
	case EventJoinSession:
		var session string
		if err := json.Unmarshal(env.Data, &session); err != nil || strings.TrimSpace(session) == "" {
			c.sendEvent(EventError, map[string]string{"message": "join-session needs a session id"})
			return
		}
		h.join(c, session)
		c.sendEvent(EventJoined, map[string]string{"sessionId": session})
		h.log.Debug("Client %s joined session %s", c.id, session)

	case EventEdit:
		var req EditRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendEvent(EventError, map[string]string{"message": "invalid edit request"})
			return
		}
		h.dispatchEdit(c, req)

	default:
		c.sendEvent(EventError, map[string]string{"message": "unknown event " + env.Event})
	}
}

func (h *Hub) dispatchEdit(c *client, req EditRequest) {
	if req.EditID == "" {
		req.EditID = uuid.NewString()
	}
	room := req.SessionID
	if room == "" || !c.inRoom(room) {
		room = c.id
	}

	payload := tasks.ApplyEditPayload{
		EditID:          req.EditID,
		Room:            room,
		UserID:          c.principal.ID,
		Role:            c.principal.Role,
		ClientType:      c.principal.ClientType,
		DiscussionID:    req.DiscussionID,
		PageID:          req.PageID,
		Content:         req.Content,
		Description:     req.Description,
		Element:         req.Element,
		PreviousContent: req.PreviousContent,
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := h.dispatcher.DispatchApplyEdit(ctx, payload); err != nil {
		h.log.Warn("Failed to dispatch edit %s: %v", req.EditID, err)
		c.sendEvent(EventEditResult, events.EditResultPayload{
			Room:    room,
			EditID:  req.EditID,
			Success: false,
			Message: "Edit could not be queued",
		})
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
