package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepilot/internal/access"
	"sitepilot/internal/events"
	"sitepilot/internal/tasks"
)

// echoDispatcher reports every dispatched edit back through the bus, the way a worker does.
type echoDispatcher struct {
	bus *events.EventBus
	err error

	mu       sync.Mutex
	payloads []tasks.ApplyEditPayload
}

func (d *echoDispatcher) DispatchApplyEdit(_ context.Context, p tasks.ApplyEditPayload) error {
	d.mu.Lock()
	d.payloads = append(d.payloads, p)
	d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.bus.Emit(events.EditResult, events.EditResultPayload{Room: p.Room, EditID: p.EditID, Success: true, Message: "Edit applied"})
	return nil
}

func newTestHub(t *testing.T, dispatchErr error) (*Hub, *echoDispatcher, string) {
	t.Helper()
	bus := events.NewEventBus()
	d := &echoDispatcher{bus: bus, err: dispatchErr}
	hub := NewHub(d, []string{"*"})
	hub.Subscribe(bus)

	principal := access.NewPrincipal("u-1", "editor", "desktop")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, principal)
	}))
	t.Cleanup(srv.Close)
	return hub, d, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func receive(t *testing.T, conn *gorilla.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestEditResultReachesSessionRoom(t *testing.T) {
	_, d, url := newTestHub(t, nil)
	editor := dial(t, url)
	watcher := dial(t, url)

	for _, conn := range []*gorilla.Conn{watcher, editor} {
		send(t, conn, EventJoinSession, "session-1")
		assert.Equal(t, EventJoined, receive(t, conn).Event)
	}
	send(t, editor, EventEdit, EditRequest{
		EditID:       "edit-1",
		SessionID:    "session-1",
		DiscussionID: "d-1",
		PageID:       "page-1",
		Content:      "hello",
	})

	for _, conn := range []*gorilla.Conn{editor, watcher} {
		env := receive(t, conn)
		assert.Equal(t, EventEditResult, env.Event)
		var result events.EditResultPayload
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.True(t, result.Success)
		assert.Equal(t, "edit-1", result.EditID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.payloads, 1)
	assert.Equal(t, "u-1", d.payloads[0].UserID)
	assert.Equal(t, "desktop", d.payloads[0].ClientType)
	assert.Equal(t, "session-1", d.payloads[0].Room)
}

func TestEditWithoutSessionGoesToPrivateRoom(t *testing.T) {
	_, d, url := newTestHub(t, nil)
	conn := dial(t, url)

	send(t, conn, EventEdit, EditRequest{DiscussionID: "d-1", PageID: "p", Content: "c"})

	env := receive(t, conn)
	assert.Equal(t, EventEditResult, env.Event)

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.payloads, 1)
	assert.NotEmpty(t, d.payloads[0].EditID)
	assert.NotEqual(t, "", d.payloads[0].Room)
}

func TestDispatchFailureIsReported(t *testing.T) {
	_, _, url := newTestHub(t, errors.New("queue down"))
	conn := dial(t, url)

	send(t, conn, EventEdit, EditRequest{EditID: "edit-2", DiscussionID: "d-1", PageID: "p", Content: "c"})

	env := receive(t, conn)
	var result events.EditResultPayload
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "edit-2", result.EditID)
}

func TestUnknownAndMalformedFrames(t *testing.T) {
	_, _, url := newTestHub(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("not json")))
	assert.Equal(t, EventError, receive(t, conn).Event)

	send(t, conn, "dance", nil)
	assert.Equal(t, EventError, receive(t, conn).Event)

	send(t, conn, EventJoinSession, "")
	assert.Equal(t, EventError, receive(t, conn).Event)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
