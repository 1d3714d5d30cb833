package realtime

import (
	"encoding/json"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"sitepilot/internal/access"
	"sitepilot/internal/metrics"
)

type client struct {
	id        string
	hub       *Hub
	conn      *gorilla.Conn
	principal access.Principal
	rooms     []string // guarded by hub.mu

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) inRoom(room string) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	_, ok := c.hub.rooms[room][c]
	return ok
}

// deliver queues a frame without blocking. It reports false when the buffer is full.
func (c *client) deliver(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) sendEvent(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		return
	}
	c.deliver(frame)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.leave(c)
		metrics.SocketConnections.Dec()
		c.hub.log.Debug("Client %s disconnected", c.id)
	})
}

func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseNormalClosure) {
				c.hub.log.Warn("Client %s read error: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendEvent(EventError, map[string]string{"message": "frames must be JSON envelopes"})
			continue
		}
		c.hub.handle(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorilla.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(gorilla.CloseMessage,
				gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
