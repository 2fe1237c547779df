// Package hub fans table and session events out to every connected viewer.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/billiard-hall/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 32
)

// Hub holds the venue-wide viewer channel. It is created once at startup and
// handed to whatever needs to publish.
type Hub struct {
	clients  map[*client]struct{}
	mutex    sync.RWMutex
	upgrader websocket.Upgrader

	sendBuffer int

	// Snapshot, when set, produces the events a viewer receives right after
	// connecting so its display starts from current state.
	Snapshot func(ctx context.Context) ([]Event, error)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func New() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sendBuffer: defaultSendBuffer,
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Publish queues each event for every viewer. A viewer whose queue is full
// misses the event; the next snapshot supersedes it.
func (h *Hub) Publish(events ...Event) {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			utils.ErrorLogger.Errorf("hub: marshal %s: %v", ev.Event, err)
			continue
		}

		h.mutex.RLock()
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				utils.ErrorLogger.Warnf("hub: viewer %s is slow, dropped %s", c.id, ev.Event)
			}
		}
		h.mutex.RUnlock()
	}
}

// ServeWS upgrades the request and keeps the viewer registered until it
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("hub: upgrade failed: %v", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}
	// Registered before the snapshot is read, so a transition committing in
	// between is queued behind the snapshot instead of being lost.
	h.register(c)
	snapshot := h.snapshot(r.Context(), c)

	go h.writeLoop(c, snapshot)
	h.readLoop(c)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c] = struct{}{}
	utils.InfoLogger.Debugf("hub: viewer %s connected (%d total)", c.id, len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	utils.InfoLogger.Debugf("hub: viewer %s disconnected (%d left)", c.id, len(h.clients))
}

// snapshot encodes the connect-time events of c. They are written straight to
// the connection by writeLoop, so their number is not bounded by sendBuffer.
func (h *Hub) snapshot(ctx context.Context, c *client) [][]byte {
	if h.Snapshot == nil {
		return nil
	}
	events, err := h.Snapshot(ctx)
	if err != nil {
		utils.ErrorLogger.Warnf("hub: snapshot for viewer %s: %v", c.id, err)
		return nil
	}
	out := make([][]byte, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			utils.ErrorLogger.Errorf("hub: marshal snapshot %s for viewer %s: %v", ev.Event, c.id, err)
			continue
		}
		out = append(out, data)
	}
	return out
}

type inbound struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}
		// Every viewer already listens on the single venue channel; join
		// is accepted for clients that still announce themselves.
		if in.Type == "join" {
			utils.InfoLogger.Debugf("hub: viewer %s joined %q", c.id, in.Channel)
		}
	}
}

func (h *Hub) writeLoop(c *client, snapshot [][]byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for i, data := range snapshot {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Warnf("hub: snapshot to viewer %s stopped at %d of %d: %v", c.id, i, len(snapshot), err)
			return
		}
	}

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				utils.ErrorLogger.Warnf("hub: write to viewer %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
