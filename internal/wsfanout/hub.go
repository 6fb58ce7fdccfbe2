// Package wsfanout is the per-connection WebSocket broadcast hub: each
// connection tracks its own resolved access scope and subscription set,
// and a dedicated writer goroutine per connection serializes outbound
// frames (gorilla/websocket forbids concurrent writes on one connection).
package wsfanout

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
	// closeAuthRequired is the non-standard close code used when the
	// upgrade cookie is missing or the session has expired.
	closeAuthRequired = 4001
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS policy enforced at the HTTP layer
}

// clientMessage is a subscribe/unsubscribe/ping frame sent by the
// browser on an open connection.
type clientMessage struct {
	Action string `json:"action"`
	ChatID *int64 `json:"chat_id,omitempty"`
}

// Envelope is the outbound event shape, shared with the change-event
// payload format.
type Envelope struct {
	Type      string `json:"type"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id,omitempty"`
	NewText   string `json:"new_text,omitempty"`
	EditDate  string `json:"edit_date,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type conn struct {
	ws    *websocket.Conn
	send  chan []byte
	scope *[]int64 // nil = unrestricted

	mu   sync.Mutex
	subs map[int64]struct{}
}

func (c *conn) visible(chatID int64) bool {
	if c.scope != nil {
		found := false
		for _, id := range *c.scope {
			if id == chatID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true // empty subscription set means "all visible"
	}
	_, ok := c.subs[chatID]
	return ok
}

// Hub tracks every live connection and fans out broadcasts to the ones
// whose scope and subscriptions permit the event.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*conn]struct{})}
}

// Upgrade promotes an HTTP request to a WebSocket connection for a caller
// already resolved to scope (nil = unrestricted), and runs its read/write
// pumps until the connection closes. Call this from the /ws/updates
// handler after cookie/session resolution; pass nil scope handling to the
// caller (closeAuthRequired is written by the caller before ever reaching
// here if auth failed).
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, scope *[]int64) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &conn{
		ws:    ws,
		send:  make(chan []byte, sendBufferSize),
		scope: scope,
		subs:  make(map[int64]struct{}),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c) // blocks until the connection closes

	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	close(c.send)
}

// CloseUnauthenticated upgrades then immediately closes with 4001, used
// when the caller has no valid session at handshake time.
func (h *Hub) CloseUnauthenticated(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(closeAuthRequired, "authentication required")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}

func (h *Hub) readPump(c *conn) {
	defer c.ws.Close()
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			if msg.ChatID == nil {
				continue
			}
			if c.scope == nil || contains(*c.scope, *msg.ChatID) {
				c.mu.Lock()
				c.subs[*msg.ChatID] = struct{}{}
				c.mu.Unlock()
			}
		case "unsubscribe":
			if msg.ChatID == nil {
				continue
			}
			c.mu.Lock()
			delete(c.subs, *msg.ChatID)
			c.mu.Unlock()
		case "ping":
			if b, err := json.Marshal(map[string]string{"type": "pong"}); err == nil {
				select {
				case c.send <- b:
				default:
				}
			}
		}
	}
}

func (h *Hub) writePump(c *conn) {
	defer c.ws.Close()
	for raw := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

func contains(s []int64, id int64) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (h *Hub) broadcast(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal websocket envelope")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if !c.visible(env.ChatID) {
			continue
		}
		select {
		case c.send <- raw:
		default:
			// A full channel means the client isn't draining fast enough;
			// skip it rather than stall every other connection's fan-out,
			// and tear it down asynchronously so it stops holding a slot.
			go func(c *conn) { c.ws.Close() }(c)
		}
	}
}

// BroadcastNewMessage implements realtime.Sink.
func (h *Hub) BroadcastNewMessage(chatID int64, data map[string]any) {
	h.broadcast(Envelope{Type: "new_message", ChatID: chatID, Data: data})
}

// BroadcastEdit implements realtime.Sink.
func (h *Hub) BroadcastEdit(chatID, messageID int64, newText string, editDate time.Time) {
	h.broadcast(Envelope{
		Type:      "edit",
		ChatID:    chatID,
		MessageID: messageID,
		NewText:   newText,
		EditDate:  editDate.UTC().Format(time.RFC3339),
	})
}

// BroadcastDelete implements realtime.Sink.
func (h *Hub) BroadcastDelete(chatID, messageID int64) {
	h.broadcast(Envelope{Type: "delete", ChatID: chatID, MessageID: messageID})
}

// ConnectionCount reports the number of live connections (ops/metrics use).
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
