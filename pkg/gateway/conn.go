package gateway

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/zetyquickly/self-aware/pkg/protocol"
)

// Conn is one client WebSocket connection bound to a session.
type Conn struct {
	SessionID string
	Connected time.Time

	ws *websocket.Conn
	mu sync.Mutex
}

// Send writes a message to the client. The mutex serializes writes from
// the read loop, the orchestrator goroutine, and the synthesis queue.
func (c *Conn) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// registry maps session ids to live connections. It implements the
// orchestrator's event sink: sends to departed sessions are dropped.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*Conn)}
}

func (r *registry) add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.SessionID] = c
}

func (r *registry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sessionID)
}

func (r *registry) get(sessionID string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[sessionID]
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send delivers a message to the session's connection, dropping it
// silently when the session has disconnected.
func (r *registry) Send(sessionID string, msg *protocol.Message) error {
	c := r.get(sessionID)
	if c == nil {
		return nil
	}
	return c.Send(msg)
}
