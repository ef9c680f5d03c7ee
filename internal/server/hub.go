package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/session"
)

// Hub fans session snapshots out to websocket subscribers. A client
// subscribes to a single session id and receives every state change as a
// JSON snapshot until it disconnects or the session is destroyed.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*subscriber]struct{} // session id -> conns
	logger  logger.Logger
}

// subscriber serializes writes to one connection. Two stage requests for the
// same session can complete concurrently, and gorilla/websocket allows only
// one writer at a time.
type subscriber struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (s *subscriber) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*subscriber]struct{}),
		logger:  log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect from the configured origins. The HTTP layer
	// already applies CORS, the upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscribe upgrades the request and registers the connection for the given
// session. It blocks until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{conn: conn}
	h.add(sessionID, sub)
	defer h.remove(sessionID, sub)

	// Reads are discarded. The read loop only exists to detect disconnects
	// and to service control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Broadcast pushes a snapshot to every subscriber of its session. Slow or
// broken connections are dropped rather than blocking the pipeline.
func (h *Hub) Broadcast(snap session.Snapshot) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients[snap.ID]))
	for s := range h.clients[snap.ID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.writeJSON(snap); err != nil {
			h.logger.Debug(context.Background(), "Dropping websocket subscriber for session %s: %v", snap.ID, err)
			s.conn.Close()
			h.remove(snap.ID, s)
		}
	}
}

// CloseSession disconnects every subscriber of a destroyed session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for s := range subs {
		s.conn.Close()
	}
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*subscriber]struct{})
	}
	h.clients[sessionID][sub] = struct{}{}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.clients, sessionID)
		}
	}
}
