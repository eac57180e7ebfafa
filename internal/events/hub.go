// Package events streams settled flash-loan records to websocket
// subscribers.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/logger"
)

const writeTimeout = 10 * time.Second

// Hub fans loan events out to connected websocket clients. A slow or
// dead client is dropped rather than allowed to back up the publisher.
type Hub struct {
	mu       sync.Mutex
	subs     map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type loanEvent struct {
	Type string           `json:"type"`
	Loan model.LoanRecord `json:"loan"`
}

// PublishLoan broadcasts a settled loan to every subscriber.
func (h *Hub) PublishLoan(rec model.LoanRecord) {
	raw, err := json.Marshal(loanEvent{Type: "flash_loan", Loan: rec})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			logger.Debug("dropping websocket subscriber", "error", err)
			conn.Close()
			delete(h.subs, conn)
		}
	}
}

// ServeHTTP upgrades the request and registers the connection. The
// read loop exists only to detect disconnects; inbound messages are
// ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.subs[conn] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.subs, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SubscriberCount reports the number of live connections.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs {
		conn.Close()
		delete(h.subs, conn)
	}
}
