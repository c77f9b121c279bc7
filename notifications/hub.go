package notifications

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// Hub tracks connected users (userId -> *websocket.Conn) for live pushes.
type Hub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// HandleWebSocket upgrades the request and registers the connection under the
// caller's userId until it disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		conn.Close()
		return
	}

	h.mutex.Lock()
	h.clients[userID] = conn
	h.mutex.Unlock()
	zap.S().Infow("user connected to notifications socket", "userId", userID)

	conn.SetCloseHandler(func(code int, text string) error {
		h.mutex.Lock()
		delete(h.clients, userID)
		h.mutex.Unlock()
		zap.S().Infow("user disconnected from notifications socket", "userId", userID)
		return nil
	})

	// keep the connection alive; clients only receive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// Push writes a payload to the user's socket. Returns false when the user has
// no live connection or the write failed. The hub mutex is held across the
// write; gorilla connections allow only one concurrent writer, and Push can
// race itself (request-path dispatch vs cron redelivery) and Broadcast.
func (h *Hub) Push(userID string, event string, data interface{}) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conn, exists := h.clients[userID]
	if !exists {
		return false
	}
	err := conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		zap.S().Errorw("error pushing to user socket", "userId", userID, "error", err)
		delete(h.clients, userID)
		conn.Close()
		return false
	}
	return true
}

// Broadcast writes a payload to every connected user.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conn := range h.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			zap.S().Errorw("error broadcasting to user socket", "userId", userID, "error", err)
			delete(h.clients, userID)
			conn.Close()
		}
	}
}
