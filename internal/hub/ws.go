package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteTimeout is the per-frame write deadline for client sockets.
const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin; auth is handled upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSocket adapts a gorilla connection to the hub Socket interface.
type wsSocket struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (s *wsSocket) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.ws.Close()
}

// Handler returns the WebSocket accept endpoint. The user is identified by
// the user_id query parameter; real deployments authenticate upstream and
// inject it.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		sock := &wsSocket{ws: ws}
		connID := h.Accept(sock, userID)

		go h.readLoop(connID, ws)
	})
}

// readLoop feeds inbound frames to the protocol handler until the socket
// dies, then removes the connection.
func (h *Hub) readLoop(connID string, ws *websocket.Conn) {
	defer h.Disconnect(connID)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.HandleMessage(connID, data)
	}
}
