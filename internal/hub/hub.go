package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jstrand/tradelink/internal/model"
)

var ErrUnknownConnection = errors.New("unknown client connection")

// Socket is the transport to one client. Implementations must tolerate
// concurrent Close; write serialization is the hub's job.
type Socket interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Config holds distribution layer settings.
type Config struct {
	// HeartbeatInterval is the sweep/broadcast period.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how stale a client's last heartbeat may be before
	// it is force-disconnected.
	HeartbeatTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  60 * time.Second,
	}
}

// Stats is a snapshot of the hub's live state.
type Stats struct {
	TotalConnections int                `json:"total_connections"`
	TotalUsers       int                `json:"total_users"`
	TotalRooms       int                `json:"total_rooms"`
	Rooms            map[model.Room]int `json:"rooms"`
}

// clientConn is one client socket and its room memberships.
type clientConn struct {
	id          string
	userID      string
	socket      Socket
	connectedAt time.Time

	// writeMu serializes socket writes.
	writeMu sync.Mutex

	// rooms and lastHeartbeat are guarded by the hub mutex.
	rooms         map[model.Room]struct{}
	lastHeartbeat time.Time
}

func (c *clientConn) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.socket.WriteJSON(v)
}

// Hub owns the connection, user, and room indices. They are mutated only
// here; readers go through Stats and the send operations.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*clientConn
	users   map[string]map[string]struct{}
	rooms   map[model.Room]map[string]struct{}
}

// New creates an empty hub.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*clientConn),
		users:   make(map[string]map[string]struct{}),
		rooms:   make(map[model.Room]map[string]struct{}),
	}
}

// Accept registers a new client connection and returns its id. One user may
// hold any number of simultaneous connections.
func (h *Hub) Accept(socket Socket, userID string) string {
	now := time.Now()
	c := &clientConn{
		id:            uuid.NewString(),
		userID:        userID,
		socket:        socket,
		connectedAt:   now,
		rooms:         make(map[model.Room]struct{}),
		lastHeartbeat: now,
	}

	h.mu.Lock()
	h.clients[c.id] = c
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]struct{})
	}
	h.users[userID][c.id] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("client connected", "conn_id", c.id, "user_id", userID)
	return c.id
}

// Subscribe adds the connection to a room, creating the room on its first
// member.
func (h *Hub) Subscribe(connID string, room model.Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	c.rooms[room] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from a room, deleting the room when
// its last member leaves.
func (h *Hub) Unsubscribe(connID string, room model.Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	return nil
}

// Disconnect removes the connection from the user index and every room it
// belonged to, closing its socket. Rooms left empty are deleted.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)

	if conns, ok := h.users[c.userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	}
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	c.socket.Close()
	h.logger.Debug("client disconnected", "conn_id", connID, "user_id", c.userID)
}

// Heartbeat refreshes the connection's liveness timestamp.
func (h *Hub) Heartbeat(connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	c.lastHeartbeat = time.Now()
	return nil
}

// SendToUser delivers to every live connection for the user. Write failures
// prune the dead connection; the return value counts successful sends only.
func (h *Hub) SendToUser(userID string, msg interface{}) int {
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.users[userID]))
	for connID := range h.users[userID] {
		if c, ok := h.clients[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, msg)
}

// SendToRoom delivers to every current member of the room with the same
// dead-connection pruning.
func (h *Hub) SendToRoom(room model.Room, msg interface{}) int {
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if c, ok := h.clients[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, msg)
}

// Broadcast delivers to every connection, optionally excluding one user.
func (h *Hub) Broadcast(msg interface{}, excludeUser string) int {
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.clients))
	for _, c := range h.clients {
		if excludeUser != "" && c.userID == excludeUser {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliver(targets, msg)
}

// Stats returns current connection statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make(map[model.Room]int, len(h.rooms))
	for room, members := range h.rooms {
		rooms[room] = len(members)
	}
	return Stats{
		TotalConnections: len(h.clients),
		TotalUsers:       len(h.users),
		TotalRooms:       len(h.rooms),
		Rooms:            rooms,
	}
}

// deliver writes to each target outside the hub lock and prunes any
// connection whose write fails.
func (h *Hub) deliver(targets []*clientConn, msg interface{}) int {
	sent := 0
	for _, c := range targets {
		if err := c.write(msg); err != nil {
			h.logger.Warn("client write failed, pruning",
				"conn_id", c.id,
				"user_id", c.userID,
				"error", err,
			)
			h.Disconnect(c.id)
			continue
		}
		sent++
	}
	return sent
}
