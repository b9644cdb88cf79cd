package hub

import (
	"encoding/json"
	"time"

	"github.com/jstrand/tradelink/internal/model"
)

// Client request types.
const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgHeartbeat   = "heartbeat"
	msgGetStats    = "get_stats"
)

// inboundMessage is the client wire request envelope.
type inboundMessage struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
}

// ackMessage is a subscribe/unsubscribe acknowledgment.
type ackMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// heartbeatAck answers a client heartbeat.
type heartbeatAck struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// statsMessage answers get_stats.
type statsMessage struct {
	Type string `json:"type"`
	Stats
}

// errorMessage reports a protocol error without dropping the connection.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// heartbeatBroadcast is the periodic liveness broadcast to survivors.
type heartbeatBroadcast struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Stats     Stats     `json:"stats"`
}

// eventMessage carries a bridged domain event to clients.
type eventMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandleMessage processes one inbound client frame and writes the response.
// Protocol violations are answered with an error message; they never drop
// the connection. A failed response write prunes the connection like any
// other dead socket.
func (h *Hub) HandleMessage(connID string, data []byte) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(c, errorMessage{Type: "error", Message: "invalid message"})
		return
	}

	switch msg.Type {
	case msgSubscribe:
		if msg.Room == "" {
			h.reply(c, errorMessage{Type: "error", Message: "subscribe requires a room"})
			return
		}
		if err := h.Subscribe(connID, model.Room(msg.Room)); err != nil {
			h.reply(c, errorMessage{Type: "error", Message: err.Error()})
			return
		}
		h.reply(c, ackMessage{Type: "subscription_success", Room: msg.Room})

	case msgUnsubscribe:
		if msg.Room == "" {
			h.reply(c, errorMessage{Type: "error", Message: "unsubscribe requires a room"})
			return
		}
		if err := h.Unsubscribe(connID, model.Room(msg.Room)); err != nil {
			h.reply(c, errorMessage{Type: "error", Message: err.Error()})
			return
		}
		h.reply(c, ackMessage{Type: "unsubscription_success", Room: msg.Room})

	case msgHeartbeat:
		h.Heartbeat(connID)
		h.reply(c, heartbeatAck{Type: "heartbeat_ack", Timestamp: time.Now()})

	case msgGetStats:
		h.reply(c, statsMessage{Type: "stats", Stats: h.Stats()})

	default:
		h.reply(c, errorMessage{Type: "error", Message: "unknown message type: " + msg.Type})
	}
}

func (h *Hub) reply(c *clientConn, v interface{}) {
	if err := c.write(v); err != nil {
		h.logger.Warn("reply write failed, pruning", "conn_id", c.id, "error", err)
		h.Disconnect(c.id)
	}
}
