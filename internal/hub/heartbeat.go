package hub

import (
	"context"
	"time"
)

// RunHeartbeat sweeps dead clients and broadcasts liveness until the
// context is cancelled. Any connection whose last heartbeat is older than
// the timeout is force-disconnected; survivors then receive a heartbeat
// broadcast carrying current connection statistics.
func (h *Hub) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	cutoff := time.Now().Add(-h.cfg.HeartbeatTimeout)

	h.mu.RLock()
	var stale []string
	for id, c := range h.clients {
		if c.lastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.Info("heartbeat timeout, disconnecting client", "conn_id", id)
		h.Disconnect(id)
	}

	h.Broadcast(heartbeatBroadcast{
		Type:      "heartbeat",
		Timestamp: time.Now(),
		Stats:     h.Stats(),
	}, "")
}
