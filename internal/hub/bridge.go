package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jstrand/tradelink/internal/bus"
	"github.com/jstrand/tradelink/internal/model"
)

// bridgeBuffer is the per-topic subscriber queue capacity.
const bridgeBuffer = 1024

// Bridge consumes domain events from the internal bus and re-publishes
// them to the matching rooms. It is a bus consumer only.
type Bridge struct {
	bus    *bus.Bus
	hub    *Hub
	logger *slog.Logger
}

// NewBridge wires the bus to the hub.
func NewBridge(b *bus.Bus, h *Hub, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{bus: b, hub: h, logger: logger}
}

// Run consumes the fixed bridge topics until the context is cancelled or
// the bus closes. Malformed payloads are logged and dropped; the bridge
// never crashes on event content.
func (br *Bridge) Run(ctx context.Context) {
	marketData, cancelMD := br.bus.Subscribe(model.TopicMarketData, bridgeBuffer)
	trades, cancelTR := br.bus.Subscribe(model.TopicTradeUpdates, bridgeBuffer)
	alerts, cancelAL := br.bus.Subscribe(model.TopicSystemAlerts, bridgeBuffer)
	notifications, cancelNO := br.bus.Subscribe(model.TopicUserNotifications, bridgeBuffer)
	defer cancelMD()
	defer cancelTR()
	defer cancelAL()
	defer cancelNO()

	br.logger.Info("bus bridge started")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-marketData:
			if !ok {
				return
			}
			br.route(ev)
		case ev, ok := <-trades:
			if !ok {
				return
			}
			br.route(ev)
		case ev, ok := <-alerts:
			if !ok {
				return
			}
			br.route(ev)
		case ev, ok := <-notifications:
			if !ok {
				return
			}
			br.route(ev)
		}
	}
}

// route republishes one event to its room, suffixing the room name with the
// payload's routing key where the topic calls for one.
func (br *Bridge) route(ev model.DomainEvent) {
	msg := eventMessage{
		Type:      string(ev.Topic),
		Data:      ev.Payload,
		Timestamp: ev.Timestamp,
	}

	switch ev.Topic {
	case model.TopicMarketData:
		var key struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(ev.Payload, &key); err != nil || key.Symbol == "" {
			br.logger.Warn("dropping malformed market_data event", "error", err)
			return
		}
		br.hub.SendToRoom(model.MarketDataRoom(key.Symbol), msg)

	case model.TopicTradeUpdates:
		br.hub.SendToRoom(model.RoomTradeUpdates, msg)

	case model.TopicSystemAlerts:
		br.hub.SendToRoom(model.RoomSystemAlerts, msg)

	case model.TopicUserNotifications:
		var key struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Payload, &key); err != nil || key.UserID == "" {
			br.logger.Warn("dropping malformed user_notifications event", "error", err)
			return
		}
		br.hub.SendToUser(key.UserID, msg)

	default:
		br.logger.Debug("skipping event topic", "topic", ev.Topic)
	}
}
