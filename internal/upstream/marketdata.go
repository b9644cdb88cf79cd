package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jstrand/tradelink/internal/bus"
	"github.com/jstrand/tradelink/internal/model"
)

// MarketDataConfig configures the market data feed link.
type MarketDataConfig struct {
	URL              string
	Symbols          []string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultMarketDataConfig returns sensible defaults.
func DefaultMarketDataConfig() MarketDataConfig {
	return MarketDataConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// MarketData is the WebSocket transport to the market data feed. Inbound
// frames are published onto the internal bus as market_data events.
type MarketData struct {
	cfg    MarketDataConfig
	bus    *bus.Bus
	logger *slog.Logger

	mu   sync.RWMutex
	ws   *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex
}

// NewMarketData creates the feed transport publishing into the given bus.
func NewMarketData(cfg MarketDataConfig, b *bus.Bus, logger *slog.Logger) *MarketData {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketData{
		cfg:    cfg,
		bus:    b,
		logger: logger.With("upstream", "market_data"),
	}
}

// Open dials the feed, subscribes the configured symbols, and starts the
// read loop.
func (m *MarketData) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.ws = ws
	m.done = done
	m.mu.Unlock()

	for _, symbol := range m.cfg.Symbols {
		if err := m.writeJSON(ws, map[string]string{"action": "subscribe", "symbol": symbol}); err != nil {
			ws.Close()
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}

	go m.readLoop(ws, done)

	m.logger.Debug("feed socket open", "url", m.cfg.URL, "symbols", len(m.cfg.Symbols))
	return nil
}

// Close stops the read loop and tears down the socket.
func (m *MarketData) Close() error {
	m.mu.Lock()
	ws := m.ws
	done := m.done
	m.ws = nil
	m.done = nil
	m.mu.Unlock()

	if done != nil {
		close(done)
	}
	if ws == nil {
		return nil
	}
	ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return ws.Close()
}

// Probe checks liveness with a ping control frame.
func (m *MarketData) Probe(ctx context.Context) error {
	m.mu.RLock()
	ws := m.ws
	m.mu.RUnlock()

	if ws == nil {
		return ErrNotOpen
	}
	deadline := time.Now().Add(m.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return ws.WriteControl(websocket.PingMessage, []byte("probe"), deadline)
}

// readLoop publishes inbound frames to the bus until the socket dies or the
// transport is closed. Frames that are not JSON objects are dropped.
func (m *MarketData) readLoop(ws *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				m.logger.Warn("feed read failed", "error", err)
			}
			return
		}

		if !json.Valid(data) {
			m.logger.Warn("dropping malformed feed frame")
			continue
		}

		if err := m.bus.Publish(model.NewEvent(model.TopicMarketData, data)); err != nil {
			m.logger.Warn("feed publish failed", "error", err)
			return
		}
	}
}

func (m *MarketData) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}
