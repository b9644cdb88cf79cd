package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jstrand/tradelink/internal/conn"
)

var (
	ErrNotOpen     = errors.New("upstream not open")
	ErrSymbolQuota = errors.New("symbol subscription quota exceeded")
)

// BrokerConfig configures the execution venue link.
type BrokerConfig struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// OrderRateLimit is the minimum delay between order-placement calls on
	// this connection.
	OrderRateLimit time.Duration

	// MaxSymbolSubscriptions is the venue's subscription quota. Independent
	// of the resilience layer's reconnect attempt budget.
	MaxSymbolSubscriptions int
}

// DefaultBrokerConfig returns sensible defaults.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		HandshakeTimeout:       10 * time.Second,
		WriteTimeout:           5 * time.Second,
		OrderRateLimit:         time.Second,
		MaxSymbolSubscriptions: 50,
	}
}

// brokerCommand is the venue wire command envelope.
type brokerCommand struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params,omitempty"`
}

// OrderRequest is a venue order placement.
type OrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // "buy" or "sell"
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

// Broker is the WebSocket transport to the execution venue.
type Broker struct {
	cfg    BrokerConfig
	logger *slog.Logger
	gate   *conn.Gate
	cmdID  int64

	mu      sync.RWMutex
	ws      *websocket.Conn
	symbols map[string]struct{}

	writeMu sync.Mutex
}

// NewBroker creates the broker transport. The order gate lives for the life
// of the transport so the rate limit survives reconnects.
func NewBroker(cfg BrokerConfig, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		cfg:     cfg,
		logger:  logger.With("upstream", "broker"),
		gate:    conn.NewGate(cfg.OrderRateLimit),
		symbols: make(map[string]struct{}),
	}
}

// Open dials the venue WebSocket.
func (b *Broker) Open(ctx context.Context) error {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if b.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	b.mu.Lock()
	b.ws = ws
	b.mu.Unlock()

	b.logger.Debug("broker socket open", "url", b.cfg.URL)
	return nil
}

// Close tears down the socket. Safe when not open.
func (b *Broker) Close() error {
	b.mu.Lock()
	ws := b.ws
	b.ws = nil
	b.mu.Unlock()

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
func (b *Broker) Probe(ctx context.Context) error {
	b.mu.RLock()
	ws := b.ws
	b.mu.RUnlock()

	if ws == nil {
		return ErrNotOpen
	}
	deadline := time.Now().Add(b.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return ws.WriteControl(websocket.PingMessage, []byte("probe"), deadline)
}

// PlaceOrder submits an order through the rate gate; calls on one broker
// connection are serialized with a minimum inter-call delay.
func (b *Broker) PlaceOrder(ctx context.Context, order OrderRequest) error {
	return b.gate.Do(ctx, func() error {
		return b.send("place_order", order)
	})
}

// CancelOrder cancels an order through the same gate.
func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	return b.gate.Do(ctx, func() error {
		return b.send("cancel_order", map[string]string{"order_id": orderID})
	})
}

// SubscribeSymbol subscribes to venue updates for a symbol, enforcing the
// venue's subscription quota locally.
func (b *Broker) SubscribeSymbol(symbol string) error {
	b.mu.Lock()
	if _, ok := b.symbols[symbol]; !ok {
		if b.cfg.MaxSymbolSubscriptions > 0 && len(b.symbols) >= b.cfg.MaxSymbolSubscriptions {
			b.mu.Unlock()
			return fmt.Errorf("%w: limit %d", ErrSymbolQuota, b.cfg.MaxSymbolSubscriptions)
		}
		b.symbols[symbol] = struct{}{}
	}
	b.mu.Unlock()

	if err := b.send("subscribe", map[string]string{"symbol": symbol}); err != nil {
		b.mu.Lock()
		delete(b.symbols, symbol)
		b.mu.Unlock()
		return err
	}
	return nil
}

// send writes a command frame; writes are serialized per connection.
func (b *Broker) send(cmd string, params interface{}) error {
	b.mu.RLock()
	ws := b.ws
	b.mu.RUnlock()

	if ws == nil {
		return ErrNotOpen
	}

	frame := brokerCommand{
		ID:     atomic.AddInt64(&b.cmdID, 1),
		Cmd:    cmd,
		Params: params,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd, err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}
