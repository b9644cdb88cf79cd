package conn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jstrand/tradelink/internal/model"
)

// Transport is the upstream capability a Conn supervises. Implementations
// must be safe to Open again after Close.
type Transport interface {
	// Open establishes the upstream link.
	Open(ctx context.Context) error

	// Close tears the link down. Safe to call when not open.
	Close() error

	// Probe performs a cheap liveness check over the open link.
	Probe(ctx context.Context) error
}

// Options configures a single resilient connection.
type Options struct {
	MaxAttempts    int           // connect attempts before StateFailed
	BaseDelay      time.Duration // backoff base delay
	Exponential    bool          // exponential vs constant backoff
	HealthInterval time.Duration // health-check loop period
	ProbeTimeout   time.Duration // per-probe deadline
}

// DefaultOptions returns the standard resilience settings.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    10,
		BaseDelay:      5 * time.Second,
		Exponential:    true,
		HealthInterval: 30 * time.Second,
		ProbeTimeout:   5 * time.Second,
	}
}

// Conn drives one upstream transport through the connect/reconnect state
// machine. All connect cycles are serialized; no two dial loops run
// concurrently for the same instance.
type Conn struct {
	name    model.ConnName
	tr      Transport
	opts    Options
	backoff Backoff
	logger  *slog.Logger
	emitter emitter

	// connectMu serializes Connect/EnsureConnected/Disconnect teardown.
	connectMu sync.Mutex

	mu             sync.Mutex
	state          State
	attempts       int
	lastErr        error
	lastConnected  time.Time
	connectedSince time.Time
	latency        latencyWindow

	healthCancel context.CancelFunc
	healthDone   chan struct{}
}

// New creates a resilient connection around the given transport.
func New(name model.ConnName, tr Transport, opts Options, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conn", string(name))

	return &Conn{
		name:    name,
		tr:      tr,
		opts:    opts,
		backoff: Backoff{Base: opts.BaseDelay, Exponential: opts.Exponential},
		logger:  logger,
		emitter: emitter{logger: logger},
	}
}

// Name returns the logical connection name.
func (c *Conn) Name() model.ConnName { return c.name }

// Transport returns the supervised transport for capability-specific calls.
// Callers must check State before using venue-specific operations.
func (c *Conn) Transport() Transport { return c.tr }

// OnConnect registers a handler fired after each successful connect.
func (c *Conn) OnConnect(fn func(Connected)) { c.emitter.addConnect(fn) }

// OnDisconnect registers a handler fired after an explicit disconnect.
func (c *Conn) OnDisconnect(fn func(Disconnected)) { c.emitter.addDisconnect(fn) }

// OnError registers a handler fired when the attempt budget is exhausted.
func (c *Conn) OnError(fn func(Error)) { c.emitter.addError(fn) }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Health returns a snapshot of the connection's health.
func (c *Conn) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Health{
		State:             c.state,
		LastConnectedAt:   c.lastConnected,
		ReconnectAttempts: c.attempts,
		LatencyMS:         c.latency.meanMS(),
	}
	if c.lastErr != nil {
		h.LastError = c.lastErr.Error()
	}
	if c.state == StateConnected && !c.connectedSince.IsZero() {
		h.UptimeSeconds = time.Since(c.connectedSince).Seconds()
	}
	return h
}

// Connect runs the dial loop: up to MaxAttempts tries with backoff between
// failures. On success it starts the health loop and fires Connected
// handlers. On exhaustion it transitions to StateFailed, fires Error handlers
// exactly once, and returns false; it never panics. A Connect on a FAILED
// connection is the explicit operator reset.
func (c *Conn) Connect(ctx context.Context) bool {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.State() == StateConnected {
		return true
	}

	if ok := c.dialLoop(ctx); !ok {
		return false
	}
	c.startHealthLoop()
	return true
}

// EnsureConnected is the self-heal path for a stale-but-marked-connected
// link: when connected it probes, downgrades on failure, and reconnects;
// otherwise it behaves like Connect.
func (c *Conn) EnsureConnected(ctx context.Context) bool {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.State() != StateConnected {
		if ok := c.dialLoop(ctx); !ok {
			return false
		}
		c.startHealthLoop()
		return true
	}

	pctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	err := c.tr.Probe(pctx)
	cancel()
	if err == nil {
		return true
	}

	c.logger.Warn("liveness probe failed, reconnecting", "error", err)
	c.mu.Lock()
	c.state = next(c.state, evProbeFail)
	c.lastErr = err
	c.mu.Unlock()
	c.tr.Close()

	if ok := c.dialLoop(ctx); !ok {
		return false
	}
	c.startHealthLoop()
	return true
}

// Disconnect cancels the health loop synchronously, closes the transport,
// and fires Disconnected handlers.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	cancel := c.healthCancel
	done := c.healthDone
	c.healthCancel = nil
	c.healthDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if err := c.tr.Close(); err != nil {
		c.logger.Warn("transport close failed", "error", err)
	}

	c.mu.Lock()
	c.state = next(c.state, evClose)
	c.connectedSince = time.Time{}
	c.mu.Unlock()

	c.emitter.emitDisconnected(Disconnected{At: time.Now()})
	c.logger.Info("disconnected")
}

// dialLoop attempts the transport open with backoff. Caller must hold
// connectMu. Does not start the health loop.
func (c *Conn) dialLoop(ctx context.Context) bool {
	c.mu.Lock()
	c.state = next(c.state, evDial)
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		err := c.tr.Open(ctx)
		if err == nil {
			now := time.Now()
			c.mu.Lock()
			c.state = next(c.state, evDialOK)
			c.lastConnected = now
			c.connectedSince = now
			c.attempts = 0
			c.lastErr = nil
			c.mu.Unlock()

			c.emitter.emitConnected(Connected{At: now})
			c.logger.Info("connected", "attempt", attempt)
			return true
		}

		lastErr = err
		c.mu.Lock()
		c.attempts++
		c.lastErr = err
		c.mu.Unlock()

		c.logger.Warn("connect attempt failed",
			"attempt", attempt,
			"max_attempts", c.opts.MaxAttempts,
			"error", err,
		)

		if attempt == c.opts.MaxAttempts {
			break
		}

		delay := c.backoff.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.mu.Lock()
			c.state = next(c.state, evClose)
			c.mu.Unlock()
			return false
		case <-timer.C:
		}

		c.mu.Lock()
		c.state = next(c.state, evDialFail)
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = next(c.state, evExhausted)
	c.mu.Unlock()

	err := fmt.Errorf("connect %s: attempts exhausted: %w", c.name, lastErr)
	c.logger.Error("connection failed", "error", err)
	c.emitter.emitError(Error{Cause: err})
	return false
}

// startHealthLoop launches the health-check loop unless one is already
// running for this instance.
func (c *Conn) startHealthLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthDone != nil {
		select {
		case <-c.healthDone:
			// previous loop exited
		default:
			return
		}
	}

	hctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.healthCancel = cancel
	c.healthDone = done

	go c.healthLoop(hctx, done)
}

// healthLoop probes the transport every HealthInterval while connected,
// recording latency samples. A failed probe downgrades the state and drives
// an in-loop reconnect; the loop exits once the state leaves StateConnected
// for any other reason.
func (c *Conn) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if c.State() != StateConnected {
			return
		}

		start := time.Now()
		pctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
		err := c.tr.Probe(pctx)
		cancel()

		if err == nil {
			rtt := time.Since(start)
			c.mu.Lock()
			c.latency.add(rtt)
			c.mu.Unlock()
			continue
		}

		c.logger.Warn("health check failed", "error", err)

		c.connectMu.Lock()
		c.mu.Lock()
		c.state = next(c.state, evProbeFail)
		c.lastErr = err
		c.mu.Unlock()
		c.tr.Close()

		ok := c.dialLoop(ctx)
		c.connectMu.Unlock()

		if !ok {
			return
		}
	}
}
