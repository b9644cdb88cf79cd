package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jstrand/tradelink/internal/conn"
	"github.com/jstrand/tradelink/internal/model"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNoHealthyUpstream = errors.New("no upstream connection healthy")
)

// Factory builds a fresh resilient connection for one upstream. Refresh
// with force rebuilds through the factory, discarding the old instance's
// reconnect-attempt counters.
type Factory func() *conn.Conn

// Config holds registry settings.
type Config struct {
	// MaxConcurrentInits caps how many connect cycles may run at once.
	MaxConcurrentInits int64

	// MonitorInterval is the health poll period.
	MonitorInterval time.Duration

	// FailedPollsBeforeRefresh is how many consecutive FAILED polls trigger
	// a forced refresh.
	FailedPollsBeforeRefresh int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentInits:       4,
		MonitorInterval:          30 * time.Second,
		FailedPollsBeforeRefresh: 2,
	}
}

// Status is one entry in a registry snapshot.
type Status struct {
	Name          model.ConnName `json:"name"`
	Health        conn.Health    `json:"health"`
	LastCheckedAt time.Time      `json:"last_checked_at"`
}

// Registry owns the upstream connection table. The table is mutated only by
// the registry; all other code reads through Get/Status.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu          sync.RWMutex
	order       []model.ConnName
	factories   map[model.ConnName]Factory
	conns       map[model.ConnName]*conn.Conn
	lastChecked map[model.ConnName]time.Time
	failedPolls map[model.ConnName]int

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New creates an empty registry.
func New(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentInits <= 0 {
		cfg.MaxConcurrentInits = DefaultConfig().MaxConcurrentInits
	}
	if cfg.FailedPollsBeforeRefresh <= 0 {
		cfg.FailedPollsBeforeRefresh = DefaultConfig().FailedPollsBeforeRefresh
	}

	return &Registry{
		cfg:         cfg,
		logger:      logger,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentInits),
		factories:   make(map[model.ConnName]Factory),
		conns:       make(map[model.ConnName]*conn.Conn),
		lastChecked: make(map[model.ConnName]time.Time),
		failedPolls: make(map[model.ConnName]int),
	}
}

// Register adds a named connection factory. Must be called before
// InitializeAll.
func (r *Registry) Register(name model.ConnName, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = factory
}

// InitializeAll constructs and connects every registered upstream
// concurrently, each connect cycle gated by the init semaphore. Failures are
// isolated per connection; the call succeeds as long as at least one
// upstream reports healthy, leaving the system in degraded mode otherwise.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.Lock()
	names := append([]model.ConnName{}, r.order...)
	for _, name := range names {
		r.conns[name] = r.factories[name]()
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	var healthy int64

	for _, name := range names {
		c, _ := r.Get(name)

		wg.Add(1)
		go func(name model.ConnName, c *conn.Conn) {
			defer wg.Done()

			if err := r.sem.Acquire(ctx, 1); err != nil {
				r.logger.Warn("init cancelled", "conn", name, "error", err)
				return
			}
			defer r.sem.Release(1)

			if c.Connect(ctx) {
				atomic.AddInt64(&healthy, 1)
			} else {
				r.logger.Error("upstream failed to initialize", "conn", name)
			}
		}(name, c)
	}
	wg.Wait()

	n := atomic.LoadInt64(&healthy)
	if n == 0 {
		return fmt.Errorf("initialize: %w", ErrNoHealthyUpstream)
	}
	if int(n) < len(names) {
		r.logger.Warn("running in degraded mode",
			"healthy", n,
			"total", len(names),
		)
	} else {
		r.logger.Info("all upstream connections healthy", "total", len(names))
	}
	return nil
}

// Get returns the named connection. Pure lookup, no side effects.
func (r *Registry) Get(name model.ConnName) (*conn.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[name]
	return c, ok
}

// Status returns the named connection's health snapshot.
func (r *Registry) Status(name model.ConnName) (Status, bool) {
	r.mu.RLock()
	c, ok := r.conns[name]
	checked := r.lastChecked[name]
	r.mu.RUnlock()

	if !ok {
		return Status{}, false
	}
	return Status{Name: name, Health: c.Health(), LastCheckedAt: checked}, true
}

// Statuses returns snapshots for every registered connection.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	names := append([]model.ConnName{}, r.order...)
	r.mu.RUnlock()

	out := make([]Status, 0, len(names))
	for _, name := range names {
		if s, ok := r.Status(name); ok {
			out = append(out, s)
		}
	}
	return out
}

// Refresh tears down and reconnects exactly the named connection, used when
// upstream credentials rotate at runtime. With force, the instance is
// rebuilt from its factory for a clean slate (reconnect counters included).
func (r *Registry) Refresh(ctx context.Context, name model.ConnName, force bool) error {
	r.mu.RLock()
	c, ok := r.conns[name]
	factory := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("refresh %s: %w", name, ErrUnknownConnection)
	}

	c.Disconnect()

	if force {
		c = factory()
		r.mu.Lock()
		r.conns[name] = c
		r.failedPolls[name] = 0
		r.mu.Unlock()
	}

	if !c.Connect(ctx) {
		return fmt.Errorf("refresh %s: reconnect failed", name)
	}
	r.logger.Info("connection refreshed", "conn", name, "force", force)
	return nil
}

// Shutdown stops the monitor and disconnects every owned connection,
// tolerating individual teardown failures.
func (r *Registry) Shutdown(ctx context.Context) {
	r.stopMonitor()

	r.mu.RLock()
	names := append([]model.ConnName{}, r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		c, ok := r.Get(name)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("teardown panicked", "conn", name, "panic", rec)
				}
			}()
			c.Disconnect()
		}()
	}
	r.logger.Info("registry shut down", "connections", len(names))
}
