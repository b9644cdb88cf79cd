package registry

import (
	"context"
	"time"

	"github.com/jstrand/tradelink/internal/conn"
	"github.com/jstrand/tradelink/internal/model"
)

// StartMonitor launches the background health monitor. The monitor never
// retries a connection that is mid-backoff; it only force-refreshes one
// that has exhausted its attempts and sat in FAILED for consecutive polls.
func (r *Registry) StartMonitor(ctx context.Context) {
	r.mu.Lock()
	if r.monitorDone != nil {
		r.mu.Unlock()
		return
	}
	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.monitorCancel = cancel
	r.monitorDone = done
	r.mu.Unlock()

	go r.monitorLoop(mctx, done)
	r.logger.Info("registry monitor started", "interval", r.cfg.MonitorInterval)
}

func (r *Registry) stopMonitor() {
	r.mu.Lock()
	cancel := r.monitorCancel
	done := r.monitorDone
	r.monitorCancel = nil
	r.monitorDone = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Registry) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll snapshots every connection's health and refreshes the ones stuck in
// FAILED past the threshold.
func (r *Registry) poll(ctx context.Context) {
	r.mu.RLock()
	names := append([]model.ConnName{}, r.order...)
	r.mu.RUnlock()

	now := time.Now()
	for _, name := range names {
		c, ok := r.Get(name)
		if !ok {
			continue
		}
		h := c.Health()

		r.mu.Lock()
		r.lastChecked[name] = now
		if h.State == conn.StateFailed {
			r.failedPolls[name]++
		} else {
			r.failedPolls[name] = 0
		}
		streak := r.failedPolls[name]
		r.mu.Unlock()

		if streak < r.cfg.FailedPollsBeforeRefresh {
			continue
		}

		r.logger.Warn("connection stuck in failed state, forcing refresh",
			"conn", name,
			"failed_polls", streak,
		)
		if err := r.Refresh(ctx, name, true); err != nil {
			r.logger.Error("forced refresh failed", "conn", name, "error", err)
		}
	}
}
