package conn

import (
	"context"
	"time"
)

// Gate serializes order-placement-style calls on a single connection through
// a one-slot gate and enforces a minimum delay between consecutive calls,
// giving a hard per-connection rate limit regardless of caller concurrency.
type Gate struct {
	slot        chan struct{}
	minInterval time.Duration
	lastCall    time.Time // guarded by slot ownership
}

// NewGate creates a gate with the given minimum inter-call delay.
func NewGate(minInterval time.Duration) *Gate {
	g := &Gate{
		slot:        make(chan struct{}, 1),
		minInterval: minInterval,
	}
	g.slot <- struct{}{}
	return g
}

// Do runs fn while holding the slot, delaying first if the previous call was
// less than the minimum interval ago.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.slot:
	}
	defer func() { g.slot <- struct{}{} }()

	if wait := g.minInterval - time.Since(g.lastCall); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	g.lastCall = time.Now()
	return fn()
}
