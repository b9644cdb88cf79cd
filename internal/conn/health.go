package conn

import "time"

// latencySamples caps the rolling probe latency window.
const latencySamples = 100

// Health is a point-in-time snapshot of a connection's health. Derived on
// demand, never persisted.
type Health struct {
	State             State     `json:"state"`
	LastConnectedAt   time.Time `json:"last_connected_at"`
	LastError         string    `json:"last_error,omitempty"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LatencyMS         float64   `json:"latency_ms"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
}

// latencyWindow is a fixed-size ring of probe round-trip times.
type latencyWindow struct {
	samples [latencySamples]time.Duration
	next    int
	count   int
}

func (w *latencyWindow) add(d time.Duration) {
	w.samples[w.next] = d
	w.next = (w.next + 1) % latencySamples
	if w.count < latencySamples {
		w.count++
	}
}

// meanMS returns the rolling average in milliseconds, 0 when empty.
func (w *latencyWindow) meanMS() float64 {
	if w.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < w.count; i++ {
		total += w.samples[i]
	}
	return float64(total) / float64(w.count) / float64(time.Millisecond)
}
