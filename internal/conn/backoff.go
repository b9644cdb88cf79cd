package conn

import (
	"math"
	"math/rand"
	"time"
)

const (
	maxBackoff    = 300 * time.Second
	minBackoff    = 1 * time.Second
	jitterPercent = 0.2
)

// Backoff computes the delay before the next connect attempt.
type Backoff struct {
	Base        time.Duration
	Exponential bool
}

// Delay returns the delay after the given 1-based failed attempt. Exponential
// delays are base*2^(attempt-1) capped at 300s, jittered by +/-20% with a 1s
// floor. Non-exponential delays are the constant base.
func (b Backoff) Delay(attempt int) time.Duration {
	if !b.Exponential {
		return b.Base
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}

	d *= 1 + jitterPercent*(2*rand.Float64()-1)

	delay := time.Duration(d)
	if delay < minBackoff {
		delay = minBackoff
	}
	return delay
}
