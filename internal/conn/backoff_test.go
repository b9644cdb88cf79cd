package conn

import (
	"testing"
	"time"
)

func TestBackoffExponentialBand(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Exponential: true}

	for attempt := 1; attempt <= 10; attempt++ {
		expected := 5 * time.Second << (attempt - 1)
		if expected > maxBackoff {
			expected = maxBackoff
		}

		got := b.Delay(attempt)

		lo := time.Duration(float64(expected) * 0.8)
		hi := time.Duration(float64(expected) * 1.2)
		if lo < minBackoff {
			lo = minBackoff
		}
		if got < lo || got > hi {
			t.Errorf("attempt %d: Delay = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestBackoffMonotonicUpToCap(t *testing.T) {
	// Jitter is +/-20%; doubling dominates it, so the lower band of attempt
	// n+1 must never dip below the upper band of attempt n until the cap.
	b := Backoff{Base: 2 * time.Second, Exponential: true}
	_ = b

	prevHi := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		expected := 2 * time.Second << (attempt - 1)
		if expected >= maxBackoff {
			break
		}
		lo := time.Duration(float64(expected) * 0.8)
		if lo < prevHi {
			t.Fatalf("attempt %d: jitter bands overlap, lo=%v prevHi=%v", attempt, lo, prevHi)
		}
		prevHi = time.Duration(float64(expected) * 1.2)
	}
}

func TestBackoffCap(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Exponential: true}

	// 5s * 2^19 is far past the cap; delay must stay within the jittered cap.
	got := b.Delay(20)
	hi := time.Duration(float64(maxBackoff) * 1.2)
	if got > hi {
		t.Errorf("Delay(20) = %v, want <= %v", got, hi)
	}
}

func TestBackoffConstant(t *testing.T) {
	b := Backoff{Base: 3 * time.Second, Exponential: false}

	for attempt := 1; attempt <= 5; attempt++ {
		if got := b.Delay(attempt); got != 3*time.Second {
			t.Errorf("attempt %d: Delay = %v, want 3s", attempt, got)
		}
	}
}

func TestBackoffFloor(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Exponential: true}

	if got := b.Delay(1); got < minBackoff {
		t.Errorf("Delay(1) = %v, want >= %v", got, minBackoff)
	}
}
