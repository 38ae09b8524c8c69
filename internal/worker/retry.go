package worker

import (
	"math"
	"time"
)

// BackoffPolicy spaces automatic sync passes while the server keeps failing,
// so a dead link is not hammered at the base interval.
type BackoffPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns delay for a given consecutive-failure count (1-based)
// with clamping.
func (b BackoffPolicy) NextDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if b.InitialDelay <= 0 {
		b.InitialDelay = time.Second
	}
	if b.BackoffFactor <= 0 {
		b.BackoffFactor = 2
	}

	delay := float64(b.InitialDelay) * math.Pow(b.BackoffFactor, float64(failures-1))
	d := time.Duration(delay)
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
