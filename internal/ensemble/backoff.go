package ensemble

import (
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff implements exponential backoff with jitter. Unlike a sleeping
// backoff it only computes durations; the session loop owns the waiting
// so it can be interrupted by close.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	rnd     *rand.Rand
}

func newBackoff(initial, max time.Duration, rnd *rand.Rand) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		rnd:     rnd,
	}
}

// Next returns the current jittered delay and doubles the base for the
// following call, capped at max. Jitter: ±20%.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (b.rnd.Float64()*2 - 1)
	delay := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}
