package connector

import "time"

// Backoff computes reconnect delays: base doubled per attempt, capped.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration

	attempt int
}

// DefaultBackoff returns the 1s..30s schedule.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: 30 * time.Second}
}

// Next returns the delay for the current attempt and counts it.
func (b *Backoff) Next() time.Duration {
	d := b.Cap
	if b.attempt < 32 {
		if scaled := b.Base << uint(b.attempt); scaled > 0 && scaled < b.Cap {
			d = scaled
		}
	}
	b.attempt++
	return d
}

// Reset starts the schedule over.
func (b *Backoff) Reset() { b.attempt = 0 }

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int { return b.attempt }
