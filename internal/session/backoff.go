package session

import (
	"context"
	"time"
)

// Backoff is a capped exponential delay for reconnect attempts. Not safe
// for concurrent use; each session owns its own.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

// NewBackoff creates a backoff starting at initial and doubling up to max
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		next:    initial,
	}
}

// Next returns the current delay and doubles it for the following attempt
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset restarts the progression after a successful connection
func (b *Backoff) Reset() {
	b.next = b.initial
}

// Wait sleeps for the next delay, returning early on cancellation
func (b *Backoff) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.Next()):
		return nil
	}
}
