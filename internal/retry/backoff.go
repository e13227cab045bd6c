// Package retry provides the jittered exponential backoff used by the
// accept loop to ride out transient failures (fd exhaustion, aborted
// connections) without spinning.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff produces an exponentially growing delay sequence. It is
// stateful: Next advances the sequence, Reset rewinds it after a
// success. Not safe for concurrent use; the accept loop is the only
// caller.
type Backoff struct {
	// InitialDelay is the first delay (default 5ms).
	InitialDelay time.Duration
	// MaxDelay caps the sequence (default 1s).
	MaxDelay time.Duration
	// Multiplier grows the delay each step (default 2.0).
	Multiplier float64
	// Jitter adds ±25% randomisation to prevent synchronized retries.
	Jitter bool

	current time.Duration
}

// Next returns the delay to wait before the next attempt and advances
// the sequence.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.InitialDelay
		if b.current == 0 {
			b.current = 5 * time.Millisecond
		}
	}
	delay := b.current

	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = time.Second
	}
	b.current = time.Duration(float64(b.current) * multiplier)
	if b.current > maxDelay {
		b.current = maxDelay
	}

	if b.Jitter {
		delay = addJitter(delay)
	}
	return delay
}

// Reset rewinds the sequence to the initial delay. Call after a
// successful attempt.
func (b *Backoff) Reset() { b.current = 0 }

// Sleep waits for the next delay in the sequence or until the context
// is cancelled, whichever comes first.
func (b *Backoff) Sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.Next()):
		return nil
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
