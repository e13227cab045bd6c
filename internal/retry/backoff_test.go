package retry

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := &Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     80 * time.Millisecond,
		Multiplier:   2.0,
	}

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond, // capped
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("step %d: Next() = %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := &Backoff{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second}

	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != 10*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want 10ms", got)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := &Backoff{}
	first := b.Next()
	if first != 5*time.Millisecond {
		t.Errorf("default first delay = %v, want 5ms", first)
	}

	// Run the sequence; it must never exceed the default 1s cap.
	for i := 0; i < 20; i++ {
		if d := b.Next(); d > time.Second {
			t.Fatalf("step %d: delay %v exceeds default cap", i, d)
		}
	}
}

func TestBackoff_JitterStaysNearBase(t *testing.T) {
	b := &Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: true}

	for i := 0; i < 100; i++ {
		b.Reset()
		d := b.Next()
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±25%% of 100ms", d)
		}
	}
}

func TestSleep_CancelledContext(t *testing.T) {
	b := &Backoff{InitialDelay: 10 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Sleep(ctx); err == nil {
		t.Error("Sleep on cancelled context should return an error")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}
