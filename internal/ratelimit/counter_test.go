package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottlesOnClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCounterWithClock(time.Second, func() time.Time { return now })

	if total, ok := c.Inc(); !ok || total != 1 {
		t.Fatalf("first inc: total=%d ok=%v", total, ok)
	}
	now = now.Add(500 * time.Millisecond)
	if total, ok := c.Inc(); ok || total != 2 {
		t.Fatalf("inside interval: total=%d ok=%v", total, ok)
	}
	now = now.Add(600 * time.Millisecond)
	if total, ok := c.Inc(); !ok || total != 3 {
		t.Fatalf("after interval: total=%d ok=%v", total, ok)
	}
	if c.Total() != 3 {
		t.Fatalf("total = %d", c.Total())
	}
}

func TestCounterZeroIntervalAlwaysLogs(t *testing.T) {
	c := NewCounter(0)
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(); !ok {
			t.Fatalf("zero interval suppressed log %d", i)
		}
	}
}

func TestNilCounter(t *testing.T) {
	var c *Counter
	if total, ok := c.Inc(); ok || total != 0 {
		t.Fatalf("nil counter: total=%d ok=%v", total, ok)
	}
}
