package budget

import (
	"testing"
	"time"

	"github.com/zeralabs/qnoracle/internal/proxy/clock"
)

func TestTryConsume_EnforcesCapacity(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New(fc, 2, time.Minute)

	if !b.TryConsume(1) {
		t.Fatal("expected first consume to succeed")
	}
	if !b.TryConsume(1) {
		t.Fatal("expected second consume to succeed")
	}
	if b.TryConsume(1) {
		t.Fatal("expected third consume to be denied")
	}
}

func TestTryConsume_RefillsAtWindowBoundary(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New(fc, 1, time.Minute)

	if !b.TryConsume(1) {
		t.Fatal("expected first consume to succeed")
	}
	if b.TryConsume(1) {
		t.Fatal("expected second consume to be denied before refill")
	}

	fc.Advance(time.Minute)
	if !b.TryConsume(1) {
		t.Fatal("expected consume to succeed after window elapsed")
	}
}

func TestRemaining_ReflectsRefill(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New(fc, 3, time.Minute)

	b.TryConsume(3)
	if got := b.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}

	fc.Advance(time.Minute)
	if got := b.Remaining(); got != 3 {
		t.Errorf("Remaining() after refill = %d, want 3", got)
	}
}
