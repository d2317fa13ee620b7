package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a Budget through time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testBudget(requests, tokens int) (*Budget, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBudget(requests, tokens)
	b.now = clock.Now
	return b, clock
}

func TestBudget(t *testing.T) {
	t.Run("Acquire Under Limit", func(t *testing.T) {
		b, _ := testBudget(3, 1000)

		for i := 0; i < 3; i++ {
			waited, err := b.Acquire(context.Background(), 100)
			if err != nil {
				t.Fatalf("acquire %d: %v", i, err)
			}
			if waited != 0 {
				t.Errorf("acquire %d should not wait, waited %v", i, waited)
			}
		}

		usage := b.Status()
		if usage.Requests != 3 {
			t.Errorf("expected 3 requests, got %d", usage.Requests)
		}
		if usage.Tokens != 300 {
			t.Errorf("expected 300 tokens, got %d", usage.Tokens)
		}
	})

	t.Run("Window Eviction Frees Budget", func(t *testing.T) {
		b, clock := testBudget(2, 1000)

		if _, err := b.Acquire(context.Background(), 10); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Acquire(context.Background(), 10); err != nil {
			t.Fatal(err)
		}

		clock.Advance(61 * time.Second)

		usage := b.Status()
		if usage.Requests != 0 {
			t.Errorf("expected window to clear, got %d requests", usage.Requests)
		}
		if usage.RequestsAvailable != 2 {
			t.Errorf("expected full availability, got %d", usage.RequestsAvailable)
		}
	})

	t.Run("Blocks At Request Limit", func(t *testing.T) {
		b, _ := testBudget(1, 1000)

		if _, err := b.Acquire(context.Background(), 10); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := b.Acquire(ctx, 10)
		if err != context.DeadlineExceeded {
			t.Errorf("expected deadline exceeded while blocked, got %v", err)
		}
	})

	t.Run("Blocks At Token Limit", func(t *testing.T) {
		b, _ := testBudget(10, 100)

		if _, err := b.Acquire(context.Background(), 90); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := b.Acquire(ctx, 50)
		if err != context.DeadlineExceeded {
			t.Errorf("expected deadline exceeded while blocked, got %v", err)
		}
	})

	t.Run("UpdateTokens Corrects Last Reservation", func(t *testing.T) {
		b, _ := testBudget(10, 1000)

		if _, err := b.Acquire(context.Background(), 500); err != nil {
			t.Fatal(err)
		}
		b.UpdateTokens(120)

		usage := b.Status()
		if usage.Tokens != 120 {
			t.Errorf("expected corrected usage 120, got %d", usage.Tokens)
		}
		if usage.TokensAvailable != 880 {
			t.Errorf("expected 880 available, got %d", usage.TokensAvailable)
		}
	})

	t.Run("Usage String", func(t *testing.T) {
		b, _ := testBudget(30, 6000)
		if _, err := b.Acquire(context.Background(), 100); err != nil {
			t.Fatal(err)
		}

		got := b.Status().String()
		want := "requests 1/30, tokens 100/6000"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}
