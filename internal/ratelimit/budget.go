// package ratelimit tracks the process-wide request and token budget for the
// recommender-model API.
//
// The provider enforces per-minute request and token quotas. A single Budget
// is shared by every pipeline run in the process; its counters are the only
// mutable state shared across runs, so all access goes through a mutex.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// window is the quota accounting period.
const window = time.Minute

// Usage is a snapshot of current budget consumption.
type Usage struct {
	Requests          int `json:"requests"`
	MaxRequests       int `json:"max_requests"`
	Tokens            int `json:"tokens"`
	MaxTokens         int `json:"max_tokens"`
	RequestsAvailable int `json:"requests_available"`
	TokensAvailable   int `json:"tokens_available"`
}

type tokenEntry struct {
	at     time.Time
	tokens int
}

// Budget is a sliding-window request/token limiter with a blocking Acquire.
//
// Acquire waits until both the request and token windows have room, records
// the reservation, and returns. UpdateTokens corrects the most recent
// reservation once the provider reports actual usage.
type Budget struct {
	maxRequests int
	maxTokens   int

	mu       chan struct{} // Semaphore-style mutex so waits can respect ctx
	requests []time.Time
	tokens   []tokenEntry

	now func() time.Time
}

// NewBudget creates a Budget with the given per-minute request and token caps.
func NewBudget(requestsPerMinute, tokensPerMinute int) *Budget {
	b := &Budget{
		maxRequests: requestsPerMinute,
		maxTokens:   tokensPerMinute,
		mu:          make(chan struct{}, 1),
		now:         time.Now,
	}
	b.mu <- struct{}{}
	return b
}

func (b *Budget) lock(ctx context.Context) error {
	select {
	case <-b.mu:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Budget) unlock() {
	b.mu <- struct{}{}
}

// evict drops window entries older than one minute. Caller holds the lock.
func (b *Budget) evict() {
	cutoff := b.now().Add(-window)

	i := 0
	for i < len(b.requests) && b.requests[i].Before(cutoff) {
		i++
	}
	b.requests = b.requests[i:]

	j := 0
	for j < len(b.tokens) && b.tokens[j].at.Before(cutoff) {
		j++
	}
	b.tokens = b.tokens[j:]
}

func (b *Budget) tokensInWindow() int {
	total := 0
	for _, e := range b.tokens {
		total += e.tokens
	}
	return total
}

// Acquire blocks until the budget has room for one request of the estimated
// token cost, then records the reservation. It returns the total time spent
// waiting. The wait is bounded by the window reset of the oldest entry; a
// cancelled context is the only error.
func (b *Budget) Acquire(ctx context.Context, estimatedTokens int) (time.Duration, error) {
	if err := b.lock(ctx); err != nil {
		return 0, err
	}
	defer b.unlock()

	var waited time.Duration

	for {
		b.evict()

		var wait time.Duration
		if len(b.requests) >= b.maxRequests && len(b.requests) > 0 {
			wait = b.requests[0].Add(window + time.Second).Sub(b.now())
		}
		if b.tokensInWindow()+estimatedTokens > b.maxTokens && len(b.tokens) > 0 {
			tokenWait := b.tokens[0].at.Add(window + time.Second).Sub(b.now())
			if tokenWait > wait {
				wait = tokenWait
			}
		}

		if wait <= 0 {
			now := b.now()
			b.requests = append(b.requests, now)
			b.tokens = append(b.tokens, tokenEntry{at: now, tokens: estimatedTokens})
			return waited, nil
		}

		// Release the lock while sleeping so other acquirers can queue.
		b.unlock()
		select {
		case <-time.After(wait):
			waited += wait
		case <-ctx.Done():
			// Re-take the lock so the deferred unlock stays balanced.
			<-b.mu
			return waited, ctx.Err()
		}
		if err := b.lock(ctx); err != nil {
			return waited, err
		}
	}
}

// UpdateTokens replaces the estimated cost of the most recent reservation
// with the provider-reported actual usage.
func (b *Budget) UpdateTokens(actual int) {
	<-b.mu
	defer b.unlock()

	if len(b.tokens) > 0 {
		b.tokens[len(b.tokens)-1].tokens = actual
	}
}

// Status returns a snapshot of current usage.
func (b *Budget) Status() Usage {
	<-b.mu
	defer b.unlock()

	b.evict()
	used := b.tokensInWindow()
	return Usage{
		Requests:          len(b.requests),
		MaxRequests:       b.maxRequests,
		Tokens:            used,
		MaxTokens:         b.maxTokens,
		RequestsAvailable: b.maxRequests - len(b.requests),
		TokensAvailable:   b.maxTokens - used,
	}
}

// String implements fmt.Stringer for log output.
func (u Usage) String() string {
	return fmt.Sprintf("requests %d/%d, tokens %d/%d", u.Requests, u.MaxRequests, u.Tokens, u.MaxTokens)
}
