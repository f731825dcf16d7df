package resilience

import (
	"context"
	"sync"
	"time"
)

// Guard owns one breaker per provider and a shared retry policy.
type Guard struct {
	policy    RetryPolicy
	threshold int
	reset     time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGuard creates a Guard.
func NewGuard(policy RetryPolicy, failureThreshold int, resetTimeout time.Duration) *Guard {
	return &Guard{
		policy:    policy,
		threshold: failureThreshold,
		reset:     resetTimeout,
		breakers:  make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for service, creating it on first use.
func (g *Guard) Breaker(service string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[service]
	if !ok {
		b = NewBreaker(service, g.threshold, g.reset)
		g.breakers[service] = b
	}
	return b
}

// States returns a snapshot of all breaker states.
func (g *Guard) States() map[string]BreakerState {
	g.mu.Lock()
	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	g.mu.Unlock()

	out := make(map[string]BreakerState, len(names))
	for _, name := range names {
		out[name] = g.Breaker(name).State()
	}
	return out
}

// Call runs fn for service through its breaker with retries. A nil Guard
// calls fn once.
func Call[T any](ctx context.Context, g *Guard, service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	b := g.Breaker(service)
	if err := b.Allow(); err != nil {
		var zero T
		return zero, err
	}
	val, err := Retry(ctx, g.policy, service+"."+op, fn)
	b.Record(err)
	return val, err
}
