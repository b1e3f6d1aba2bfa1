// Package ratelimit throttles outbound requests to metadata providers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a new rate limiter with the given requests per second.
// The burst size equals the rate, allowing short bursts up to the rate limit.
func New(name string, requestsPerSecond int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows a request to proceed.
// Returns an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Registry hands out one shared limiter per provider so that lookups and
// searches against the same API draw from a single budget.
type Registry struct {
	mu                sync.Mutex
	limiters          map[string]*Limiter
	requestsPerSecond int
}

// NewRegistry creates a registry whose limiters allow requestsPerSecond each.
func NewRegistry(requestsPerSecond int) *Registry {
	return &Registry{
		limiters:          make(map[string]*Limiter),
		requestsPerSecond: requestsPerSecond,
	}
}

// For returns the limiter for name, creating it on first use.
func (r *Registry) For(name string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return l
	}
	l := New(name, r.requestsPerSecond)
	r.limiters[name] = l
	return l
}
