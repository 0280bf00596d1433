package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Default rate limiter names
const (
	LimiterBlogger   = "blogger"
	LimiterTumblr    = "tumblr"
	LimiterX         = "x"
	LimiterAnthropic = "anthropic"
	LimiterResearch  = "research"
	LimiterImage     = "image"
)

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	// Blogger: generous daily quota, keep bursts small
	m.AddLimiter(LimiterBlogger, 1, 5)

	// Tumblr: 250 posts per day = ~0.003 per second, burst 3
	m.AddLimiter(LimiterTumblr, 250.0/(24*60*60), 3)

	// X: free tier is tight - 17 posts per day, burst 2
	m.AddLimiter(LimiterX, 17.0/(24*60*60), 2)

	// Anthropic: 10 requests per minute = ~0.17 per second, burst 2
	m.AddLimiter(LimiterAnthropic, 10.0/60, 2)

	// Research feeds: be polite - 1 per second, burst 10
	m.AddLimiter(LimiterResearch, 1, 10)

	// Image generation/hosting: 1 per 2 seconds, burst 2
	m.AddLimiter(LimiterImage, 0.5, 2)

	return m
}
