package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	svcmetrics "TokenPulse/internal/service/metrics"
)

// Limiter holds one token bucket per provider key.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter)} }

// Configure sets the bucket for key to perMinute requests with the given burst.
// perMinute <= 0 removes the limit.
func (l *Limiter) Configure(key string, perMinute, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if perMinute <= 0 {
		l.m[key] = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst < 1 {
		burst = 1
	}
	l.m[key] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.m[key]
	if !ok {
		lim = rate.NewLimiter(rate.Inf, 0)
		l.m[key] = lim
	}
	return lim
}

// Allow returns true if one token can be consumed for key right now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	lim := l.get(key)
	if lim.Allow() {
		return nil
	}
	svcmetrics.ProviderThrottled.WithLabelValues(key).Inc()
	return lim.Wait(ctx)
}
