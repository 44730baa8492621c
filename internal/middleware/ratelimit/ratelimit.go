// Package ratelimit throttles outbound API requests per host.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window     = time.Minute
	staleAfter = 10 * time.Minute
)

// Limiter allows a fixed number of requests per host in each one-minute
// window.
type Limiter struct {
	mu           sync.Mutex
	hosts        map[string]*hostWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
	now               func() time.Time

	throttled atomic.Int64
}

type hostWindow struct {
	start    time.Time
	requests int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		hosts:             make(map[string]*hostWindow),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
		now:               time.Now,
	}
	go l.startCleanup()
	return l
}

// reserve takes a slot for host and returns zero, or returns how long until
// the current window closes.
func (l *Limiter) reserve(host string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.hosts[host]
	if !ok || now.Sub(w.start) >= window {
		l.hosts[host] = &hostWindow{start: now, requests: 1}
		return 0
	}
	if w.requests < l.requestsPerMinute {
		w.requests++
		return 0
	}
	return w.start.Add(window).Sub(now)
}

// Allow takes a slot for host if one is free.
func (l *Limiter) Allow(host string) bool {
	return l.reserve(host) == 0
}

// Wait blocks until a slot for host is free or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	for {
		delay := l.reserve(host)
		if delay == 0 {
			return nil
		}
		l.throttled.Add(1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAfter)
	for host, w := range l.hosts {
		if w.start.Before(cutoff) {
			delete(l.hosts, host)
		}
	}
}

// ActiveHosts returns the number of hosts with a tracked window.
func (l *Limiter) ActiveHosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	Throttled int64
	Hosts     int64
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		Throttled: l.throttled.Load(),
		Hosts:     int64(l.ActiveHosts()),
	}
}

// Transport is an http.RoundTripper that waits for the limiter before
// forwarding each request.
type Transport struct {
	next    http.RoundTripper
	limiter *Limiter
}

// NewTransport wraps next, or http.DefaultTransport when next is nil.
func NewTransport(next http.RoundTripper, limiter *Limiter) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, limiter: limiter}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), req.URL.Host); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("rate limit wait for %s: %w", req.URL.Host, err)
	}
	return t.next.RoundTrip(req)
}
