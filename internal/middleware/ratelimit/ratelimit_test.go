package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)}
	l := NewLimiter(Config{RequestsPerMinute: perMinute})
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiter_Allow(t *testing.T) {
	l, clock := newTestLimiter(t, 2)

	steps := []struct {
		name    string
		host    string
		advance time.Duration
		want    bool
	}{
		{"first request", "api.example.com", 0, true},
		{"second request", "api.example.com", 0, true},
		{"third request in the window", "api.example.com", 0, false},
		{"other host is independent", "other.example.com", 0, true},
		{"new window", "api.example.com", window, true},
	}
	for _, s := range steps {
		clock.advance(s.advance)
		if got := l.Allow(s.host); got != s.want {
			t.Errorf("%s: Allow(%q) = %v, want %v", s.name, s.host, got, s.want)
		}
	}

	if got := l.ActiveHosts(); got != 2 {
		t.Errorf("ActiveHosts() = %d, want 2", got)
	}
}

func TestLimiter_ReserveReportsRemainingWindow(t *testing.T) {
	l, clock := newTestLimiter(t, 1)

	if d := l.reserve("h"); d != 0 {
		t.Fatalf("first reserve = %v, want 0", d)
	}
	clock.advance(20 * time.Second)
	if d := l.reserve("h"); d != 40*time.Second {
		t.Errorf("reserve = %v, want 40s", d)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	if err := l.Wait(context.Background(), "h"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "h"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
	if got := l.GetMetrics().Throttled; got != 1 {
		t.Errorf("Throttled = %d, want 1", got)
	}
}

func TestLimiter_CleanupDropsStaleHosts(t *testing.T) {
	l, clock := newTestLimiter(t, 5)
	l.Allow("old")
	clock.advance(staleAfter + time.Second)
	l.Allow("fresh")

	l.cleanupStaleEntries()
	if got := l.ActiveHosts(); got != 1 {
		t.Errorf("ActiveHosts() = %d after cleanup, want 1", got)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}

func TestTransport(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	l, _ := newTestLimiter(t, 1)
	client := &http.Client{Transport: NewTransport(nil, l)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Do(req); !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v, want context canceled", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1: throttled request must not reach it", got)
	}
}
