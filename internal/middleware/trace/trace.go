// Package trace tags outbound API requests with a request ID and logs their
// outcome.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reina/internal/log"
)

// RequestIDHeader carries the request ID to the server.
const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

// WithRequestID makes outbound requests made with ctx reuse id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	Unauthorized        int64
	AverageResponseTime int64 // in microseconds
}

// Transport is an http.RoundTripper that logs every request it forwards.
type Transport struct {
	next   http.RoundTripper
	logger *log.Logger

	total        atomic.Int64
	failed       atomic.Int64
	unauthorized atomic.Int64
	totalMicros  atomic.Int64
}

// NewTransport wraps next, or http.DefaultTransport when next is nil.
func NewTransport(next http.RoundTripper, logger *log.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transport{next: next, logger: logger.WithComponent(log.ComponentTrace)}
}

// Client returns an http.Client that sends through t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	requestID := GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// RoundTrip must not modify the caller's request.
	req = req.Clone(ctx)
	req.Header.Set(RequestIDHeader, requestID)

	fields := log.NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(req.Method, req.URL.Path, req.URL.RawQuery)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	t.total.Add(1)
	t.totalMicros.Add(duration.Microseconds())

	if err != nil {
		t.failed.Add(1)
		t.logger.WarnContext(ctx, "API request failed",
			fields.WithError(err).ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		t.unauthorized.Add(1)
		level = slog.LevelInfo
	case resp.StatusCode >= 500:
		t.failed.Add(1)
		level = slog.LevelError
	case resp.StatusCode >= 400:
		t.failed.Add(1)
		level = slog.LevelWarn
	}

	fields = fields.WithHTTPResponse(resp.StatusCode, duration.Milliseconds(), resp.StatusCode < 400)
	fields[log.FieldDurationHuman] = duration.String()
	t.logger.Log(ctx, level, "API request completed", fields.ToSlice()...)
	return resp, nil
}

// GetMetrics returns current metrics
func (t *Transport) GetMetrics() Metrics {
	m := Metrics{
		TotalRequests:  t.total.Load(),
		FailedRequests: t.failed.Load(),
		Unauthorized:   t.unauthorized.Load(),
	}
	if m.TotalRequests > 0 {
		m.AverageResponseTime = t.totalMicros.Load() / m.TotalRequests
	}
	return m
}
