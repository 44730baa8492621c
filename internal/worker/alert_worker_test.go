package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reina/internal/amqp"
	"reina/internal/api"
)

type fakeChecker struct {
	calls atomic.Int32
	err   error
	added bool
}

func (f *fakeChecker) Check(context.Context) (bool, error) {
	f.calls.Add(1)
	return f.added, f.err
}

type fakeConsumer struct {
	events []*amqp.ExpenseEvent

	mu      sync.Mutex
	results []error
}

func (f *fakeConsumer) ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error {
	for _, ev := range f.events {
		err := handler(ctx, ev)
		f.mu.Lock()
		f.results = append(f.results, err)
		f.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name     string
		checkErr error
		wantErr  bool
	}{
		{"success acks", nil, false},
		{"transient failure requeues", &api.APIError{StatusCode: 503}, true},
		{"expired session is dropped", &api.SessionExpiredError{}, false},
		{"unauthorized is dropped", &api.APIError{StatusCode: 401}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{err: tt.checkErr}
			w := NewAlertWorker(checker, 0, nil)

			err := w.HandleEvent(context.Background(), &amqp.ExpenseEvent{Kind: amqp.ExpenseCreated, ExpenseID: 1})
			if (err != nil) != tt.wantErr {
				t.Errorf("HandleEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if checker.calls.Load() != 1 {
				t.Errorf("Check called %d times, want 1", checker.calls.Load())
			}
		})
	}
}

func TestRun_ConsumesEvents(t *testing.T) {
	checker := &fakeChecker{added: true}
	consumer := &fakeConsumer{events: []*amqp.ExpenseEvent{
		{Kind: amqp.ExpenseCreated, ExpenseID: 1},
		{Kind: amqp.IncomeUpdated},
	}}
	w := NewAlertWorker(checker, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.Now().Add(2 * time.Second)
	for checker.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil on cancellation", err)
	}
	if checker.calls.Load() != 2 {
		t.Errorf("Check called %d times, want 2", checker.calls.Load())
	}
	for i, err := range consumer.results {
		if err != nil {
			t.Errorf("event %d handler error = %v", i, err)
		}
	}
}

func TestRun_PeriodicCheckWithoutConsumer(t *testing.T) {
	checker := &fakeChecker{err: errors.New("api down")}
	w := NewAlertWorker(checker, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx, nil); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if checker.calls.Load() < 2 {
		t.Errorf("Check called %d times, want periodic calls", checker.calls.Load())
	}
}

type failingConsumer struct{}

func (failingConsumer) ConsumeExpenseEvents(context.Context, amqp.Handler) error {
	return errors.New("message channel closed")
}

func TestRun_ConsumerFailureStopsWorker(t *testing.T) {
	w := NewAlertWorker(&fakeChecker{}, time.Hour, nil)

	err := w.Run(context.Background(), failingConsumer{})
	if err == nil || err.Error() != "message channel closed" {
		t.Errorf("Run() = %v, want consumer error", err)
	}
}
