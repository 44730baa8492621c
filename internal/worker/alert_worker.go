package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/log"
)

// Checker runs the over-budget check.
type Checker interface {
	Check(ctx context.Context) (bool, error)
}

// Consumer delivers expense events until ctx is done.
type Consumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error
}

// AlertWorker re-checks the budget whenever spending or income changes, and
// periodically in case events were missed.
type AlertWorker struct {
	checker  Checker
	interval time.Duration
	logger   *log.Logger

	// mu serialises checks so an event and a tick cannot both add the alert.
	mu sync.Mutex
}

func NewAlertWorker(checker Checker, interval time.Duration, logger *log.Logger) *AlertWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AlertWorker{
		checker:  checker,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single expense event from AMQP. Only transient
// failures are returned, so the delivery is requeued; authentication
// failures are logged and acknowledged since retrying cannot help.
func (w *AlertWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		log.FieldOperation, log.OpConsume,
		"kind", ev.Kind,
		log.FieldExpenseID, ev.ExpenseID)

	if err := w.check(ctx); err != nil {
		if !api.IsTransient(err) {
			w.logger.ErrorContext(ctx, "Budget check needs a fresh login, dropping event",
				"kind", ev.Kind,
				log.FieldError, err)
			return nil
		}
		return fmt.Errorf("budget check after %s: %w", ev.Kind, err)
	}
	return nil
}

func (w *AlertWorker) check(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	added, err := w.checker.Check(ctx)
	if err != nil {
		return err
	}
	if added {
		w.logger.InfoContext(ctx, "Over-budget notification posted")
	}
	return nil
}

// Run consumes events from consumer (when non-nil) and runs the periodic
// check until ctx is cancelled. A nil error means a clean shutdown.
func (w *AlertWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeExpenseEvents(gctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.Info("No event source configured, relying on periodic checks")
	}

	if w.interval > 0 {
		g.Go(func() error {
			w.tick(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (w *AlertWorker) tick(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.check(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic budget check failed", log.FieldError, err)
			}
		}
	}
}
