package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/core"
	"reina/internal/log"
	"reina/internal/sheets"
)

// ExpenseSource lists every expense of the current user.
type ExpenseSource interface {
	AllExpenses(ctx context.Context, category core.Category) ([]core.Expense, error)
}

// SyncWorker rewrites the spreadsheet whenever an expense changes.
type SyncWorker struct {
	source   ExpenseSource
	exporter sheets.Exporter
	logger   *log.Logger

	mu sync.Mutex
}

func NewSyncWorker(source ExpenseSource, exporter sheets.Exporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		source:   source,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentSheets),
	}
}

// HandleEvent re-exports all expenses after an expense event. Income events
// are ignored. Transient API failures are returned so the delivery is
// requeued; a failed export is logged only, since the next event rewrites
// the whole sheet.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if ev.Kind == amqp.IncomeUpdated {
		return nil
	}

	err := w.Sync(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExport):
		w.logger.ErrorContext(ctx, "Sheet export failed",
			log.FieldOperation, log.OpExport,
			"kind", ev.Kind,
			log.FieldError, err)
		return nil
	case api.IsTransient(err):
		return fmt.Errorf("sheet sync after %s: %w", ev.Kind, err)
	default:
		w.logger.ErrorContext(ctx, "Sheet sync needs a fresh login, dropping event",
			"kind", ev.Kind,
			log.FieldError, err)
		return nil
	}
}

var errExport = errors.New("export")

// Sync writes the current expense list to the sheet.
func (w *SyncWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	expenses, err := w.source.AllExpenses(ctx, "")
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	res, err := w.exporter.Export(ctx, expenses)
	if err != nil {
		return fmt.Errorf("%w: %w", errExport, err)
	}

	w.logger.InfoContext(ctx, "Sheet synced",
		log.FieldOperation, log.OpExport,
		"rows", res.Rows,
		"range", res.Range)
	return nil
}

// Wrap returns a Consumer that also passes every event to w after the
// handler given to it.
func (w *SyncWorker) Wrap(c Consumer) Consumer {
	return &syncConsumer{inner: c, sync: w}
}

type syncConsumer struct {
	inner Consumer
	sync  *SyncWorker
}

func (c *syncConsumer) ConsumeExpenseEvents(ctx context.Context, handler amqp.Handler) error {
	return c.inner.ConsumeExpenseEvents(ctx, func(ctx context.Context, ev *amqp.ExpenseEvent) error {
		return errors.Join(handler(ctx, ev), c.sync.HandleEvent(ctx, ev))
	})
}
