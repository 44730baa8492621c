package services

import (
	"context"
	"errors"
	"fmt"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/core"
	"reina/internal/log"
)

// walkPageLimit is the page size used when reading every expense.
const walkPageLimit = 50

// maxWalkPages bounds AllExpenses against a server that never reports an end.
const maxWalkPages = 1000

// ExpenseService orchestrates expense operations across the API, the query
// caches and the event publisher.
type ExpenseService struct {
	api       ExpenseAPI
	caches    *Caches
	publisher EventPublisher
	logger    *log.Logger
}

func NewExpenseService(client ExpenseAPI, caches *Caches, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		api:       client,
		caches:    caches,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

func pageKey(q api.ExpenseQuery) string {
	return fmt.Sprintf("%spage=%d&limit=%d&category=%s", prefixExpenses, q.Page, q.Limit, q.Category)
}

// ListExpenses returns one page, served from cache when fresh.
func (s *ExpenseService) ListExpenses(ctx context.Context, q api.ExpenseQuery) (core.ExpensePage, error) {
	key := pageKey(q)
	if s.caches != nil {
		if page, ok := s.caches.Pages.Get(key); ok {
			return page, nil
		}
	}

	page, err := s.api.ListExpenses(ctx, q)
	if err != nil {
		return core.ExpensePage{}, err
	}
	if s.caches != nil {
		s.caches.Pages.Set(key, page)
	}
	return page, nil
}

// AllExpenses walks every page of the listing, optionally filtered by category.
func (s *ExpenseService) AllExpenses(ctx context.Context, category core.Category) ([]core.Expense, error) {
	var all []core.Expense
	for n := 1; n <= maxWalkPages; n++ {
		page, err := s.ListExpenses(ctx, api.ExpenseQuery{Page: n, Limit: walkPageLimit, Category: category})
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", n, err)
		}
		all = append(all, page.Items...)
		if len(page.Items) == 0 || !page.HasNext() {
			break
		}
	}
	return all, nil
}

// TotalSpent returns the all-time total. Failures other than an expired
// session read as zero.
func (s *ExpenseService) TotalSpent(ctx context.Context) (core.Money, error) {
	return s.aggregate(ctx, "total", s.api.TotalSpent)
}

// MonthlySpent returns the current month's total with the same fallback as TotalSpent.
func (s *ExpenseService) MonthlySpent(ctx context.Context) (core.Money, error) {
	return s.aggregate(ctx, "monthly", s.api.MonthlySpent)
}

func (s *ExpenseService) aggregate(ctx context.Context, name string, fetch func(context.Context) (core.Money, error)) (core.Money, error) {
	key := prefixTotals + name
	if s.caches != nil {
		if m, ok := s.caches.Totals.Get(key); ok {
			return m, nil
		}
	}

	m, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return core.Money{}, err
		}
		s.logger.WarnContext(ctx, "Aggregate unavailable, showing zero",
			"aggregate", name,
			log.FieldError, err)
		return core.Money{}, nil
	}
	if s.caches != nil {
		s.caches.Totals.Set(key, m)
	}
	return m, nil
}

// CreateExpense records a new expense and announces it.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := s.api.CreateExpense(ctx, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.caches.invalidateExpenses()

	s.logger.InfoContext(ctx, "Expense created",
		log.NewFields().WithOperation(log.OpCreate).WithExpense(e.ID, e.Amount.Cents, string(e.Category)).ToSlice()...)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseCreated, e))
	return e, nil
}

// UpdateExpense applies patch to an existing expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error) {
	e, err := s.api.UpdateExpense(ctx, id, patch)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	s.caches.invalidateExpenses()

	if e.ID == 0 {
		e.ID = id
	}
	s.logger.InfoContext(ctx, "Expense updated",
		log.NewFields().WithOperation(log.OpUpdate).WithExpense(e.ID, e.Amount.Cents, string(e.Category)).ToSlice()...)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseUpdated, e))
	return e, nil
}

// DeleteExpense removes an expense and announces it.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.api.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.caches.invalidateExpenses()

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseDeleted, core.Expense{ID: id}))
	return nil
}

// publish never fails the caller: the change is already stored server-side.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"kind", ev.Kind,
			log.FieldExpenseID, ev.ExpenseID,
			log.FieldError, err)
	}
}
