package services

import (
	"context"
	"fmt"

	"reina/internal/amqp"
	"reina/internal/core"
	"reina/internal/log"
)

// BudgetAPI is what the over-budget check reads and writes. It bypasses the
// caches so the worker always sees current figures.
type BudgetAPI interface {
	TotalSpent(ctx context.Context) (core.Money, error)
	Me(ctx context.Context) (core.User, error)
	ListNotifications(ctx context.Context) ([]core.Notification, error)
	AddNotification(ctx context.Context, message string) (core.Notification, error)
}

// BudgetWatcher posts an alert notification when spending exceeds income.
type BudgetWatcher struct {
	api    BudgetAPI
	logger *log.Logger
}

func NewBudgetWatcher(client BudgetAPI, logger *log.Logger) *BudgetWatcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetWatcher{api: client, logger: logger.WithComponent(log.ComponentBudget)}
}

// Check adds the over-budget alert unless an unread copy already exists.
// It reports whether a notification was added.
func (w *BudgetWatcher) Check(ctx context.Context) (bool, error) {
	total, err := w.api.TotalSpent(ctx)
	if err != nil {
		return false, fmt.Errorf("read total: %w", err)
	}
	user, err := w.api.Me(ctx)
	if err != nil {
		return false, fmt.Errorf("read profile: %w", err)
	}

	msg := core.OverBudgetMessage(total, user.NetIncomeOrZero())
	if msg == "" {
		return false, nil
	}

	existing, err := w.api.ListNotifications(ctx)
	if err != nil {
		return false, fmt.Errorf("list notifications: %w", err)
	}
	if core.HasUnreadMessage(existing, msg) {
		w.logger.DebugContext(ctx, "Over-budget alert already pending")
		return false, nil
	}

	if _, err := w.api.AddNotification(ctx, msg); err != nil {
		return false, fmt.Errorf("add alert: %w", err)
	}
	w.logger.InfoContext(ctx, "Over-budget alert added",
		"spent_cents", total.Cents,
		"income_cents", user.NetIncomeOrZero().Cents)
	return true, nil
}

// IncomeService updates the user's net income and announces the change.
type IncomeService struct {
	profile   ProfileAPI
	publisher EventPublisher
	logger    *log.Logger
}

func NewIncomeService(profile ProfileAPI, publisher EventPublisher, logger *log.Logger) *IncomeService {
	if logger == nil {
		logger = log.Discard()
	}
	return &IncomeService{profile: profile, publisher: publisher, logger: logger.WithComponent(log.ComponentBudget)}
}

func (s *IncomeService) Set(ctx context.Context, income core.Money) (core.User, error) {
	user, err := s.profile.UpdateIncome(ctx, income)
	if err != nil {
		return core.User{}, fmt.Errorf("update income: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewIncomeEvent(income)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish income event", log.FieldError, err)
		}
	}
	return user, nil
}
