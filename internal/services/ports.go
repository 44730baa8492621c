// Package services layers caching, event publishing and the user-facing
// fallback rules on top of the API client.
package services

import (
	"context"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/core"
)

// ExpenseAPI is the subset of *api.Client used for expenses.
type ExpenseAPI interface {
	ListExpenses(ctx context.Context, q api.ExpenseQuery) (core.ExpensePage, error)
	CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	TotalSpent(ctx context.Context) (core.Money, error)
	MonthlySpent(ctx context.Context) (core.Money, error)
}

// NotificationAPI is the subset of *api.Client used for notifications.
type NotificationAPI interface {
	ListNotifications(ctx context.Context) ([]core.Notification, error)
	AddNotification(ctx context.Context, message string) (core.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) (api.StatusReply, error)
	DeleteAllNotifications(ctx context.Context) (api.StatusReply, error)
}

// ProfileAPI reads and updates the signed-in user.
type ProfileAPI interface {
	Me(ctx context.Context) (core.User, error)
	UpdateIncome(ctx context.Context, income core.Money) (core.User, error)
}

// EventPublisher announces changes to the alert worker. A nil publisher
// disables publishing.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

var (
	_ ExpenseAPI      = (*api.Client)(nil)
	_ NotificationAPI = (*api.Client)(nil)
	_ ProfileAPI      = (*api.Client)(nil)
	_ EventPublisher  = (*amqp.Client)(nil)
)
