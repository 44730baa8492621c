package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"reina/internal/api"
	"reina/internal/core"
)

// Dashboard assembles the overview shown by the stats command.
type Dashboard struct {
	expenses      *ExpenseService
	notifications *NotificationService
	profile       ProfileAPI
}

func NewDashboard(expenses *ExpenseService, notifications *NotificationService, profile ProfileAPI) *Dashboard {
	return &Dashboard{expenses: expenses, notifications: notifications, profile: profile}
}

// Load fetches the page, both aggregates, the profile and the notifications
// concurrently and derives every computed figure from them.
func (d *Dashboard) Load(ctx context.Context, q api.ExpenseQuery) (core.Overview, error) {
	var (
		page          core.ExpensePage
		total         core.Money
		monthly       core.Money
		user          core.User
		notifications []core.Notification
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page, err = d.expenses.ListExpenses(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		total, err = d.expenses.TotalSpent(gctx)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = d.expenses.MonthlySpent(gctx)
		return err
	})
	g.Go(func() (err error) {
		user, err = d.profile.Me(gctx)
		return err
	})
	g.Go(func() (err error) {
		notifications, err = d.notifications.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}

	return core.BuildOverview(user, page, total, monthly, notifications), nil
}
