package services

import (
	"context"
	"sync"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/core"
)

// fakeAPI implements every API port in memory.
type fakeAPI struct {
	mu sync.Mutex

	expenses      []core.Expense
	limit         int
	total         core.Money
	monthly       core.Money
	user          core.User
	notifications []core.Notification
	nextID        int64

	listCalls  int
	totalCalls int
	notifCalls int

	listErr  error
	totalErr error
	meErr    error
	notifErr error
	writeErr error
}

func (f *fakeAPI) ListExpenses(_ context.Context, q api.ExpenseQuery) (core.ExpensePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return core.ExpensePage{}, f.listErr
	}
	limit := q.Limit
	if limit < 1 {
		limit = api.DefaultPageLimit
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	var filtered []core.Expense
	for _, e := range f.expenses {
		if q.Category == "" || e.Category == q.Category {
			filtered = append(filtered, e)
		}
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}
	return core.ExpensePage{
		Items: append([]core.Expense(nil), filtered[start:end]...),
		Total: len(filtered),
		Limit: limit,
		Page:  page,
	}, nil
}

func (f *fakeAPI) CreateExpense(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Expense{}, f.writeErr
	}
	f.nextID++
	e := core.Expense{ID: f.nextID, Amount: in.Amount, Category: in.Category, Date: in.Date}
	f.expenses = append(f.expenses, e)
	f.total = f.total.Add(in.Amount)
	return e, nil
}

func (f *fakeAPI) UpdateExpense(_ context.Context, id int64, patch core.ExpensePatch) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Expense{}, f.writeErr
	}
	for i, e := range f.expenses {
		if e.ID == id {
			if patch.Amount != nil {
				f.expenses[i].Amount = *patch.Amount
			}
			return f.expenses[i], nil
		}
	}
	return core.Expense{}, &api.APIError{StatusCode: 404, Detail: "Expense not found"}
}

func (f *fakeAPI) DeleteExpense(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return &api.APIError{StatusCode: 404, Detail: "Expense not found"}
}

func (f *fakeAPI) TotalSpent(context.Context) (core.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalCalls++
	return f.total, f.totalErr
}

func (f *fakeAPI) MonthlySpent(context.Context) (core.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monthly, f.totalErr
}

func (f *fakeAPI) Me(context.Context) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.meErr
}

func (f *fakeAPI) UpdateIncome(_ context.Context, income core.Money) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.User{}, f.writeErr
	}
	f.user.NetIncome = &income
	return f.user, nil
}

func (f *fakeAPI) ListNotifications(context.Context) ([]core.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifCalls++
	if f.notifErr != nil {
		return nil, f.notifErr
	}
	return append([]core.Notification{}, f.notifications...), nil
}

func (f *fakeAPI) AddNotification(_ context.Context, message string) (core.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Notification{}, f.writeErr
	}
	f.nextID++
	n := core.Notification{ID: f.nextID, Message: message}
	f.notifications = append([]core.Notification{n}, f.notifications...)
	return n, nil
}

func (f *fakeAPI) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].IsRead = true
		}
	}
	return f.writeErr
}

func (f *fakeAPI) DeleteNotification(_ context.Context, id int64) (api.StatusReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			break
		}
	}
	return api.StatusReply{Status: "success"}, f.writeErr
}

func (f *fakeAPI) DeleteAllNotifications(context.Context) (api.StatusReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = nil
	return api.StatusReply{Status: "success"}, f.writeErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func moneyPtr(cents int64) *core.Money {
	m := money(cents)
	return &m
}
