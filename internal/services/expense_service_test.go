package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reina/internal/amqp"
	"reina/internal/api"
	"reina/internal/core"
)

func newExpenseFixture(n int) *fakeAPI {
	f := &fakeAPI{}
	for i := 1; i <= n; i++ {
		cat := core.Food
		if i%2 == 0 {
			cat = core.Transport
		}
		f.expenses = append(f.expenses, core.Expense{
			ID:       int64(i),
			Amount:   money(int64(i) * 100),
			Category: cat,
			Date:     core.NewDate(2025, 3, i),
		})
		f.total = f.total.Add(money(int64(i) * 100))
	}
	f.nextID = int64(n)
	return f
}

func TestExpenseService_ListIsCached(t *testing.T) {
	fake := newExpenseFixture(3)
	svc := NewExpenseService(fake, NewCaches(10, time.Minute, nil), nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		page, err := svc.ListExpenses(ctx, api.ExpenseQuery{Page: 1, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, page.Items, 3)
	}
	assert.Equal(t, 1, fake.listCalls)

	_, err := svc.ListExpenses(ctx, api.ExpenseQuery{Page: 1, Limit: 5, Category: core.Food})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.listCalls, "different query must miss the cache")
}

func TestExpenseService_NoCaches(t *testing.T) {
	fake := newExpenseFixture(1)
	svc := NewExpenseService(fake, nil, nil, nil)

	_, err := svc.ListExpenses(context.Background(), api.ExpenseQuery{})
	require.NoError(t, err)
	_, err = svc.ListExpenses(context.Background(), api.ExpenseQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.listCalls)

	_, err = svc.CreateExpense(context.Background(), core.ExpenseInput{Amount: money(1), Category: core.Food})
	require.NoError(t, err)
}

func TestExpenseService_MutationsInvalidateAndPublish(t *testing.T) {
	fake := newExpenseFixture(2)
	pub := &recordingPublisher{}
	svc := NewExpenseService(fake, NewCaches(10, time.Minute, nil), pub, nil)
	ctx := context.Background()

	_, err := svc.ListExpenses(ctx, api.ExpenseQuery{Page: 1})
	require.NoError(t, err)
	before, err := svc.TotalSpent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), before.Cents)

	created, err := svc.CreateExpense(ctx, core.ExpenseInput{Amount: money(500), Category: core.Health, Date: core.NewDate(2025, 3, 9)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)

	page, err := svc.ListExpenses(ctx, api.ExpenseQuery{Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3, "list must be refetched after create")
	assert.Equal(t, 2, fake.listCalls)

	total, err := svc.TotalSpent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(800), total.Cents)
	assert.Equal(t, 2, fake.totalCalls)

	_, err = svc.UpdateExpense(ctx, 3, core.ExpensePatch{Amount: moneyPtr(600)})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExpense(ctx, 1))

	assert.Equal(t, []amqp.EventKind{amqp.ExpenseCreated, amqp.ExpenseUpdated, amqp.ExpenseDeleted}, pub.kinds())
	assert.Equal(t, int64(1), pub.events[2].ExpenseID)
}

func TestExpenseService_PublishFailureDoesNotFailMutation(t *testing.T) {
	fake := newExpenseFixture(0)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(fake, nil, pub, nil)

	_, err := svc.CreateExpense(context.Background(), core.ExpenseInput{Amount: money(100), Category: core.Food})
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestExpenseService_FailedMutationKeepsCache(t *testing.T) {
	fake := newExpenseFixture(1)
	pub := &recordingPublisher{}
	svc := NewExpenseService(fake, NewCaches(10, time.Minute, nil), pub, nil)
	ctx := context.Background()

	_, err := svc.ListExpenses(ctx, api.ExpenseQuery{})
	require.NoError(t, err)

	fake.writeErr = &api.APIError{StatusCode: 500}
	err = svc.DeleteExpense(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 500, api.StatusCode(err))

	_, err = svc.ListExpenses(ctx, api.ExpenseQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.listCalls)
	assert.Empty(t, pub.events)
}

func TestExpenseService_AggregateFallback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"server error reads as zero", &api.APIError{StatusCode: 500}, nil},
		{"transport error reads as zero", errors.New("connection refused"), nil},
		{"unauthorized reads as zero", &api.APIError{StatusCode: 401}, nil},
		{"expired session escapes", &api.SessionExpiredError{}, api.ErrSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{total: money(999), monthly: money(99), totalErr: tt.err}
			svc := NewExpenseService(fake, NewCaches(10, time.Minute, nil), nil, nil)

			total, err := svc.TotalSpent(context.Background())
			monthly, merr := svc.MonthlySpent(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, merr, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, merr)
			assert.Zero(t, total.Cents)
			assert.Zero(t, monthly.Cents)

			// Fallback zeros are not cached.
			fake.totalErr = nil
			total, err = svc.TotalSpent(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(999), total.Cents)
		})
	}
}

func TestExpenseService_AllExpensesWalksPages(t *testing.T) {
	fake := newExpenseFixture(120)
	svc := NewExpenseService(fake, nil, nil, nil)

	all, err := svc.AllExpenses(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 120)
	assert.Equal(t, 3, fake.listCalls)
	assert.Equal(t, int64(120), all[119].ID)

	fake.listCalls = 0
	food, err := svc.AllExpenses(context.Background(), core.Food)
	require.NoError(t, err)
	assert.Len(t, food, 60)
	assert.Equal(t, 2, fake.listCalls)
}

func TestExpenseService_AllExpensesPropagatesErrors(t *testing.T) {
	fake := newExpenseFixture(3)
	fake.listErr = &api.SessionExpiredError{}
	svc := NewExpenseService(fake, nil, nil, nil)

	_, err := svc.AllExpenses(context.Background(), "")
	assert.ErrorIs(t, err, api.ErrSessionExpired)
}
