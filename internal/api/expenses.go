package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"reina/internal/core"
)

// DefaultPageLimit is the page size used when the caller passes none.
const DefaultPageLimit = 5

const statusInsufficientFunds = "insufficient_funds"

// ExpenseQuery selects a page of expenses. Zero values fall back to page 1
// and DefaultPageLimit; an empty Category lists every category.
type ExpenseQuery struct {
	Page     int
	Limit    int
	Category core.Category
}

func (q ExpenseQuery) values() url.Values {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	return v
}

// StatusReply is the acknowledgement body of delete endpoints.
type StatusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func expensePath(id int64) string {
	return "/expense/" + strconv.FormatInt(id, 10)
}

// ListExpenses returns one page of the user's expenses.
func (c *Client) ListExpenses(ctx context.Context, q ExpenseQuery) (core.ExpensePage, error) {
	var page core.ExpensePage
	call := Call{Method: http.MethodGet, Path: "/expenses", Query: q.values()}
	if err := c.Execute(ctx, call, &page); err != nil {
		return core.ExpensePage{}, err
	}
	if page.Items == nil {
		page.Items = []core.Expense{}
	}
	return page, nil
}

// CreateExpense records a new expense.
func (c *Client) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	var e core.Expense
	if err := c.Execute(ctx, Call{Method: http.MethodPost, Path: "/expenses", JSON: in}, &e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// UpdateExpense changes the fields set in patch. A reply refusing the new
// amount is reported as core.ErrInsufficientFunds.
func (c *Client) UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error) {
	if err := patch.Validate(); err != nil {
		return core.Expense{}, err
	}

	var raw json.RawMessage
	if err := c.Execute(ctx, Call{Method: http.MethodPut, Path: expensePath(id), JSON: patch}, &raw); err != nil {
		return core.Expense{}, err
	}

	var status StatusReply
	if err := json.Unmarshal(raw, &status); err == nil && status.Status == statusInsufficientFunds {
		if status.Message != "" {
			return core.Expense{}, fmt.Errorf("%w: %s", core.ErrInsufficientFunds, status.Message)
		}
		return core.Expense{}, core.ErrInsufficientFunds
	}

	var e core.Expense
	if err := json.Unmarshal(raw, &e); err != nil {
		return core.Expense{}, fmt.Errorf("decoding updated expense: %w", err)
	}
	return e, nil
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.Execute(ctx, Call{Method: http.MethodDelete, Path: expensePath(id)}, nil)
}

// TotalSpent returns the sum of every expense. A missing figure reads as zero.
func (c *Client) TotalSpent(ctx context.Context) (core.Money, error) {
	var reply struct {
		Total core.Money `json:"total"`
	}
	if err := c.Execute(ctx, Call{Method: http.MethodGet, Path: "/expenses/total"}, &reply); err != nil {
		return core.Money{}, err
	}
	return reply.Total, nil
}

// MonthlySpent returns the sum of the current month's expenses.
func (c *Client) MonthlySpent(ctx context.Context) (core.Money, error) {
	var reply struct {
		Monthly core.Money `json:"monthly"`
	}
	if err := c.Execute(ctx, Call{Method: http.MethodGet, Path: "/expenses/monthly"}, &reply); err != nil {
		return core.Money{}, err
	}
	return reply.Monthly, nil
}
