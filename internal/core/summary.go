package core

import (
	"fmt"
	"math"
	"sort"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   Category
	Amount Money
}

// DateAmount is the amount spent on a single calendar date.
type DateAmount struct {
	Date   Date
	Amount Money
}

// CategoryShare is a category's percentage of the total, rounded to 2 decimals.
type CategoryShare struct {
	Name    Category
	Percent float64
}

// Overview is the aggregated view shown by the stats command.
type Overview struct {
	User             User
	Page             ExpensePage
	TotalSpent       Money
	MonthlySpent     Money
	Unread           int
	Remaining        Money
	SpentPercentage  float64
	ByCategory       []CategoryAmount
	ByDate           []DateAmount
	Shares           []CategoryShare
	OverBudgetNotice string
}

// TotalPages returns how many pages a listing spans. Zero when limit is not positive.
func (p ExpensePage) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// HasNext reports whether a page after the current one exists.
func (p ExpensePage) HasNext() bool {
	return p.Page < p.TotalPages()
}

// SpendingByCategory sums amounts per category, in order of first appearance.
func SpendingByCategory(expenses []Expense) []CategoryAmount {
	index := map[Category]int{}
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// SpendingByDate sums amounts per date, sorted by date ascending.
func SpendingByDate(expenses []Expense) []DateAmount {
	sums := map[string]*DateAmount{}
	for _, e := range expenses {
		key := e.Date.String()
		da, ok := sums[key]
		if !ok {
			da = &DateAmount{Date: e.Date}
			sums[key] = da
		}
		da.Amount = da.Amount.Add(e.Amount)
	}
	out := make([]DateAmount, 0, len(sums))
	for _, da := range sums {
		out = append(out, *da)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

// CategoryShares converts per-category sums into percentages of their total.
// An empty or zero total yields no shares.
func CategoryShares(byCategory []CategoryAmount) []CategoryShare {
	var total int64
	for _, c := range byCategory {
		total += c.Amount.Cents
	}
	if total <= 0 {
		return nil
	}
	out := make([]CategoryShare, 0, len(byCategory))
	for _, c := range byCategory {
		pct := float64(c.Amount.Cents) / float64(total) * 100
		out = append(out, CategoryShare{Name: c.Name, Percent: math.Round(pct*100) / 100})
	}
	return out
}

// SpentPercentage returns spent as a percentage of income, or 0 without income.
func SpentPercentage(spent, income Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return float64(spent.Cents) * 100 / float64(income.Cents)
}

// OverBudgetMessage returns the alert text when spent exceeds a positive
// income, and "" otherwise.
func OverBudgetMessage(spent, income Money) string {
	if income.Cents <= 0 || spent.Cents <= income.Cents {
		return ""
	}
	return fmt.Sprintf("Your expenses ($%s) have exceeded your net income ($%s)!", spent, income)
}

// UnreadCount counts notifications not yet marked read.
func UnreadCount(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.IsRead {
			n++
		}
	}
	return n
}

// HasUnreadMessage reports whether an unread notification carries msg.
func HasUnreadMessage(ns []Notification, msg string) bool {
	for _, x := range ns {
		if !x.IsRead && x.Message == msg {
			return true
		}
	}
	return false
}

// BuildOverview derives every computed figure from the fetched pieces.
func BuildOverview(user User, page ExpensePage, total, monthly Money, notifications []Notification) Overview {
	income := user.NetIncomeOrZero()
	byCategory := SpendingByCategory(page.Items)
	return Overview{
		User:             user,
		Page:             page,
		TotalSpent:       total,
		MonthlySpent:     monthly,
		Unread:           UnreadCount(notifications),
		Remaining:        income.Sub(total),
		SpentPercentage:  SpentPercentage(total, income),
		ByCategory:       byCategory,
		ByDate:           SpendingByDate(page.Items),
		Shares:           CategoryShares(byCategory),
		OverBudgetNotice: OverBudgetMessage(total, income),
	}
}
