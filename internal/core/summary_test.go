package core

import "testing"

func expense(cat Category, date string, cents int64) Expense {
	d, _ := ParseDate(date)
	return Expense{Category: cat, Date: d, Amount: Money{Cents: cents}}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, limit, want int
	}{
		{0, 5, 0},
		{5, 5, 1},
		{6, 5, 2},
		{11, 5, 3},
		{10, 0, 0},
	}
	for _, tc := range cases {
		p := ExpensePage{Total: tc.total, Limit: tc.limit}
		if got := p.TotalPages(); got != tc.want {
			t.Fatalf("total=%d limit=%d expected %d pages, got %d", tc.total, tc.limit, tc.want, got)
		}
	}
	if !(ExpensePage{Total: 6, Limit: 5, Page: 1}).HasNext() {
		t.Fatalf("expected a next page")
	}
}

func TestSpendingByCategoryKeepsFirstSeenOrder(t *testing.T) {
	got := SpendingByCategory([]Expense{
		expense(Transport, "2025-01-02", 300),
		expense(Food, "2025-01-01", 100),
		expense(Transport, "2025-01-03", 200),
	})
	if len(got) != 2 || got[0].Name != Transport || got[0].Amount.Cents != 500 || got[1].Name != Food {
		t.Fatalf("unexpected sums: %+v", got)
	}
}

func TestSpendingByDateSorted(t *testing.T) {
	got := SpendingByDate([]Expense{
		expense(Food, "2025-01-03", 100),
		expense(Food, "2025-01-01", 100),
		expense(Health, "2025-01-03", 50),
	})
	if len(got) != 2 || got[0].Date.String() != "2025-01-01" || got[1].Amount.Cents != 150 {
		t.Fatalf("unexpected series: %+v", got)
	}
}

func TestCategorySharesRounding(t *testing.T) {
	shares := CategoryShares([]CategoryAmount{
		{Name: Food, Amount: Money{Cents: 100}},
		{Name: Health, Amount: Money{Cents: 200}},
	})
	if len(shares) != 2 || shares[0].Percent != 33.33 || shares[1].Percent != 66.67 {
		t.Fatalf("unexpected shares: %+v", shares)
	}
	if CategoryShares(nil) != nil {
		t.Fatalf("expected no shares for empty input")
	}
}

func TestOverBudgetMessage(t *testing.T) {
	if msg := OverBudgetMessage(Money{Cents: 150000}, Money{Cents: 100000}); msg != "Your expenses ($1500.00) have exceeded your net income ($1000.00)!" {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := OverBudgetMessage(Money{Cents: 100}, Money{}); msg != "" {
		t.Fatalf("expected no alert without income, got %q", msg)
	}
	if msg := OverBudgetMessage(Money{Cents: 100}, Money{Cents: 100}); msg != "" {
		t.Fatalf("expected no alert at exactly the income, got %q", msg)
	}
}

func TestBuildOverview(t *testing.T) {
	income := Money{Cents: 1000}
	o := BuildOverview(
		User{UserName: "alice", NetIncome: &income},
		ExpensePage{Items: []Expense{expense(Food, "2025-01-01", 400)}, Total: 1, Limit: 5, Page: 1},
		Money{Cents: 400}, Money{Cents: 400},
		[]Notification{{IsRead: false}, {IsRead: true}},
	)
	if o.Unread != 1 || o.Remaining.Cents != 600 || o.SpentPercentage != 40 || o.OverBudgetNotice != "" {
		t.Fatalf("unexpected overview: %+v", o)
	}
}
