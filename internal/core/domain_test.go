package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func withNow(t *testing.T, now time.Time) {
	t.Helper()
	prev := NowFunc
	NowFunc = func() time.Time { return now }
	t.Cleanup(func() { NowFunc = prev })
}

func TestDateValidate(t *testing.T) {
	withNow(t, time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC))

	cases := []struct {
		d   Date
		err error
	}{
		{NewDate(2025, 1, 1), nil},
		{NewDate(2025, 6, 15), nil}, // today
		{NewDate(2025, 6, 16), ErrFutureDate},
		{Date{}, ErrInvalidDate},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" food ")
	if err != nil || c != Food {
		t.Fatalf("expected Food, got %q (err=%v)", c, err)
	}
	if _, err := ParseCategory("Rent"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestExpenseInputValidate(t *testing.T) {
	withNow(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	good := ExpenseInput{Amount: Money{Cents: 0}, Category: Health, Date: NewDate(2025, 6, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseInput{
		{Amount: Money{Cents: -1}, Category: Health, Date: NewDate(2025, 6, 1)},
		{Amount: Money{Cents: 100}, Category: "Rent", Date: NewDate(2025, 6, 1)},
		{Amount: Money{Cents: 100}, Category: Health, Date: NewDate(2026, 1, 1)},
		{Amount: Money{Cents: 100}, Category: Health},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpensePatchValidate(t *testing.T) {
	if err := (ExpensePatch{}).Validate(); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	cat := Category("Rent")
	if err := (ExpensePatch{Category: &cat}).Validate(); err == nil {
		t.Fatalf("expected category error")
	}
	amount := Money{Cents: 250}
	if err := (ExpensePatch{Amount: &amount}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestExpensePatchOmitsUnsetFields(t *testing.T) {
	cat := Food
	b, err := json.Marshal(ExpensePatch{Category: &cat})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"category":"Food"}` {
		t.Fatalf("unexpected patch body: %s", b)
	}
}

func TestCredentialsAndSignupValidate(t *testing.T) {
	if err := (Credentials{Username: "alice", Password: "short"}).Validate(); !errors.Is(err, ErrShortPassword) {
		t.Fatalf("expected ErrShortPassword, got %v", err)
	}
	if err := (Credentials{Username: "bob", Password: "longenough"}).Validate(); !errors.Is(err, ErrShortUsername) {
		t.Fatalf("expected ErrShortUsername, got %v", err)
	}
	s := Signup{Username: "alice", Email: "not-an-email", Password: "longenough"}
	if err := s.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	s.Email = "alice@example.com"
	if err := s.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestValidateMessage(t *testing.T) {
	if err := ValidateMessage("  "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	long := make([]byte, MaxNotificationLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidateMessage(string(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestExpenseDecodesServerShape(t *testing.T) {
	body := `{"expense_id":7,"user_id":3,"amount":12.5,"date":"2025-05-02","category":"Food","created_at":"2025-05-02T10:11:12.123456"}`
	var e Expense
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.ID != 7 || e.UserID != 3 || e.Amount.Cents != 1250 || e.Category != Food {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if e.Date.String() != "2025-05-02" {
		t.Fatalf("unexpected date %q", e.Date)
	}
	if e.CreatedAt.Hour() != 10 {
		t.Fatalf("unexpected created_at %v", e.CreatedAt)
	}
}

func TestUserNullIncome(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"user_id":1,"user_name":"alice","email":"a@b.c","net_income":null,"created_at":"2025-01-01T00:00:00"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.NetIncome != nil || u.NetIncomeOrZero().Cents != 0 {
		t.Fatalf("expected no income, got %+v", u.NetIncome)
	}
}
