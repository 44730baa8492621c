package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	Food      Category = "Food"
	Savings   Category = "Savings"
	Health    Category = "Health"
	Education Category = "Education"
	Transport Category = "Transport"
	Clothing  Category = "Clothing"
)

// MaxNotificationLength mirrors the server-side limit on notification messages.
const MaxNotificationLength = 200

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

type (
	Category string

	Expense struct {
		ID        int64     `json:"expense_id"`
		UserID    int64     `json:"user_id"`
		Amount    Money     `json:"amount"`
		Category  Category  `json:"category"`
		Date      Date      `json:"date"`
		CreatedAt Timestamp `json:"created_at"`
	}

	// ExpenseInput is the payload for creating an expense.
	ExpenseInput struct {
		Amount   Money    `json:"amount"`
		Category Category `json:"category"`
		Date     Date     `json:"Date"`
	}

	// ExpensePatch carries the fields to change on an existing expense.
	// Nil fields are left untouched by the server.
	ExpensePatch struct {
		Amount   *Money    `json:"amount,omitempty"`
		Category *Category `json:"category,omitempty"`
		Date     *Date     `json:"Date,omitempty"`
	}

	ExpensePage struct {
		Items []Expense `json:"items"`
		Total int       `json:"total"`
		Limit int       `json:"limit"`
		Page  int       `json:"page"`
	}

	Notification struct {
		ID        int64     `json:"notification_id"`
		UserID    int64     `json:"user_id"`
		Message   string    `json:"message"`
		IsRead    bool      `json:"is_read"`
		CreatedAt Timestamp `json:"created_at"`
	}

	User struct {
		ID        int64     `json:"user_id"`
		UserName  string    `json:"user_name"`
		Email     string    `json:"email"`
		NetIncome *Money    `json:"net_income"`
		CreatedAt Timestamp `json:"created_at"`
	}

	Credentials struct {
		Username string
		Password string
	}

	Signup struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCategory   = errors.New("category must be one of: Food, Savings, Health, Education, Transport, Clothing")
	ErrInvalidDate       = errors.New("invalid date")
	ErrFutureDate        = errors.New("date cannot be in the future")
	ErrEmptyPatch        = errors.New("nothing to update")
	ErrEmptyMessage      = errors.New("empty notification message")
	ErrMessageTooLong    = fmt.Errorf("notification message too long (max %d characters)", MaxNotificationLength)
	ErrShortUsername     = errors.New("username must be at least 5 characters")
	ErrShortPassword     = errors.New("password must be at least 8 characters")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInsufficientFunds = errors.New("updated amount exceeds net income")
)

// Categories returns every accepted category in display order.
func Categories() []Category {
	return []Category{Food, Savings, Health, Education, Transport, Clothing}
}

// ParseCategory matches s case-insensitively against the accepted categories.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func (c Category) Validate() error {
	_, err := ParseCategory(string(c))
	return err
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate rejects zero dates and dates after today.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	now := NowFunc()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Time.After(today) {
		return ErrFutureDate
	}
	return nil
}

func (in ExpenseInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if err := in.Category.Validate(); err != nil {
		return err
	}
	return in.Date.Validate()
}

func (p ExpensePatch) Validate() error {
	if p.Amount == nil && p.Category == nil && p.Date == nil {
		return ErrEmptyPatch
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := p.Category.Validate(); err != nil {
			return err
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMessage checks a notification message against the server limits.
func ValidateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return ErrEmptyMessage
	}
	if len(msg) > MaxNotificationLength {
		return ErrMessageTooLong
	}
	return nil
}

func (c Credentials) Validate() error {
	if len(strings.TrimSpace(c.Username)) < 5 {
		return ErrShortUsername
	}
	if len(c.Password) < 8 {
		return ErrShortPassword
	}
	return nil
}

func (s Signup) Validate() error {
	if err := (Credentials{Username: s.Username, Password: s.Password}).Validate(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// NetIncomeOrZero returns the user's net income, or zero when unset.
func (u User) NetIncomeOrZero() Money {
	if u.NetIncome == nil {
		return Money{}
	}
	return *u.NetIncome
}
