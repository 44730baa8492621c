// Package sheets exports expenses to spreadsheet-like destinations.
package sheets

import (
	"context"
	"strconv"

	"reina/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter replaces the destination's contents with the given expenses.
	Exporter interface {
		Export(ctx context.Context, expenses []core.Expense) (Result, error)
	}

	Result struct {
		// Rows counts data rows written, excluding the header.
		Rows int
		// Range is the written area in A1 notation, if the destination has one.
		Range string
	}
)

// Header is the first row of every export.
var Header = []string{"Date", "Category", "Amount", "Expense ID"}

// Rows renders expenses as cells below Header. Amounts are decimal numbers
// so spreadsheet formulas can sum them.
func Rows(expenses []core.Expense) [][]any {
	out := make([][]any, 0, len(expenses)+1)
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	out = append(out, head)
	for _, e := range expenses {
		out = append(out, []any{
			e.Date.String(),
			string(e.Category),
			e.Amount.Float(),
			strconv.FormatInt(e.ID, 10),
		})
	}
	return out
}
