package memory

import (
	"context"
	"fmt"
	"sync"

	"reina/internal/core"
	ports "reina/internal/sheets"
)

var _ ports.Exporter = (*Store)(nil)

// Store keeps the last export in memory. It backs dry runs and tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// Export replaces the stored rows with the rendering of expenses.
func (s *Store) Export(_ context.Context, expenses []core.Expense) (ports.Result, error) {
	rows := ports.Rows(expenses)
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
	return ports.Result{Rows: len(expenses), Range: fmt.Sprintf("memory!A1:D%d", len(rows))}, nil
}

// Rows returns a copy of the last export, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
