// Package memory is an in-process ledger used in tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/carlinf/finance-tracker/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerEntry
}

var _ sheets.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(_ context.Context, entry sheets.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, entry)
	return nil
}

// Rows returns a copy of everything appended so far.
func (l *Ledger) Rows() []sheets.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sheets.LedgerEntry, len(l.rows))
	copy(out, l.rows)
	return out
}
