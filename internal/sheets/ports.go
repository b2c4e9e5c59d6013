// Package sheets defines the ledger mirror written by the sync worker.
package sheets

import (
	"context"
	"time"
)

// LedgerEntry is one row of the external ledger. TransactionID makes
// replayed messages detectable by the spreadsheet owner.
type LedgerEntry struct {
	TransactionID string
	OwnerID       string
	Action        string
	OccurredAt    time.Time
	Description   string
	Category      string
	Type          string
	Amount        float64
}

// LedgerWriter appends entries to the ledger.
type LedgerWriter interface {
	Append(ctx context.Context, entry LedgerEntry) error
}
