// Package worker mirrors committed transactions into the external ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carlinf/finance-tracker/internal/amqp"
	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/sheets"
	"github.com/carlinf/finance-tracker/internal/store"
)

// SyncWorker consumes transaction sync messages and appends ledger rows.
type SyncWorker struct {
	transactions store.DocumentStore
	ledger       sheets.LedgerWriter
	clock        func() time.Time
}

func NewSyncWorker(transactions store.DocumentStore, ledger sheets.LedgerWriter) *SyncWorker {
	return &SyncWorker{
		transactions: transactions,
		ledger:       ledger,
		clock:        time.Now,
	}
}

// HandleSyncMessage processes one sync message. Upserts load the current
// document from the store, so the ledger always mirrors the committed state
// and a replayed message just appends the same row again.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"owner_id", msg.OwnerID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDelete {
		return w.appendDeletion(ctx, msg)
	}

	record, err := w.transactions.Get(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between publish and consume. The delete message
			// covers the ledger side, nothing to mirror here.
			slog.WarnContext(ctx, "Transaction gone before sync, skipping",
				"id", msg.ID, "owner_id", msg.OwnerID)
			return nil
		}
		return fmt.Errorf("get transaction from store: %w", err)
	}

	tx := core.NormalizeTransaction(record, w.clock())
	entry := sheets.LedgerEntry{
		TransactionID: msg.ID,
		OwnerID:       msg.OwnerID,
		Action:        amqp.ActionUpsert,
		OccurredAt:    tx.OccurredAt,
		Description:   tx.Description,
		Category:      tx.Category,
		Type:          tx.Kind(),
		Amount:        tx.Amount,
	}
	if err := w.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	return nil
}

func (w *SyncWorker) appendDeletion(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	entry := sheets.LedgerEntry{
		TransactionID: msg.ID,
		OwnerID:       msg.OwnerID,
		Action:        amqp.ActionDelete,
		OccurredAt:    msg.Timestamp,
	}
	if err := w.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("append deletion row: %w", err)
	}
	return nil
}
