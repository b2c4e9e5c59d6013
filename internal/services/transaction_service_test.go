package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
	"github.com/carlinf/finance-tracker/internal/store/memory"
)

type fakePublisher struct {
	published []string
	actions   []string
	err       error
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, id, _, action string) error {
	f.published = append(f.published, id)
	f.actions = append(f.actions, action)
	return f.err
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func validInput() TransactionInput {
	return TransactionInput{
		Amount:      89.32,
		Category:    "Food",
		Description: "groceries",
		Type:        core.TypeExpense,
		OccurredAt:  time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateStoresSignedAmountAndPublishes(t *testing.T) {
	backend := memory.New(memory.Config{})
	pub := &fakePublisher{}
	svc := NewTransactionService(backend.Transactions(), pub, testLogger())

	tx, err := svc.Create(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tx.Amount != -89.32 {
		t.Fatalf("expense must be stored negative, got %v", tx.Amount)
	}
	if tx.OwnerID != "owner-1" || tx.Category != "Food" {
		t.Fatalf("transaction fields wrong: %+v", tx)
	}
	if len(pub.published) != 1 || pub.published[0] != tx.ID {
		t.Fatalf("sync event not published: %v", pub.published)
	}
}

func TestCreateRejectsInvalidInputBeforeWrite(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewTransactionService(backend.Transactions(), nil, testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*TransactionInput)
		wantErr error
	}{
		{"empty description", func(in *TransactionInput) { in.Description = "  " }, core.ErrEmptyDescription},
		{"zero amount", func(in *TransactionInput) { in.Amount = 0 }, core.ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = -5 }, core.ErrInvalidAmount},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"zero date", func(in *TransactionInput) { in.OccurredAt = time.Time{} }, core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			if _, err := svc.Create(ctx, "owner-1", input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}

	records, _ := backend.Transactions().List(ctx, "owner-1")
	if len(records) != 0 {
		t.Fatalf("rejected input must not reach the store, found %d records", len(records))
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	backend := memory.New(memory.Config{})
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(backend.Transactions(), pub, testLogger())

	tx, err := svc.Create(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if tx.ID == "" {
		t.Fatalf("transaction not saved")
	}
}

func TestUpdateChecksOwnership(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewTransactionService(backend.Transactions(), nil, testLogger())
	ctx := context.Background()

	tx, err := svc.Create(ctx, "owner-1", validInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Update(ctx, "owner-2", tx.ID, validInput()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign documents must look missing, got %v", err)
	}

	input := validInput()
	input.Amount = 120
	input.Type = core.TypeIncome
	updated, err := svc.Update(ctx, "owner-1", tx.ID, input)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Amount != 120 {
		t.Fatalf("income must be stored positive, got %v", updated.Amount)
	}
}

func TestDeletePublishesDeletion(t *testing.T) {
	backend := memory.New(memory.Config{})
	pub := &fakePublisher{}
	svc := NewTransactionService(backend.Transactions(), pub, testLogger())
	ctx := context.Background()

	tx, _ := svc.Create(ctx, "owner-1", validInput())

	if err := svc.Delete(ctx, "owner-2", tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign delete must look missing, got %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", tx.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if pub.actions[len(pub.actions)-1] != "delete" {
		t.Fatalf("deletion event not published: %v", pub.actions)
	}
	if _, err := svc.Get(ctx, "owner-1", tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted transaction still readable")
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewTransactionService(backend.Transactions(), nil, testLogger())
	ctx := context.Background()

	older := validInput()
	older.OccurredAt = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	newer := validInput()
	newer.OccurredAt = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	svc.Create(ctx, "owner-1", older)
	svc.Create(ctx, "owner-1", newer)

	txs, err := svc.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if !txs[0].OccurredAt.After(txs[1].OccurredAt) {
		t.Fatalf("not newest first: %v then %v", txs[0].OccurredAt, txs[1].OccurredAt)
	}
}
