// Package services orchestrates store writes, validation, and the async
// sync pipeline behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/carlinf/finance-tracker/internal/amqp"
	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
)

// SyncPublisher publishes transaction sync events. *amqp.Client satisfies
// it; a nil publisher disables the pipeline.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id, ownerID, action string) error
}

// TransactionInput carries user-submitted transaction fields. Amount is
// unsigned; Type selects the sign on write.
type TransactionInput struct {
	Amount      float64
	Category    string
	Description string
	Type        string
	OccurredAt  time.Time
}

// TransactionService validates and persists transactions, then publishes a
// sync event per committed write. Publishing never fails the request; the
// local write is the source of truth.
type TransactionService struct {
	transactions store.DocumentStore
	publisher    SyncPublisher
	logger       *log.Logger
	clock        func() time.Time
}

func NewTransactionService(transactions store.DocumentStore, publisher SyncPublisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		publisher:    publisher,
		logger:       logger.WithComponent(log.ComponentService),
		clock:        time.Now,
	}
}

func (s *TransactionService) Create(ctx context.Context, ownerID string, input TransactionInput) (core.Transaction, error) {
	if err := core.ValidateTransactionInput(input.Description, input.Amount, input.Type, input.OccurredAt); err != nil {
		return core.Transaction{}, err
	}

	record := core.RawRecord{
		"amount":      core.SignedAmount(input.Amount, input.Type),
		"category":    input.Category,
		"description": input.Description,
		"type":        input.Type,
		"occurredAt":  input.OccurredAt,
	}

	id, err := s.transactions.Add(ctx, ownerID, record)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishSync(ctx, id, ownerID, amqp.ActionUpsert)
	return s.Get(ctx, ownerID, id)
}

func (s *TransactionService) Update(ctx context.Context, ownerID, id string, input TransactionInput) (core.Transaction, error) {
	if err := core.ValidateTransactionInput(input.Description, input.Amount, input.Type, input.OccurredAt); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return core.Transaction{}, err
	}

	changes := core.RawRecord{
		"amount":      core.SignedAmount(input.Amount, input.Type),
		"category":    input.Category,
		"description": input.Description,
		"type":        input.Type,
		"occurredAt":  input.OccurredAt,
	}
	if err := s.transactions.Update(ctx, id, changes); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.publishSync(ctx, id, ownerID, amqp.ActionUpsert)
	return s.Get(ctx, ownerID, id)
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.transactions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishSync(ctx, id, ownerID, amqp.ActionDelete)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	record, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.NormalizeTransaction(record, s.clock()), nil
}

// List returns the owner's transactions newest first.
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	records, err := s.transactions.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.SortedByOccurredDesc(core.NormalizeTransactions(records, s.clock())), nil
}

// owned loads a record and hides documents belonging to other owners behind
// ErrNotFound.
func (s *TransactionService) owned(ctx context.Context, ownerID, id string) (core.RawRecord, error) {
	record, err := s.transactions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner, _ := record["ownerId"].(string); owner != ownerID {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func (s *TransactionService) publishSync(ctx context.Context, id, ownerID, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id, ownerID, action); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldDocumentID, id,
			log.FieldOwnerID, ownerID,
			log.FieldError, err)
	}
}
