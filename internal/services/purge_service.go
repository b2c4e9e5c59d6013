package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
)

// PurgeService deletes everything an owner has. Each area is purged
// independently so one failure does not leave the others untried; the
// caller gets every failure back at once.
type PurgeService struct {
	transactions store.DocumentStore
	categories   store.DocumentStore
	profiles     store.ProfileStore
	logger       *log.Logger
}

func NewPurgeService(transactions, categories store.DocumentStore, profiles store.ProfileStore, logger *log.Logger) *PurgeService {
	return &PurgeService{
		transactions: transactions,
		categories:   categories,
		profiles:     profiles,
		logger:       logger.WithComponent(log.ComponentService),
	}
}

// PurgeOwner removes the owner's transactions, categories, and profile.
func (s *PurgeService) PurgeOwner(ctx context.Context, ownerID string) error {
	var (
		mu       sync.Mutex
		failures []error
	)
	record := func(area string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		failures = append(failures, fmt.Errorf("%s: %w", area, err))
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record("transactions", s.transactions.PurgeOwner(ctx, ownerID))
		return nil
	})
	g.Go(func() error {
		record("categories", s.categories.PurgeOwner(ctx, ownerID))
		return nil
	})
	g.Go(func() error {
		record("profile", s.profiles.Delete(ctx, ownerID))
		return nil
	})
	_ = g.Wait()

	if len(failures) > 0 {
		err := errors.Join(failures...)
		s.logger.ErrorContext(ctx, "account purge incomplete",
			log.FieldOwnerID, ownerID,
			log.FieldCount, len(failures),
			log.FieldError, err)
		return err
	}

	s.logger.InfoContext(ctx, "account purged", log.FieldOwnerID, ownerID)
	return nil
}
