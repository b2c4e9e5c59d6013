package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency code")

// SettingsInput carries a partial settings update. Nil fields are left
// untouched.
type SettingsInput struct {
	Currency           *string
	EmailNotifications *bool
}

// ProfileService resolves display preferences. A missing profile never
// blocks a request: the default currency is returned immediately and the
// profile document is created in the background, deduplicated per owner so
// concurrent first requests race to a single write.
type ProfileService struct {
	profiles store.ProfileStore
	logger   *log.Logger
	creates  singleflight.Group
}

func NewProfileService(profiles store.ProfileStore, logger *log.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger.WithComponent(log.ComponentProfile),
	}
}

// ResolveCurrency returns the owner's preferred currency, falling back to
// the default when the profile is missing or unreadable.
func (s *ProfileService) ResolveCurrency(ctx context.Context, ownerID string) core.Currency {
	return s.Resolve(ctx, ownerID).Currency
}

// Resolve returns the owner's profile, substituting defaults when it does
// not exist yet.
func (s *ProfileService) Resolve(ctx context.Context, ownerID string) core.UserProfile {
	record, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read profile, using defaults",
			log.FieldOwnerID, ownerID, log.FieldError, err)
		return core.NormalizeProfile(ownerID, nil)
	}
	if record == nil {
		s.ensureProfileAsync(ownerID)
		return core.NormalizeProfile(ownerID, nil)
	}
	return core.NormalizeProfile(ownerID, record)
}

// UpdateSettings applies a partial settings update. An unknown currency
// code is rejected before anything is written.
func (s *ProfileService) UpdateSettings(ctx context.Context, ownerID string, input SettingsInput) (core.UserProfile, error) {
	changes := core.RawRecord{}
	if input.Currency != nil {
		if !core.SupportedCurrency(*input.Currency) {
			return core.UserProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, *input.Currency)
		}
		changes["currency"] = string(core.ParseCurrency(*input.Currency))
	}
	if input.EmailNotifications != nil {
		changes["emailNotifications"] = *input.EmailNotifications
	}
	if len(changes) == 0 {
		return s.Resolve(ctx, ownerID), nil
	}

	if err := s.profiles.Upsert(ctx, ownerID, changes); err != nil {
		return core.UserProfile{}, fmt.Errorf("update settings: %w", err)
	}
	return s.Resolve(ctx, ownerID), nil
}

// ensureProfileAsync lazily creates the profile document off the request
// path. singleflight collapses concurrent first resolutions to one write.
func (s *ProfileService) ensureProfileAsync(ownerID string) {
	go func() {
		_, _, _ = s.creates.Do(ownerID, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.profiles.Upsert(ctx, ownerID, nil); err != nil {
				s.logger.ErrorContext(ctx, "failed to lazily create profile",
					log.FieldOwnerID, ownerID, log.FieldError, err)
			}
			return nil, nil
		})
	}()
}
