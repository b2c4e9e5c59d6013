package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/store/memory"
)

func TestResolveCurrencyDefaultsImmediately(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewProfileService(backend.Profiles(), testLogger())
	ctx := context.Background()

	if got := svc.ResolveCurrency(ctx, "owner-1"); got != core.DefaultCurrency {
		t.Fatalf("missing profile must resolve to the default currency, got %v", got)
	}

	// The lazy create runs in the background; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		record, err := backend.Profiles().Get(ctx, "owner-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if record != nil {
			if record["currency"] != "USD" {
				t.Fatalf("lazily created profile has currency %v", record["currency"])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("profile was never lazily created")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestResolveCurrencyReadsExistingProfile(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewProfileService(backend.Profiles(), testLogger())
	ctx := context.Background()

	if err := backend.Profiles().Upsert(ctx, "owner-1", core.RawRecord{"currency": "EUR"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	if got := svc.ResolveCurrency(ctx, "owner-1"); got != core.EUR {
		t.Fatalf("want EUR, got %v", got)
	}
}

func TestUpdateSettingsRejectsUnknownCurrency(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewProfileService(backend.Profiles(), testLogger())
	ctx := context.Background()

	bad := "DOGE"
	if _, err := svc.UpdateSettings(ctx, "owner-1", SettingsInput{Currency: &bad}); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("want ErrUnsupportedCurrency, got %v", err)
	}

	record, _ := backend.Profiles().Get(ctx, "owner-1")
	if record != nil {
		t.Fatalf("rejected update must not create a profile")
	}
}

func TestUpdateSettingsPartialUpdate(t *testing.T) {
	backend := memory.New(memory.Config{})
	svc := NewProfileService(backend.Profiles(), testLogger())
	ctx := context.Background()

	currency := "inr"
	profile, err := svc.UpdateSettings(ctx, "owner-1", SettingsInput{Currency: &currency})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if profile.Currency != core.INR {
		t.Fatalf("currency code must be normalized, got %v", profile.Currency)
	}
	if !profile.EmailNotifications {
		t.Fatalf("email notifications must default on")
	}

	off := false
	profile, err = svc.UpdateSettings(ctx, "owner-1", SettingsInput{EmailNotifications: &off})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if profile.EmailNotifications {
		t.Fatalf("email notifications not turned off")
	}
	if profile.Currency != core.INR {
		t.Fatalf("partial update clobbered currency: %v", profile.Currency)
	}
}
