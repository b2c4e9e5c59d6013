// Package live keeps an owner's transaction snapshots flowing to a consumer.
//
// A subscription starts on the store's ordered query. Backends that cannot
// serve it (a missing index, typically) report store.ErrIndexRequired, at
// which point the subscription drops to an unordered query exactly once and
// restores the ordering client-side. The transition is one-way: once on the
// fallback path a subscription never probes the ordered query again.
package live

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Source is the slice of a document store a subscription needs.
type Source interface {
	SubscribeOrdered(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error)
	Subscribe(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error)
}

// Subscriber opens snapshot subscriptions against a Source.
type Subscriber struct {
	source Source
	logger *log.Logger
}

func NewSubscriber(source Source, logger *log.Logger) *Subscriber {
	return &Subscriber{
		source: source,
		logger: logger.WithComponent(log.ComponentLive),
	}
}

// subscription tracks the state of one open listen.
type subscription struct {
	mu       sync.Mutex
	canceled bool
	fallback bool
	inner    store.CancelFunc
}

// Listen delivers the owner's complete record set to onSnapshot, once
// immediately and again after every change, newest first. The returned cancel
// is idempotent and stops further deliveries even if a snapshot is already in
// flight.
func (s *Subscriber) Listen(ctx context.Context, ownerID string, onSnapshot store.SnapshotFunc) (store.CancelFunc, error) {
	sub := &subscription{}

	deliver := func(records []core.RawRecord) {
		sub.mu.Lock()
		done := sub.canceled
		sub.mu.Unlock()
		if done {
			return
		}
		onSnapshot(records)
	}

	fail := func(err error) {
		if s.shouldFallBack(sub, err) {
			s.engageFallback(ctx, ownerID, sub, deliver)
			return
		}
		s.logger.WarnContext(ctx, "live subscription error swallowed",
			log.FieldOwnerID, ownerID, log.FieldError, err)
	}

	cancel, err := s.source.SubscribeOrdered(ctx, ownerID, deliver, fail)
	switch {
	case err == nil:
		// The fail callback may have already torn the primary down and
		// installed the fallback cancel; the primary handle is stale then.
		sub.mu.Lock()
		stale := sub.fallback || sub.canceled
		if !stale {
			sub.inner = cancel
		}
		sub.mu.Unlock()
		if stale {
			cancel()
		}
	case errors.Is(err, store.ErrIndexRequired):
		if ferr := s.startFallback(ctx, ownerID, sub, deliver); ferr != nil {
			return nil, ferr
		}
	default:
		return nil, err
	}

	return func() { sub.cancel() }, nil
}

// shouldFallBack flips the subscription to fallback mode when err is the
// ordered-query rejection and the transition has not happened yet.
func (s *Subscriber) shouldFallBack(sub *subscription, err error) bool {
	if !errors.Is(err, store.ErrIndexRequired) {
		return false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.fallback || sub.canceled {
		return false
	}
	sub.fallback = true
	return true
}

func (s *Subscriber) engageFallback(ctx context.Context, ownerID string, sub *subscription, deliver store.SnapshotFunc) {
	sub.mu.Lock()
	prev := sub.inner
	sub.inner = nil
	sub.mu.Unlock()
	if prev != nil {
		prev()
	}
	if err := s.startFallback(ctx, ownerID, sub, deliver); err != nil {
		s.logger.ErrorContext(ctx, "fallback subscription failed",
			log.FieldOwnerID, ownerID, log.FieldError, err)
	}
}

func (s *Subscriber) startFallback(ctx context.Context, ownerID string, sub *subscription, deliver store.SnapshotFunc) error {
	sub.mu.Lock()
	sub.fallback = true
	done := sub.canceled
	sub.mu.Unlock()
	if done {
		return nil
	}

	s.logger.WarnContext(ctx, "ordered query unavailable, sorting client-side",
		log.FieldOwnerID, ownerID)

	ordered := func(records []core.RawRecord) {
		deliver(sortNewestFirst(records))
	}
	swallow := func(err error) {
		s.logger.WarnContext(ctx, "live subscription error swallowed",
			log.FieldOwnerID, ownerID, log.FieldError, err)
	}

	cancel, err := s.source.Subscribe(ctx, ownerID, ordered, swallow)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	if sub.canceled {
		sub.mu.Unlock()
		cancel()
		return nil
	}
	sub.inner = cancel
	sub.mu.Unlock()
	return nil
}

func (sub *subscription) cancel() {
	sub.mu.Lock()
	if sub.canceled {
		sub.mu.Unlock()
		return
	}
	sub.canceled = true
	inner := sub.inner
	sub.inner = nil
	sub.mu.Unlock()
	if inner != nil {
		inner()
	}
}

// sortNewestFirst orders a snapshot by record time descending without
// touching the input slice. Records with no usable timestamp carry the zero
// time and drop to the end.
func sortNewestFirst(records []core.RawRecord) []core.RawRecord {
	out := make([]core.RawRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := core.RecordTime(out[i])
		tj, _ := core.RecordTime(out[j])
		return ti.After(tj)
	})
	return out
}
