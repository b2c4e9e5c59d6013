// Package memory is an in-process document store used for local development
// and tests. It implements the full snapshot-subscription contract: every
// write re-delivers the complete current set to each live subscriber.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Config controls backend behavior.
type Config struct {
	// DisableOrderedQueries makes SubscribeOrdered fail with
	// ErrIndexRequired, emulating a backend whose composite index is
	// missing. Used to exercise the subscriber fallback path.
	DisableOrderedQueries bool

	// Clock overrides the write-timestamp source. Nil means time.Now.
	Clock func() time.Time
}

// Store is the in-memory backend.
type Store struct {
	transactions *collection
	categories   *collection
	profiles     *profileStore
}

// New creates an empty in-memory store.
func New(cfg Config) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		transactions: newCollection(clock, cfg.DisableOrderedQueries),
		categories:   newCollection(clock, cfg.DisableOrderedQueries),
		profiles:     &profileStore{clock: clock, docs: make(map[string]core.RawRecord)},
	}
}

func (s *Store) Transactions() store.DocumentStore { return s.transactions }
func (s *Store) Categories() store.DocumentStore   { return s.categories }
func (s *Store) Profiles() store.ProfileStore      { return s.profiles }

func (s *Store) Close(context.Context) error { return nil }

// collection is one owner-scoped document set with snapshot fan-out.
type collection struct {
	mu             sync.Mutex
	clock          func() time.Time
	orderedBlocked bool
	docs           map[string]core.RawRecord
	subs           map[int]*subscription
	nextSub        int
}

type subscription struct {
	ownerID  string
	ordered  bool
	deliver  store.SnapshotFunc
	canceled bool
}

func newCollection(clock func() time.Time, orderedBlocked bool) *collection {
	return &collection{
		clock:          clock,
		orderedBlocked: orderedBlocked,
		docs:           make(map[string]core.RawRecord),
		subs:           make(map[int]*subscription),
	}
}

func (c *collection) Add(_ context.Context, ownerID string, record core.RawRecord) (string, error) {
	c.mu.Lock()
	id := uuid.NewString()
	now := c.clock()

	doc := cloneRecord(record)
	doc["id"] = id
	doc["ownerId"] = ownerID
	doc["createdAt"] = now
	doc["updatedAt"] = now
	c.docs[id] = doc
	c.mu.Unlock()

	c.fanOut()
	return id, nil
}

func (c *collection) Update(_ context.Context, id string, record core.RawRecord) error {
	c.mu.Lock()
	doc, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return store.ErrNotFound
	}
	for k, v := range record {
		doc[k] = v
	}
	doc["id"] = id
	doc["updatedAt"] = c.clock()
	c.mu.Unlock()

	c.fanOut()
	return nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.docs[id]; !ok {
		c.mu.Unlock()
		return store.ErrNotFound
	}
	delete(c.docs, id)
	c.mu.Unlock()

	c.fanOut()
	return nil
}

func (c *collection) Get(_ context.Context, id string) (core.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRecord(doc), nil
}

func (c *collection) List(_ context.Context, ownerID string) ([]core.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(ownerID, false), nil
}

func (c *collection) PurgeOwner(_ context.Context, ownerID string) error {
	c.mu.Lock()
	for id, doc := range c.docs {
		if owner, _ := doc["ownerId"].(string); owner == ownerID {
			delete(c.docs, id)
		}
	}
	c.mu.Unlock()

	c.fanOut()
	return nil
}

func (c *collection) SubscribeOrdered(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	if c.orderedBlocked {
		return nil, store.ErrIndexRequired
	}
	return c.subscribe(ctx, ownerID, true, deliver)
}

func (c *collection) Subscribe(ctx context.Context, ownerID string, deliver store.SnapshotFunc, _ store.ErrorFunc) (store.CancelFunc, error) {
	return c.subscribe(ctx, ownerID, false, deliver)
}

func (c *collection) subscribe(_ context.Context, ownerID string, ordered bool, deliver store.SnapshotFunc) (store.CancelFunc, error) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	sub := &subscription{ownerID: ownerID, ordered: ordered, deliver: deliver}
	c.subs[id] = sub
	initial := c.snapshotLocked(ownerID, ordered)
	c.mu.Unlock()

	// Initial snapshot, then one per change.
	deliver(initial)

	cancel := func() {
		c.mu.Lock()
		sub.canceled = true
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return cancel, nil
}

// fanOut re-delivers the complete current set to every live subscriber.
// Callbacks run outside the lock so consumers may write back in.
func (c *collection) fanOut() {
	c.mu.Lock()
	type delivery struct {
		sub     *subscription
		records []core.RawRecord
	}
	deliveries := make([]delivery, 0, len(c.subs))
	for _, sub := range c.subs {
		deliveries = append(deliveries, delivery{sub, c.snapshotLocked(sub.ownerID, sub.ordered)})
	}
	c.mu.Unlock()

	for _, d := range deliveries {
		c.mu.Lock()
		canceled := d.sub.canceled
		c.mu.Unlock()
		if !canceled {
			d.sub.deliver(d.records)
		}
	}
}

func (c *collection) snapshotLocked(ownerID string, ordered bool) []core.RawRecord {
	records := make([]core.RawRecord, 0)
	for _, doc := range c.docs {
		if owner, _ := doc["ownerId"].(string); owner == ownerID {
			records = append(records, cloneRecord(doc))
		}
	}
	if ordered {
		sort.SliceStable(records, func(i, j int) bool {
			ti, _ := core.RecordTime(records[i])
			tj, _ := core.RecordTime(records[j])
			return tj.Before(ti)
		})
	}
	return records
}

// profileStore keeps one preferences document per owner.
type profileStore struct {
	mu    sync.Mutex
	clock func() time.Time
	docs  map[string]core.RawRecord
}

func (p *profileStore) Get(_ context.Context, ownerID string) (core.RawRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[ownerID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(doc), nil
}

func (p *profileStore) Upsert(_ context.Context, ownerID string, fields core.RawRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	doc, ok := p.docs[ownerID]
	if !ok {
		doc = core.RawRecord{"ownerId": ownerID, "createdAt": now}
		p.docs[ownerID] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	doc["ownerId"] = ownerID
	doc["updatedAt"] = now
	return nil
}

func (p *profileStore) Delete(_ context.Context, ownerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.docs, ownerID)
	return nil
}

func cloneRecord(record core.RawRecord) core.RawRecord {
	clone := make(core.RawRecord, len(record))
	for k, v := range record {
		clone[k] = v
	}
	return clone
}
