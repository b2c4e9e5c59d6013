// Package mongo backs the document store with MongoDB. Live snapshots ride
// the collection's change stream: every relevant event re-runs the owner
// query and redelivers the full set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Config defines the MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	Clock    func() time.Time
}

// Store implements store.Store on a MongoDB database.
type Store struct {
	client       *mongo.Client
	transactions *collectionStore
	categories   *collectionStore
	profiles     *profileStore
}

func New(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:       client,
		transactions: newCollectionStore(db.Collection("transactions"), "occurred_at", clock),
		categories:   newCollectionStore(db.Collection("categories"), "created_at", clock),
		profiles:     &profileStore{coll: db.Collection("profiles"), clock: clock},
	}, nil
}

func (s *Store) Transactions() store.DocumentStore { return s.transactions }
func (s *Store) Categories() store.DocumentStore   { return s.categories }
func (s *Store) Profiles() store.ProfileStore      { return s.profiles }

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// fieldToColumn maps record keys to document field names. Keys that are not
// listed store under their own name.
var fieldToColumn = map[string]string{
	"ownerId":    "owner_id",
	"occurredAt": "occurred_at",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

var columnToField = map[string]string{
	"_id":         "id",
	"owner_id":    "ownerId",
	"occurred_at": "occurredAt",
	"created_at":  "createdAt",
	"updated_at":  "updatedAt",
}

type collectionStore struct {
	coll       *mongo.Collection
	orderField string
	clock      func() time.Time
}

func newCollectionStore(coll *mongo.Collection, orderField string, clock func() time.Time) *collectionStore {
	return &collectionStore{coll: coll, orderField: orderField, clock: clock}
}

func (c *collectionStore) Add(ctx context.Context, ownerID string, record core.RawRecord) (string, error) {
	id := primitive.NewObjectID().Hex()
	now := c.clock().UTC()

	doc := toDocument(record)
	doc["_id"] = id
	doc["owner_id"] = ownerID
	doc["created_at"] = now
	doc["updated_at"] = now

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (c *collectionStore) Update(ctx context.Context, id string, changes core.RawRecord) error {
	set := toDocument(changes)
	set["updated_at"] = c.clock().UTC()
	delete(set, "_id")
	delete(set, "owner_id")
	delete(set, "created_at")

	result, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *collectionStore) Delete(ctx context.Context, id string) error {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *collectionStore) Get(ctx context.Context, id string) (core.RawRecord, error) {
	var doc bson.M
	if err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return toRecord(doc), nil
}

func (c *collectionStore) List(ctx context.Context, ownerID string) ([]core.RawRecord, error) {
	return c.snapshot(ctx, ownerID, false)
}

func (c *collectionStore) PurgeOwner(ctx context.Context, ownerID string) error {
	if _, err := c.coll.DeleteMany(ctx, bson.M{"owner_id": ownerID}); err != nil {
		return fmt.Errorf("purge owner documents: %w", err)
	}
	return nil
}

func (c *collectionStore) SubscribeOrdered(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	return c.subscribe(ctx, ownerID, true, deliver, fail)
}

func (c *collectionStore) Subscribe(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	return c.subscribe(ctx, ownerID, false, deliver, fail)
}

func (c *collectionStore) subscribe(ctx context.Context, ownerID string, ordered bool, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	initial, err := c.snapshot(ctx, ownerID, ordered)
	if err != nil {
		return nil, err
	}

	watchCtx, stop := context.WithCancel(ctx)
	var (
		mu       sync.Mutex
		canceled bool
	)
	guard := func(records []core.RawRecord) {
		mu.Lock()
		done := canceled
		mu.Unlock()
		if !done {
			deliver(records)
		}
	}

	guard(initial)

	go c.watch(watchCtx, ownerID, ordered, guard, fail)

	return func() {
		mu.Lock()
		canceled = true
		mu.Unlock()
		stop()
	}, nil
}

// watch follows the collection's change stream and redelivers the owner's
// full set after every event that touches it.
func (c *collectionStore) watch(ctx context.Context, ownerID string, ordered bool, deliver store.SnapshotFunc, fail store.ErrorFunc) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.M{
		"$or": bson.A{
			bson.M{"fullDocument.owner_id": ownerID},
			bson.M{"operationType": "delete"},
		},
	}}}}

	stream, err := c.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		if fail != nil && ctx.Err() == nil {
			fail(fmt.Errorf("open change stream: %w", err))
		}
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		records, err := c.snapshot(ctx, ownerID, ordered)
		if err != nil {
			if fail != nil && ctx.Err() == nil {
				fail(err)
			}
			continue
		}
		deliver(records)
	}
	if err := stream.Err(); err != nil && fail != nil && ctx.Err() == nil {
		fail(fmt.Errorf("change stream: %w", err))
	}
}

func (c *collectionStore) snapshot(ctx context.Context, ownerID string, ordered bool) ([]core.RawRecord, error) {
	opts := options.Find()
	if ordered {
		// The hint keeps the ordered query honest: without the covering
		// index the server rejects it instead of sorting in memory.
		opts.SetSort(bson.D{{Key: c.orderField, Value: -1}}).
			SetHint(bson.D{{Key: "owner_id", Value: 1}, {Key: c.orderField, Value: -1}})
	}

	cursor, err := c.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		if ordered && isMissingIndex(err) {
			return nil, store.ErrIndexRequired
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var records []core.RawRecord
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		records = append(records, toRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		if ordered && isMissingIndex(err) {
			return nil, store.ErrIndexRequired
		}
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

// isMissingIndex recognizes the server's rejection of a hint that names an
// index the collection does not have.
func isMissingIndex(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == 2 && strings.Contains(cmdErr.Message, "hint") {
			return true
		}
	}
	return strings.Contains(err.Error(), "hint provided does not correspond to an existing index")
}

func toDocument(record core.RawRecord) bson.M {
	doc := bson.M{}
	for k, v := range record {
		if k == "id" {
			continue
		}
		if column, ok := fieldToColumn[k]; ok {
			doc[column] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

func toRecord(doc bson.M) core.RawRecord {
	record := core.RawRecord{}
	for k, v := range doc {
		if ts, ok := v.(primitive.DateTime); ok {
			v = ts.Time().UTC()
		}
		if field, ok := columnToField[k]; ok {
			record[field] = v
			continue
		}
		record[k] = v
	}
	return record
}

type profileStore struct {
	coll  *mongo.Collection
	clock func() time.Time
}

func (p *profileStore) Get(ctx context.Context, ownerID string) (core.RawRecord, error) {
	var doc bson.M
	if err := p.coll.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	record := toRecord(doc)
	record["ownerId"] = ownerID
	delete(record, "id")
	return record, nil
}

func (p *profileStore) Upsert(ctx context.Context, ownerID string, changes core.RawRecord) error {
	existing, err := p.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	now := p.clock().UTC()

	if existing == nil {
		doc := bson.M{
			"_id":                ownerID,
			"currency":           string(core.DefaultCurrency),
			"emailNotifications": true,
			"created_at":         now,
			"updated_at":         now,
		}
		for k, v := range toDocument(changes) {
			if k == "owner_id" || k == "created_at" {
				continue
			}
			doc[k] = v
		}
		doc["updated_at"] = now
		if _, err := p.coll.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	}

	set := toDocument(changes)
	delete(set, "owner_id")
	delete(set, "created_at")
	set["updated_at"] = now
	if _, err := p.coll.UpdateOne(ctx, bson.M{"_id": ownerID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (p *profileStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := p.coll.DeleteOne(ctx, bson.M{"_id": ownerID}); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
