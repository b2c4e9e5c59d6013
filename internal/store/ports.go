// Package store defines the ports to the document backend that owns
// transaction, category, and profile records. The backend itself is an
// external collaborator; implementations live in the subpackages (memory,
// sqlite, mongo) and are selected by configuration.
package store

import (
	"context"
	"errors"

	"github.com/carlinf/finance-tracker/internal/core"
)

var (
	// ErrNotFound reports a document id that does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrIndexRequired reports that the backend rejected an ordered query
	// because the index it needs does not exist. Subscribers react by
	// falling back to an unordered query with client-side sorting.
	ErrIndexRequired = errors.New("ordered query requires a missing index")
)

// SnapshotFunc receives the complete current contents of a collection.
// Every delivery is authoritative and total, never a diff.
type SnapshotFunc func(records []core.RawRecord)

// ErrorFunc receives asynchronous subscription failures.
type ErrorFunc func(err error)

// CancelFunc tears down a subscription. It is idempotent; after it returns,
// no further snapshot or error callbacks occur.
type CancelFunc func()

// DocumentStore is an owner-scoped document collection.
type DocumentStore interface {
	// Add inserts a record, assigns its id, and stamps createdAt and
	// updatedAt with the write time.
	Add(ctx context.Context, ownerID string, record core.RawRecord) (string, error)

	// Update merges fields into an existing record and re-stamps updatedAt.
	Update(ctx context.Context, id string, record core.RawRecord) error

	// Delete removes a record permanently. No tombstone remains.
	Delete(ctx context.Context, id string) error

	// Get returns a single record by id, or ErrNotFound.
	Get(ctx context.Context, id string) (core.RawRecord, error)

	// List returns every record owned by ownerID, unordered.
	List(ctx context.Context, ownerID string) ([]core.RawRecord, error)

	// PurgeOwner removes every record owned by ownerID.
	PurgeOwner(ctx context.Context, ownerID string) error

	// SubscribeOrdered opens a snapshot stream sorted by occurredAt
	// descending. The full current set is delivered immediately and again
	// after every change. Fails with ErrIndexRequired (directly or through
	// the error callback) when the backend cannot serve the ordering.
	SubscribeOrdered(ctx context.Context, ownerID string, deliver SnapshotFunc, fail ErrorFunc) (CancelFunc, error)

	// Subscribe is the unordered variant of SubscribeOrdered.
	Subscribe(ctx context.Context, ownerID string, deliver SnapshotFunc, fail ErrorFunc) (CancelFunc, error)
}

// ProfileStore holds at most one preferences document per owner. The
// one-per-owner invariant is enforced by Upsert's read-check-then-write,
// not by a backend uniqueness constraint.
type ProfileStore interface {
	// Get returns the owner's profile document, or nil without error when
	// none exists yet.
	Get(ctx context.Context, ownerID string) (core.RawRecord, error)

	// Upsert creates the profile if missing, otherwise merges the given
	// fields into the existing document. updatedAt is re-stamped either way.
	Upsert(ctx context.Context, ownerID string, fields core.RawRecord) error

	// Delete removes the owner's profile. Missing profiles are not an error.
	Delete(ctx context.Context, ownerID string) error
}

// Store bundles the three collections of one backend.
type Store interface {
	Transactions() DocumentStore
	Categories() DocumentStore
	Profiles() ProfileStore
	Close(ctx context.Context) error
}
