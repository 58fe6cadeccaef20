// Package store persists the record collection as a single versioned
// snapshot. Writers read a snapshot, modify its records and hand it back;
// the write succeeds only if nobody replaced the collection in between.
//
// Every write rewrites the whole collection, so cost grows with its size.
// This suits collections up to tens of thousands of records.
package store

import (
	"context"

	"github.com/sisilabsai/thesignal/internal/record"
)

// Snapshot is the full record collection at a point in time.
// Records keep insertion order.
type Snapshot struct {
	Records []record.Record
	Version int64

	// etag is the object version seen by the s3 store.
	etag string
}

// Store reads and replaces the record collection.
//
// ReplaceAll succeeds only if the stored version still equals snap.Version;
// on success snap.Version is advanced to the new stored version. A stale
// version yields a CONFLICT error and nothing is written. Other failures
// yield PERSISTENCE errors.
type Store interface {
	GetAll(ctx context.Context) (*Snapshot, error)
	ReplaceAll(ctx context.Context, snap *Snapshot) error
}

// DomainStore keeps the set of trusted publisher domains. Domains are
// stored as given; callers normalize them first.
type DomainStore interface {
	// Domains returns every trusted domain in ascending order, never nil.
	Domains(ctx context.Context) ([]string, error)
	// AddDomain reports whether domain was newly added.
	AddDomain(ctx context.Context, domain string) (bool, error)
	// RemoveDomain reports whether domain was present.
	RemoveDomain(ctx context.Context, domain string) (bool, error)
}

// Backend is a complete persistence backend as built by New.
type Backend interface {
	Store
	DomainStore
}

// cloneRecords deep-copies records so callers never share backing state.
func cloneRecords(in []record.Record) []record.Record {
	out := make([]record.Record, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
