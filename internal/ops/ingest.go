package ops

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/logging"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/signing"
	"github.com/sisilabsai/thesignal/internal/store"
)

// IngestOutput contains the result of the Ingest operation.
type IngestOutput struct {
	Record record.Record

	// Duplicate is set when an existing record was returned.
	Duplicate bool
	// Exact is set when the duplicate matched on signature and public key.
	Exact bool
	// Created is set when a new record was appended.
	Created bool
}

// IngestResponse is the wire shape of an ingest result: the record itself,
// plus "duplicate": true for semantic duplicates.
type IngestResponse struct {
	record.Record
	Duplicate bool `json:"duplicate,omitempty"`
}

// Response returns the wire shape of o.
func (o *IngestOutput) Response() IngestResponse {
	return IngestResponse{Record: o.Record, Duplicate: o.Duplicate && !o.Exact}
}

// Ingester verifies submissions and appends them to a store, collapsing
// duplicates. It is safe for concurrent use; writes are serialized.
type Ingester struct {
	store store.Store
	now   func() time.Time
	log   logging.Logger

	mu sync.Mutex
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithClock overrides the receive-time clock.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

// WithLogger sets the logger for ingestion outcomes.
func WithLogger(l logging.Logger) Option {
	return func(i *Ingester) { i.log = l }
}

// NewIngester creates an Ingester writing to s.
func NewIngester(s store.Store, opts ...Option) *Ingester {
	i := &Ingester{
		store: s,
		now:   time.Now,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest validates, hash-checks and signature-verifies sub, then stores it.
//
// An exact duplicate (same signature and public key) is returned unchanged.
// A semantic duplicate (same public key, content hash and url) is returned
// with its author replaced when sub carries a non-empty profile. Anything
// else becomes a new record.
func (i *Ingester) Ingest(ctx context.Context, sub *record.Submission) (*IngestOutput, error) {
	if errs := record.Validate(sub); len(errs) > 0 {
		return nil, errors.NewValidationFailed(errs)
	}

	fields := sub.Fields()
	if !signing.HashMatches(fields.ContentHash, fields.Excerpt) {
		return nil, errors.NewHashMismatch(fields.ContentHash, signing.ContentHash(fields.Excerpt))
	}

	message := signing.CanonicalMessage(fields)
	if !signing.Verify(sub.PublicKey, sub.Signature, []byte(message)) {
		return nil, errors.NewInvalidSignature()
	}

	fingerprint, err := signing.Fingerprint(sub.PublicKey)
	if err != nil {
		// Verify already decoded the key.
		return nil, errors.NewInvalidSignature()
	}

	norm := fields.Normalized()
	author := record.SanitizeAuthor(sub.Author)
	log := i.log.With("fingerprint", signing.ShortFingerprint(fingerprint))

	i.mu.Lock()
	defer i.mu.Unlock()

	snap, err := i.store.GetAll(ctx)
	if err != nil {
		log.Error(ctx, "load records failed", "error", err)
		return nil, err
	}

	for idx := range snap.Records {
		r := &snap.Records[idx]
		if r.Signature == sub.Signature && r.PublicKey == sub.PublicKey {
			log.Debug(ctx, "exact duplicate", "id", r.ID)
			return &IngestOutput{Record: r.Clone(), Duplicate: true, Exact: true}, nil
		}
	}

	for idx := range snap.Records {
		r := &snap.Records[idx]
		if r.PublicKey != sub.PublicKey || r.ContentHash != norm.ContentHash || r.URL != norm.URL {
			continue
		}
		if author != nil {
			r.Author = author
			if err := i.store.ReplaceAll(ctx, snap); err != nil {
				log.Error(ctx, "update author failed", "id", r.ID, "error", err)
				return nil, err
			}
			log.Info(ctx, "author updated on duplicate", "id", r.ID)
		} else {
			log.Debug(ctx, "semantic duplicate", "id", r.ID)
		}
		return &IngestOutput{Record: r.Clone(), Duplicate: true}, nil
	}

	now := i.now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rec := record.Record{
		ID:               id,
		Version:          norm.Version,
		URL:              norm.URL,
		Title:            norm.Title,
		Excerpt:          norm.Excerpt,
		ContentHash:      norm.ContentHash,
		CreatedAt:        norm.CreatedAt,
		ReceivedAt:       record.FormatTime(now),
		PublicKey:        sub.PublicKey,
		Signature:        sub.Signature,
		Fingerprint:      fingerprint,
		CanonicalMessage: message,
		Author:           author,
	}

	snap.Records = append(snap.Records, rec)
	if err := i.store.ReplaceAll(ctx, snap); err != nil {
		log.Error(ctx, "store record failed", "id", id, "error", err)
		return nil, err
	}
	log.Info(ctx, "record stored", "id", id)

	return &IngestOutput{Record: rec.Clone(), Created: true}, nil
}

// generateULID generates a new ULID stamped with t.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
