// Package record defines the persisted attestation record and the inbound
// submission it is built from.
package record

import (
	"time"

	"github.com/sisilabsai/thesignal/internal/signing"
)

// TimeLayout is the ISO-8601 form used for server timestamps (millisecond
// precision, UTC, "Z" suffix).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// AuthorProfile is the optional, unsigned profile attached to a record.
type AuthorProfile struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	URL    string `json:"url"`
	Bio    string `json:"bio"`
}

// Record is a verified attestation as persisted.
// Only Author may change after creation.
type Record struct {
	// ID is a ULID assigned at ingestion
	ID string `json:"id"`

	Version     string `json:"version"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt"`
	ContentHash string `json:"contentHash"`

	// CreatedAt is the client-asserted signing time, as signed
	CreatedAt string `json:"createdAt"`

	// ReceivedAt is the server time of ingestion (TimeLayout)
	ReceivedAt string `json:"receivedAt"`

	// PublicKey and Signature are base64, stored exactly as supplied
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`

	// Fingerprint is hex(SHA-256(public key bytes))
	Fingerprint string `json:"fingerprint"`

	// CanonicalMessage is the exact string that was verified
	CanonicalMessage string `json:"canonicalMessage"`

	Author *AuthorProfile `json:"author"`
}

// Fields returns the signable fields of r.
func (r *Record) Fields() signing.Fields {
	return signing.Fields{
		Version:     r.Version,
		URL:         r.URL,
		Title:       r.Title,
		Excerpt:     r.Excerpt,
		ContentHash: r.ContentHash,
		CreatedAt:   r.CreatedAt,
	}
}

// ReceivedTime parses ReceivedAt. Unparseable values sort as the zero time.
func (r *Record) ReceivedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.ReceivedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Author != nil {
		a := *r.Author
		r.Author = &a
	}
	return r
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
