package testutil

import (
	"testing"

	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/signing"
)

// Signer holds a freshly generated keypair for building signed submissions.
type Signer struct {
	PublicKey string
	Seed      string
}

// NewSigner generates a keypair.
func NewSigner(t *testing.T) *Signer {
	t.Helper()
	pub, seed, err := signing.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return &Signer{PublicKey: pub, Seed: seed}
}

// Fingerprint returns the fingerprint of the signer's key.
func (s *Signer) Fingerprint(t *testing.T) string {
	t.Helper()
	fp, err := signing.Fingerprint(s.PublicKey)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	return fp
}

// Submission returns a correctly hashed and signed submission.
func (s *Signer) Submission(t *testing.T, url, title, excerpt string) *record.Submission {
	t.Helper()
	return s.SubmissionAt(t, url, title, excerpt, "2024-01-01T00:00:00.000Z")
}

// SubmissionAt is Submission with an explicit createdAt.
func (s *Signer) SubmissionAt(t *testing.T, url, title, excerpt, createdAt string) *record.Submission {
	t.Helper()
	sub := &record.Submission{
		Version:     signing.Version,
		URL:         url,
		Title:       title,
		Excerpt:     excerpt,
		CreatedAt:   createdAt,
		PublicKey:   s.PublicKey,
		ContentHash: signing.ContentHash(excerpt),
	}
	s.Resign(t, sub)
	return sub
}

// Resign recomputes the signature of sub after its fields changed.
func (s *Signer) Resign(t *testing.T, sub *record.Submission) {
	t.Helper()
	sig, err := signing.Sign(s.Seed, sub.Fields())
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sub.Signature = sig
}
