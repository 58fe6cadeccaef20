package record

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/signing"
)

// ErrNotObject is returned when a submission payload is not a JSON object.
var ErrNotObject = stderrors.New("payload must be an object")

// Submission is an inbound signed attestation. Decoding is tolerant of wrong
// JSON types: they are remembered and reported by Validate instead of failing
// the decode, so callers always get the full error list.
type Submission struct {
	Version     string       `json:"version"`
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Excerpt     string       `json:"excerpt"`
	CreatedAt   string       `json:"createdAt"`
	PublicKey   string       `json:"publicKey"`
	Signature   string       `json:"signature"`
	ContentHash string       `json:"contentHash"`
	Author      *AuthorInput `json:"author,omitempty"`

	// authorNotObject is set when "author" was present but not an object.
	authorNotObject bool
	// badTypes holds fields that were present with a non-string value.
	badTypes map[string]bool
}

// AuthorInput is the author profile as submitted, before sanitization.
type AuthorInput struct {
	Name   string `json:"name,omitempty"`
	Handle string `json:"handle,omitempty"`
	URL    string `json:"url,omitempty"`
	Bio    string `json:"bio,omitempty"`

	badTypes map[string]bool
}

// Fields returns the signable fields as submitted (not normalized).
func (s *Submission) Fields() signing.Fields {
	return signing.Fields{
		Version:     s.Version,
		URL:         s.URL,
		Title:       s.Title,
		Excerpt:     s.Excerpt,
		ContentHash: s.ContentHash,
		CreatedAt:   s.CreatedAt,
	}
}

// ParseSubmission decodes a JSON payload. A payload that is not an object
// yields a VALIDATION_FAILED error.
func ParseSubmission(data []byte) (*Submission, error) {
	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewValidationFailed([]string{"Payload must be an object"})
	}
	return &s, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Submission) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	*s = Submission{}
	s.badTypes = decodeStrings(raw, map[string]*string{
		"version":     &s.Version,
		"url":         &s.URL,
		"title":       &s.Title,
		"excerpt":     &s.Excerpt,
		"createdAt":   &s.CreatedAt,
		"publicKey":   &s.PublicKey,
		"signature":   &s.Signature,
		"contentHash": &s.ContentHash,
	})

	if v, ok := raw["author"]; ok && !isNull(v) {
		var a AuthorInput
		if err := json.Unmarshal(v, &a); err != nil {
			s.authorNotObject = true
		} else {
			s.Author = &a
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AuthorInput) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	*a = AuthorInput{}
	a.badTypes = decodeStrings(raw, map[string]*string{
		"name":   &a.Name,
		"handle": &a.Handle,
		"url":    &a.URL,
		"bio":    &a.Bio,
	})
	return nil
}

// decodeObject decodes data into its top-level members.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeStrings fills each target from raw and returns the names of members
// that were present but not strings. JSON null counts as absent.
func decodeStrings(raw map[string]json.RawMessage, targets map[string]*string) map[string]bool {
	var bad map[string]bool
	for name, dst := range targets {
		v, ok := raw[name]
		if !ok || isNull(v) {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			if bad == nil {
				bad = make(map[string]bool)
			}
			bad[name] = true
		}
	}
	return bad
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
