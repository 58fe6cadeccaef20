// Package signing builds the canonical "signal-v1" message and verifies the
// Ed25519 signatures produced over it by the browser extension.
package signing

import "strings"

// Version is the only supported canonicalization scheme.
const Version = "signal-v1"

// Fields holds the signable content of a submission.
type Fields struct {
	Version     string
	URL         string
	Title       string
	Excerpt     string
	ContentHash string
	CreatedAt   string
}

// Normalize converts CRLF to LF and trims leading/trailing whitespace.
// Signer and verifier must apply it identically before hashing or signing.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// Normalized returns a copy of f with every field normalized.
func (f Fields) Normalized() Fields {
	return Fields{
		Version:     Normalize(f.Version),
		URL:         Normalize(f.URL),
		Title:       Normalize(f.Title),
		Excerpt:     Normalize(f.Excerpt),
		ContentHash: Normalize(f.ContentHash),
		CreatedAt:   Normalize(f.CreatedAt),
	}
}

// CanonicalMessage renders f as six "name:value" lines in fixed order.
// Values are not escaped; field order and count are fixed instead.
func CanonicalMessage(f Fields) string {
	n := f.Normalized()
	lines := []string{
		"version:" + n.Version,
		"url:" + n.URL,
		"title:" + n.Title,
		"excerpt:" + n.Excerpt,
		"contentHash:" + n.ContentHash,
		"createdAt:" + n.CreatedAt,
	}
	return strings.Join(lines, "\n")
}

// MessageBytes returns the UTF-8 bytes that are signed and verified.
func MessageBytes(f Fields) []byte {
	return []byte(CanonicalMessage(f))
}
