package record

import (
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/sisilabsai/thesignal/internal/signing"
)

// Field limits, in characters (Unicode code points).
const (
	MaxTitleChars   = 200
	MaxExcerptChars = 2000

	MaxAuthorNameChars   = 80
	MaxAuthorHandleChars = 40
	MaxAuthorURLChars    = 200
	MaxAuthorBioChars    = 280
)

// createdAtLayouts are the accepted createdAt formats. time.Parse accepts a
// fractional second after the seconds field even when the layout omits it.
var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// Validate runs every structural check on s and returns all failures.
// An empty result means s may proceed to hashing and signature checks.
// Only cheap checks run here; nothing is hashed or verified.
func Validate(s *Submission) []string {
	if s == nil {
		return []string{"Payload must be an object"}
	}

	var errs []string
	if s.Version != signing.Version || s.badTypes["version"] {
		errs = append(errs, "Unsupported version")
	}
	if s.badTypes["url"] || !IsValidURL(s.URL) {
		errs = append(errs, "Invalid url")
	}
	if s.badTypes["title"] || signing.Normalize(s.Title) == "" || CountChars(s.Title) > MaxTitleChars {
		errs = append(errs, "Invalid title")
	}
	if s.badTypes["excerpt"] || signing.Normalize(s.Excerpt) == "" || CountChars(s.Excerpt) > MaxExcerptChars {
		errs = append(errs, "Invalid excerpt")
	}
	if s.badTypes["createdAt"] || !isValidDate(s.CreatedAt) {
		errs = append(errs, "Invalid createdAt")
	}
	if s.badTypes["publicKey"] || s.PublicKey == "" {
		errs = append(errs, "Invalid publicKey")
	}
	if s.badTypes["signature"] || s.Signature == "" {
		errs = append(errs, "Invalid signature")
	}
	if s.badTypes["contentHash"] || s.ContentHash == "" {
		errs = append(errs, "Invalid contentHash")
	}

	if s.authorNotObject {
		return append(errs, "Invalid author profile")
	}
	return append(errs, ValidateAuthor(s.Author)...)
}

// ValidateAuthor checks each author subfield independently. Empty subfields
// are skipped; a nil author is valid.
func ValidateAuthor(a *AuthorInput) []string {
	if a == nil {
		return nil
	}

	var errs []string
	if a.badTypes["name"] || CountChars(a.Name) > MaxAuthorNameChars {
		errs = append(errs, "Invalid author name")
	}
	if a.badTypes["handle"] || CountChars(a.Handle) > MaxAuthorHandleChars {
		errs = append(errs, "Invalid author handle")
	}
	if a.badTypes["url"] || (a.URL != "" && (CountChars(a.URL) > MaxAuthorURLChars || !IsValidURL(a.URL))) {
		errs = append(errs, "Invalid author url")
	}
	if a.badTypes["bio"] || CountChars(a.Bio) > MaxAuthorBioChars {
		errs = append(errs, "Invalid author bio")
	}
	return errs
}

// IsValidURL reports whether s is an absolute http or https URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(signing.Normalize(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CountChars returns the character count as runes (not bytes).
func CountChars(s string) int {
	return utf8.RuneCountInString(s)
}

func isValidDate(s string) bool {
	s = signing.Normalize(s)
	if s == "" {
		return false
	}
	for _, layout := range createdAtLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
