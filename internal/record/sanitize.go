package record

import "github.com/sisilabsai/thesignal/internal/signing"

// SanitizeAuthor normalizes and truncates each subfield of a. It returns nil
// when a is nil or every subfield ends up empty, so "no author" is never
// represented by an empty profile.
func SanitizeAuthor(a *AuthorInput) *AuthorProfile {
	if a == nil {
		return nil
	}
	p := &AuthorProfile{
		Name:   truncate(sanitizeField(a, "name", a.Name), MaxAuthorNameChars),
		Handle: truncate(sanitizeField(a, "handle", a.Handle), MaxAuthorHandleChars),
		URL:    truncate(sanitizeField(a, "url", a.URL), MaxAuthorURLChars),
		Bio:    truncate(sanitizeField(a, "bio", a.Bio), MaxAuthorBioChars),
	}
	if p.Name == "" && p.Handle == "" && p.URL == "" && p.Bio == "" {
		return nil
	}
	return p
}

// sanitizeField drops values that were not strings on the wire.
func sanitizeField(a *AuthorInput, name, value string) string {
	if a.badTypes[name] {
		return ""
	}
	return signing.Normalize(value)
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if CountChars(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
