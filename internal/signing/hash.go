package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// ShortFingerprintLen is the display length used by listings.
const ShortFingerprintLen = 12

// ContentHash returns hex(SHA-256(Normalize(excerpt))) in lowercase.
func ContentHash(excerpt string) string {
	sum := sha256.Sum256([]byte(Normalize(excerpt)))
	return hex.EncodeToString(sum[:])
}

// HashMatches reports whether claimed equals the hash recomputed from excerpt.
// The claimed value is compared as sent; it is never trimmed or lowercased.
func HashMatches(claimed, excerpt string) bool {
	computed := ContentHash(excerpt)
	return subtle.ConstantTimeCompare([]byte(claimed), []byte(computed)) == 1
}

// Fingerprint returns hex(SHA-256(raw public key bytes)).
func Fingerprint(publicKeyB64 string) (string, error) {
	raw, err := decodeBase64(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ShortFingerprint truncates a fingerprint for display.
func ShortFingerprint(fp string) string {
	if len(fp) <= ShortFingerprintLen {
		return fp
	}
	return fp[:ShortFingerprintLen]
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
