package signing

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorldHash = "64ec88ca00b268e5ba1a35678a1b5316d212f4f366b2477232534a8aeca37f3c"

func sampleFields() Fields {
	return Fields{
		Version:     Version,
		URL:         "https://example.com/a",
		Title:       "A",
		Excerpt:     "Hello world",
		ContentHash: helloWorldHash,
		CreatedAt:   "2024-01-01T00:00:00.000Z",
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"trim", "  hi  ", "hi"},
		{"crlf", "a\r\nb", "a\nb"},
		{"crlf trailing", "a\r\n", "a"},
		{"lone cr kept", "a\rb", "a\rb"},
		{"tabs and newlines", "\t\nx\n\t", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestCanonicalMessage_Format(t *testing.T) {
	got := CanonicalMessage(sampleFields())
	want := strings.Join([]string{
		"version:signal-v1",
		"url:https://example.com/a",
		"title:A",
		"excerpt:Hello world",
		"contentHash:" + helloWorldHash,
		"createdAt:2024-01-01T00:00:00.000Z",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestCanonicalMessage_Deterministic(t *testing.T) {
	f := sampleFields()
	f.Excerpt = "line one\r\nline two  "
	first := CanonicalMessage(f)
	second := CanonicalMessage(f)
	assert.Equal(t, first, second)
	assert.Equal(t, []byte(first), MessageBytes(f))
}

func TestCanonicalMessage_NormalizesEveryField(t *testing.T) {
	raw := Fields{
		Version:     " signal-v1 ",
		URL:         "\thttps://example.com/a\n",
		Title:       " A ",
		Excerpt:     "Hello\r\nworld ",
		ContentHash: helloWorldHash + " ",
		CreatedAt:   " 2024-01-01T00:00:00.000Z",
	}
	assert.Equal(t, CanonicalMessage(raw.Normalized()), CanonicalMessage(raw))
	assert.Contains(t, CanonicalMessage(raw), "excerpt:Hello\nworld\n")
}

func TestCanonicalMessage_NoEscaping(t *testing.T) {
	f := sampleFields()
	f.Title = "a:b\nc"
	assert.Contains(t, CanonicalMessage(f), "title:a:b\nc\nexcerpt:")
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, helloWorldHash, ContentHash("Hello world"))
	assert.Equal(t, helloWorldHash, ContentHash("  Hello world\r\n"))
	assert.NotEqual(t, helloWorldHash, ContentHash("Hello World"))
	assert.Len(t, ContentHash(""), 64)
}

func TestHashMatches(t *testing.T) {
	assert.True(t, HashMatches(helloWorldHash, "Hello world"))
	assert.False(t, HashMatches(helloWorldHash, "Hello World"))
	assert.False(t, HashMatches(strings.ToUpper(helloWorldHash), "Hello world"))
	assert.False(t, HashMatches("", "Hello world"))
	assert.False(t, HashMatches("  "+helloWorldHash+"\r\n", "Hello world"))
	assert.True(t, HashMatches(helloWorldHash, "  Hello world\r\n"))
}

func TestFingerprint(t *testing.T) {
	zeroKey := base64.StdEncoding.EncodeToString(make([]byte, 32))

	fp, err := Fingerprint(zeroKey)
	require.NoError(t, err)
	assert.Equal(t, "66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925", fp)

	again, err := Fingerprint(zeroKey)
	require.NoError(t, err)
	assert.Equal(t, fp, again)

	unpadded, err := Fingerprint(strings.TrimRight(zeroKey, "="))
	require.NoError(t, err)
	assert.Equal(t, fp, unpadded)

	_, err = Fingerprint("***")
	assert.Error(t, err)
}

func TestShortFingerprint(t *testing.T) {
	assert.Equal(t, "66687aadf862", ShortFingerprint("66687aadf862bd776c8fc18b8e9f8e20"))
	assert.Equal(t, "abc", ShortFingerprint("abc"))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	pub, seed, err := GenerateKey()
	require.NoError(t, err)

	derived, err := PublicKey(seed)
	require.NoError(t, err)
	assert.Equal(t, pub, derived)

	f := sampleFields()
	sig, err := Sign(seed, f)
	require.NoError(t, err)
	assert.True(t, Verify(pub, sig, MessageBytes(f)))
}

func TestVerify_BitFlips(t *testing.T) {
	pub, seed, err := GenerateKey()
	require.NoError(t, err)
	f := sampleFields()
	sig, err := Sign(seed, f)
	require.NoError(t, err)

	sigBytes, _ := base64.StdEncoding.DecodeString(sig)
	for i := range sigBytes {
		flipped := append([]byte(nil), sigBytes...)
		flipped[i] ^= 0x01
		assert.False(t, Verify(pub, base64.StdEncoding.EncodeToString(flipped), MessageBytes(f)), "signature byte %d", i)
	}

	pubBytes, _ := base64.StdEncoding.DecodeString(pub)
	for i := range pubBytes {
		flipped := append([]byte(nil), pubBytes...)
		flipped[i] ^= 0x01
		assert.False(t, Verify(base64.StdEncoding.EncodeToString(flipped), sig, MessageBytes(f)), "public key byte %d", i)
	}

	mutations := map[string]func(*Fields){
		"url":         func(f *Fields) { f.URL += "x" },
		"title":       func(f *Fields) { f.Title = "B" },
		"excerpt":     func(f *Fields) { f.Excerpt = "Hello World" },
		"contentHash": func(f *Fields) { f.ContentHash = ContentHash("other") },
		"createdAt":   func(f *Fields) { f.CreatedAt = "2024-01-01T00:00:01.000Z" },
		"version":     func(f *Fields) { f.Version = "signal-v2" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			m := f
			mutate(&m)
			assert.False(t, Verify(pub, sig, MessageBytes(m)))
		})
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	pub, seed, err := GenerateKey()
	require.NoError(t, err)
	msg := MessageBytes(sampleFields())
	sig, err := Sign(seed, sampleFields())
	require.NoError(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	tests := []struct {
		name string
		pub  string
		sig  string
	}{
		{"empty key", "", sig},
		{"empty signature", pub, ""},
		{"not base64 key", "!!!", sig},
		{"not base64 signature", pub, "%%%"},
		{"short key", short, sig},
		{"short signature", pub, short},
		{"long key", base64.StdEncoding.EncodeToString(make([]byte, 64)), sig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, Verify(tt.pub, tt.sig, msg))
			})
		})
	}
}

func TestSign_InvalidSeed(t *testing.T) {
	_, err := Sign("!!!", sampleFields())
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Sign(base64.StdEncoding.EncodeToString([]byte("short")), sampleFields())
	assert.ErrorIs(t, err, ErrInvalidKey)
}
