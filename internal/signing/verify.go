package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrInvalidKey      = errors.New("invalid key length")
)

// Verify checks an Ed25519 signature over message. Undecodable input or wrong
// key/signature lengths report false; it never panics on untrusted input.
func Verify(publicKeyB64, signatureB64 string, message []byte) bool {
	publicKey, err := decodeBase64(publicKeyB64)
	if err != nil {
		return false
	}
	signature, err := decodeBase64(signatureB64)
	if err != nil {
		return false
	}
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// GenerateKey creates a new keypair, base64 encoded. The private key is the
// 32-byte seed, which is what the extension keeps in local storage.
func GenerateKey() (publicKeyB64, seedB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(priv.Seed()), nil
}

// PublicKey derives the base64 public key for a base64 seed.
func PublicKey(seedB64 string) (string, error) {
	priv, err := privateKey(seedB64)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)), nil
}

// Sign signs the canonical bytes of f with a base64 seed.
func Sign(seedB64 string, f Fields) (string, error) {
	priv, err := privateKey(seedB64)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, MessageBytes(f))), nil
}

func privateKey(seedB64 string) (ed25519.PrivateKey, error) {
	seed, err := decodeBase64(seedB64)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKey
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
