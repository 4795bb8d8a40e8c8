package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// KeyPrefixLen is how much of the secret is kept in clear for display.
const KeyPrefixLen = 11 // "ss_" + first 8 hex chars

// GenerateKey generates a new random API key secret. Only the hash and the
// display prefix are stored; the secret itself is shown once.
func GenerateKey() (key, hash, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	key = "ss_" + hex.EncodeToString(bytes)
	return key, HashKey(key), key[:KeyPrefixLen], nil
}

// HashKey creates a SHA-256 hash of the API key.
// SHA-256 is enough for fast lookups since keys are already high-entropy
// random strings.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
