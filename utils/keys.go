package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const APIKeyPrefix = "gau_"

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateAPIKey returns the plaintext key, its display prefix and the hash
// that gets persisted.
func GenerateAPIKey() (key, prefix, hash string, err error) {
	secret, err := randomHex(24)
	if err != nil {
		return "", "", "", err
	}
	key = APIKeyPrefix + secret
	return key, key[:len(APIKeyPrefix)+8], HashAPIKey(key), nil
}

func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func GenerateWebhookSecret() (string, error) {
	secret, err := randomHex(32)
	if err != nil {
		return "", err
	}
	return "whsec_" + secret, nil
}

// APIKeyCacheKey is the Redis key of the cached principal for a key hash.
func APIKeyCacheKey(hash string) string {
	return "auth:apikey:" + hash
}
