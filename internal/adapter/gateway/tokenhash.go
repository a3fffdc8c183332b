package gateway

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hashPrefix  = "argon2id"
	hashTime    = 1
	hashMemory  = 16 * 1024 // KiB
	hashThreads = 2
	hashKeyLen  = 32
	hashSaltLen = 16
)

// HashToken returns "argon2id$<salt>$<key>" for use as token_hash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := deriveTokenKey(token, salt)
	enc := base64.RawStdEncoding
	return hashPrefix + "$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(key), nil
}

func deriveTokenKey(token string, salt []byte) []byte {
	return argon2.IDKey([]byte(token), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
}

// tokenHash is a parsed token_hash value.
type tokenHash struct {
	salt []byte
	key  []byte
}

func parseTokenHash(s string) (tokenHash, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return tokenHash{}, fmt.Errorf("token_hash must look like %s$<salt>$<key>", hashPrefix)
	}
	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return tokenHash{}, fmt.Errorf("token_hash salt: %w", err)
	}
	key, err := enc.DecodeString(parts[2])
	if err != nil {
		return tokenHash{}, fmt.Errorf("token_hash key: %w", err)
	}
	if len(key) != hashKeyLen {
		return tokenHash{}, fmt.Errorf("token_hash key is %d bytes, want %d", len(key), hashKeyLen)
	}
	return tokenHash{salt: salt, key: key}, nil
}

func (h tokenHash) matches(token string) bool {
	return subtle.ConstantTimeCompare(deriveTokenKey(token, h.salt), h.key) == 1
}
