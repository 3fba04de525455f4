package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16

	// PBKDF2 parameters; changing these invalidates every stored hash
	hashIterations = 100_000
	hashKeyLength  = 32
)

const saltAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// HashPIN derives a hex-encoded digest from a PIN and salt. The derivation is
// deterministic: the same pin and salt always produce the same digest.
func HashPIN(pin, salt string) string {
	key := pbkdf2.Key([]byte(pin), []byte(salt), hashIterations, hashKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// VerifyPIN compares a candidate PIN against a stored digest in constant time
func VerifyPIN(pin, salt, digest string) bool {
	return hmac.Equal([]byte(HashPIN(pin, salt)), []byte(digest))
}

// GenerateSalt returns a random alphanumeric salt from a cryptographic source.
// Rejection sampling keeps the character distribution unbiased.
func GenerateSalt() (string, error) {
	// 62 * 4 = 248 is the largest multiple of len(saltAlphabet) under 256
	const threshold = byte(248)

	var sb strings.Builder
	sb.Grow(saltLength)
	buf := make([]byte, 64)
	for sb.Len() < saltLength {
		n, err := rand.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for i := 0; i < n && sb.Len() < saltLength; i++ {
			if buf[i] < threshold {
				sb.WriteByte(saltAlphabet[int(buf[i])%len(saltAlphabet)])
			}
		}
	}
	return sb.String(), nil
}
