package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 600_000
	pbkdf2KeyLen     = 32
	saltBytes        = 32 // 64 hex chars
)

// GenerateSalt returns a fresh 64-hex-char random salt.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a 32-byte PBKDF2-HMAC-SHA256 key from password and
// the hex-encoded salt, at 600,000 iterations, returned hex-encoded.
func HashPassword(password, hexSalt string) (string, error) {
	salt, err := hex.DecodeString(hexSalt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the PBKDF2 hash for password against salt and
// compares it to want using a constant-time comparison.
func VerifyPassword(password, hexSalt, wantHexHash string) bool {
	got, err := HashPassword(password, hexSalt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHexHash)) == 1
}

// ConstantTimeEqual compares two strings without leaking timing
// information, used for the master credential pair.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
