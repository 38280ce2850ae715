package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the work factor for password and recovery-code keys.
const PBKDF2Iterations = 100_000

// DeriveKey stretches secret into an AES-256 key. The salt is the UTF-8
// username, so the result is deterministic per (username, secret).
func DeriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, PBKDF2Iterations, AESKeySize, sha256.New)
}
