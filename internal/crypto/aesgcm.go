package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// AESKeySize is the AES-256 key length in bytes.
	AESKeySize = 32
	// IVSize is the AES-GCM nonce length in bytes.
	IVSize = 12
)

// NewAESKey returns a fresh random AES-256 key.
func NewAESKey() ([]byte, error) { return randomBytes(AESKeySize) }

// NewIV returns a fresh random 12-byte IV.
func NewIV() ([]byte, error) { return randomBytes(IVSize) }

// SealGCM encrypts plaintext; the 16-byte tag is appended to the result.
func SealGCM(key, iv, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key, iv)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

// OpenGCM decrypts and authenticates ciphertext produced by SealGCM.
func OpenGCM(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key, iv)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, iv, ciphertext, nil)
}

func newGCM(key, iv []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("aes key: want %d bytes, got %d", AESKeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("aes iv: want %d bytes, got %d", IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
