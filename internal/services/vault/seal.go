package vault

import (
	"errors"
	"fmt"

	"teambond/internal/crypto"
	"teambond/internal/domain"
	"teambond/internal/util/memzero"
)

var (
	// ErrWrongSecret is returned when the ciphertext does not authenticate
	// under the derived key.
	ErrWrongSecret = errors.New("wrong password or recovery code")

	// ErrMalformedBackup is returned for undecodable ciphertext or IV.
	ErrMalformedBackup = errors.New("malformed key backup")
)

// SealPrivateKey encrypts PKCS#8 private key bytes for username under
// secret. The key bytes are base64-encoded before encryption. The returned
// ciphertext and IV are base64.
func SealPrivateKey(username domain.Username, secret string, der []byte) (cipherText, iv string, err error) {
	key := crypto.DeriveKey(secret, []byte(username))
	defer memzero.Zero(key)

	nonce, err := crypto.NewIV()
	if err != nil {
		return "", "", err
	}
	plain := []byte(crypto.B64(der))
	defer memzero.Zero(plain)

	ct, err := crypto.SealGCM(key, nonce, plain)
	if err != nil {
		return "", "", err
	}
	return crypto.B64(ct), crypto.B64(nonce), nil
}

// OpenPrivateKey reverses SealPrivateKey and returns the PKCS#8 bytes.
func OpenPrivateKey(username domain.Username, secret, cipherText, iv string) ([]byte, error) {
	ct, err := crypto.DecodeB64(cipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedBackup, err)
	}
	nonce, err := crypto.DecodeB64(iv)
	if err != nil || len(nonce) != crypto.IVSize {
		return nil, fmt.Errorf("%w: iv", ErrMalformedBackup)
	}

	key := crypto.DeriveKey(secret, []byte(username))
	defer memzero.Zero(key)

	plain, err := crypto.OpenGCM(key, nonce, ct)
	if err != nil {
		return nil, ErrWrongSecret
	}
	defer memzero.Zero(plain)

	der, err := crypto.DecodeB64(string(plain))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedBackup, err)
	}
	return der, nil
}
