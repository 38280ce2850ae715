package hybrid

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"teambond/internal/crypto"
	"teambond/internal/domain"
	"teambond/internal/util/memzero"
)

// Cipher is stateless and safe for concurrent use.
type Cipher struct{}

// New returns a Cipher.
func New() *Cipher { return &Cipher{} }

// Encrypt seals plaintext for receiver. sender may be nil.
func (Cipher) Encrypt(plaintext string, receiver, sender *rsa.PublicKey) (domain.MessageEnvelope, error) {
	if receiver == nil {
		return domain.MessageEnvelope{}, errors.New("hybrid: receiver key is required")
	}
	key, err := crypto.NewAESKey()
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	defer memzero.Zero(key)

	iv, err := crypto.NewIV()
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	ct, err := crypto.SealGCM(key, iv, []byte(plaintext))
	if err != nil {
		return domain.MessageEnvelope{}, err
	}

	wrapped, err := crypto.WrapKey(receiver, key)
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("wrap for receiver: %w", err)
	}
	env := domain.MessageEnvelope{
		EncryptedMessage: crypto.B64(ct),
		EncryptedAESKey:  crypto.B64(wrapped),
		IV:               crypto.B64(iv),
	}
	if sender != nil {
		ws, err := crypto.WrapKey(sender, key)
		if err != nil {
			return domain.MessageEnvelope{}, fmt.Errorf("wrap for sender: %w", err)
		}
		env.EncryptedAESKeySender = crypto.B64(ws)
	}
	return env, nil
}

// Decrypt opens env with priv.
func (Cipher) Decrypt(env domain.MessageEnvelope, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDecryption, domain.ErrNoPrivateKey)
	}
	ct, err := crypto.DecodeB64(env.EncryptedMessage)
	if err != nil {
		return "", fmt.Errorf("%w: message encoding", domain.ErrDecryption)
	}
	iv, err := crypto.DecodeB64(env.IV)
	if err != nil || len(iv) != crypto.IVSize {
		return "", fmt.Errorf("%w: iv", domain.ErrDecryption)
	}

	key, err := unwrap(env, priv)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(key)

	pt, err := crypto.OpenGCM(key, iv, ct)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	return string(pt), nil
}

// unwrap tries each wrapped key in order: receiver, then sender.
func unwrap(env domain.MessageEnvelope, priv *rsa.PrivateKey) ([]byte, error) {
	for _, wrapped := range []string{env.EncryptedAESKey, env.EncryptedAESKeySender} {
		if wrapped == "" {
			continue
		}
		raw, err := crypto.DecodeB64(wrapped)
		if err != nil {
			continue
		}
		key, err := crypto.UnwrapKey(priv, raw)
		if err != nil {
			continue
		}
		if len(key) != crypto.AESKeySize {
			memzero.Zero(key)
			continue
		}
		return key, nil
	}
	return nil, fmt.Errorf("%w: no wrapped key opens with this private key", domain.ErrDecryption)
}

// Compile-time assertion that Cipher implements domain.MessageCipher.
var _ domain.MessageCipher = Cipher{}
