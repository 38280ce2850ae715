package interfaces

import (
	"context"
	"crypto/rsa"

	domaintypes "teambond/internal/domain/types"
)

// KeyManager owns the local RSA-OAEP keypair.
type KeyManager interface {
	EnsureKeyPair(ctx context.Context) (domaintypes.KeyPair, error)
	PrivateKey(ctx context.Context) (*rsa.PrivateKey, error)
	Reset(ctx context.Context) error
	SyncPublicKey(ctx context.Context, username domaintypes.Username) error
	Fingerprint(ctx context.Context) (domaintypes.Fingerprint, error)
}

// PasswordVault backs up and restores the private key under a password.
type PasswordVault interface {
	Backup(ctx context.Context, username domaintypes.Username, password string) error
	Restore(
		ctx context.Context,
		username domaintypes.Username,
		password string,
		cipherText, iv, publicKeyB64 string,
	) (bool, error)
}

// RecoveryCredential backs up and restores the private key under a
// human-transcribable recovery code.
type RecoveryCredential interface {
	GenerateCode() (string, error)
	BackupWithCode(ctx context.Context, username domaintypes.Username, code string) (bool, error)
	RestoreWithCode(
		ctx context.Context,
		username domaintypes.Username,
		code string,
		cipherText, iv, publicKeyB64 string,
	) (bool, error)
}

// PeerKeyResolver returns a usable public key for a conversation partner.
type PeerKeyResolver interface {
	Resolve(
		ctx context.Context,
		partner domaintypes.Username,
		forceRefresh bool,
	) (*rsa.PublicKey, error)
}

// MessageCipher hybrid-encrypts chat messages.
type MessageCipher interface {
	Encrypt(
		plaintext string,
		receiver *rsa.PublicKey,
		sender *rsa.PublicKey,
	) (domaintypes.MessageEnvelope, error)
	Decrypt(env domaintypes.MessageEnvelope, priv *rsa.PrivateKey) (string, error)
}
