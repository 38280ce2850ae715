package vault

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"teambond/internal/crypto"
	"teambond/internal/domain"
	"teambond/internal/store"
)

// KeyInstaller replaces the local keypair after a successful restore.
type KeyInstaller interface {
	Install(priv *rsa.PrivateKey) error
}

// Service implements password backup and restore.
type Service struct {
	store domain.KeyStore
	keys  KeyInstaller
	relay domain.RelayClient
	log   zerolog.Logger
}

// New returns a vault over the local key store.
func New(ks domain.KeyStore, keys KeyInstaller, rc domain.RelayClient, log zerolog.Logger) *Service {
	return &Service{
		store: ks,
		keys:  keys,
		relay: rc,
		log:   log.With().Str("component", "vault").Logger(),
	}
}

// Backup encrypts the local private key under password and uploads it. A
// missing local key is logged and skipped.
func (s *Service) Backup(ctx context.Context, username domain.Username, password string) error {
	if password == "" {
		return domain.ErrEmptySecret
	}
	der, ok, err := s.store.Get(store.KeyPrivate)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackup, err)
	}
	if !ok {
		s.log.Warn().Msg("No local private key to back up")
		return nil
	}

	ct, iv, err := SealPrivateKey(username, password, der)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackup, err)
	}
	backup := domain.EncryptedKeyBackup{Username: username, CipherText: ct, IV: iv}
	if err := s.relay.UpdatePrivateKeyBackup(ctx, backup); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackup, err)
	}
	s.log.Info().Str("username", username.String()).Msg("Private key backed up")
	return nil
}

// Restore decrypts a backup and installs it as the local keypair. A wrong
// password or unusable backup yields false with a nil error; only local
// storage failures are returned as errors.
func (s *Service) Restore(
	ctx context.Context,
	username domain.Username,
	password string,
	cipherText, iv, publicKeyB64 string,
) (bool, error) {
	if password == "" {
		return false, domain.ErrEmptySecret
	}
	return Install(s.keys, s.log, username, password, cipherText, iv, publicKeyB64)
}

// Install opens a sealed private key and installs it. It is shared by the
// password and recovery-code restore paths.
func Install(
	keys KeyInstaller,
	log zerolog.Logger,
	username domain.Username,
	secret, cipherText, iv, publicKeyB64 string,
) (bool, error) {
	der, err := OpenPrivateKey(username, secret, cipherText, iv)
	if err != nil {
		if errors.Is(err, ErrWrongSecret) {
			log.Debug().Str("username", username.String()).Msg("Backup did not open with the supplied secret")
		} else {
			log.Warn().Err(err).Msg("Backup is unusable")
		}
		return false, nil
	}
	priv, err := crypto.ParsePrivateKey(der)
	if err != nil {
		log.Warn().Err(err).Msg("Restored private key is invalid")
		return false, nil
	}

	if publicKeyB64 != "" {
		pub, err := crypto.ParsePublicKeyB64(publicKeyB64)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Ignoring invalid public key supplied with backup")
		case !pub.Equal(&priv.PublicKey):
			log.Warn().Msg("Public key supplied with backup does not match the private key, using the derived key")
		}
	}

	if err := keys.Install(priv); err != nil {
		return false, fmt.Errorf("install restored key: %w", err)
	}
	log.Info().Str("username", username.String()).Msg("Private key restored")
	return true, nil
}

// Compile-time assertion that Service implements domain.PasswordVault.
var _ domain.PasswordVault = (*Service)(nil)
