package recovery

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
	"teambond/internal/services/vault"
	"teambond/internal/store"
)

// Service implements recovery-code backup and restore.
type Service struct {
	store domain.KeyStore
	keys  vault.KeyInstaller
	relay domain.RelayClient
	log   zerolog.Logger
}

// New returns a recovery service over the local key store.
func New(ks domain.KeyStore, keys vault.KeyInstaller, rc domain.RelayClient, log zerolog.Logger) *Service {
	return &Service{
		store: ks,
		keys:  keys,
		relay: rc,
		log:   log.With().Str("component", "recovery").Logger(),
	}
}

// GenerateCode returns a fresh code such as "apple-river-house-sky".
func (s *Service) GenerateCode() (string, error) {
	size := big.NewInt(int64(len(Words)))
	parts := make([]string, CodeWords)
	for i := range parts {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		parts[i] = Words[n.Int64()]
	}
	return strings.Join(parts, "-"), nil
}

// BackupWithCode encrypts the local private key under code and uploads it.
// It reports false when there is no local key to back up.
func (s *Service) BackupWithCode(ctx context.Context, username domain.Username, code string) (bool, error) {
	code = Normalize(code)
	if code == "" {
		return false, domain.ErrEmptySecret
	}
	der, ok, err := s.store.Get(store.KeyPrivate)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrBackup, err)
	}
	if !ok {
		s.log.Warn().Msg("No local private key to back up with recovery code")
		return false, nil
	}

	ct, iv, err := vault.SealPrivateKey(username, code, der)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrBackup, err)
	}
	backup := domain.RecoveryBackup{Username: username, CipherText: ct, IV: iv}
	if err := s.relay.UpdateRecoveryBackup(ctx, backup); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrBackup, err)
	}
	s.log.Info().Str("username", username.String()).Msg("Recovery backup stored")
	return true, nil
}

// RestoreWithCode installs the private key sealed under code.
func (s *Service) RestoreWithCode(
	ctx context.Context,
	username domain.Username,
	code string,
	cipherText, iv, publicKeyB64 string,
) (bool, error) {
	code = Normalize(code)
	if code == "" {
		return false, domain.ErrEmptySecret
	}
	return vault.Install(s.keys, s.log, username, code, cipherText, iv, publicKeyB64)
}

// Normalize trims surrounding whitespace and lower-cases a typed code.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Compile-time assertion that Service implements domain.RecoveryCredential.
var _ domain.RecoveryCredential = (*Service)(nil)
