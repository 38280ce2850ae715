package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
)

// MaxRecoveryAttempts bounds how many recovery codes Login asks for.
const MaxRecoveryAttempts = 3

// ErrNoUsername indicates a flow was started without a username.
var ErrNoUsername = errors.New("username is required")

// RecoveryPrompt asks the user for their recovery code. attempt starts at 1.
type RecoveryPrompt func(ctx context.Context, attempt int) (string, error)

// LoginOutcome tells how Login obtained the keypair.
type LoginOutcome int

const (
	// Restored means the password backup was decrypted.
	Restored LoginOutcome = iota + 1
	// Recovered means the recovery backup was decrypted and the password
	// backup was rewritten.
	Recovered
	// FreshKeys means the server held no backup and a keypair was created.
	FreshKeys
)

// String returns a short label for the outcome.
func (o LoginOutcome) String() string {
	switch o {
	case Restored:
		return "restored"
	case Recovered:
		return "recovered"
	case FreshKeys:
		return "fresh-keys"
	default:
		return "unknown"
	}
}

// Service composes the key manager, the password vault and the recovery
// credential.
type Service struct {
	keys     domain.KeyManager
	vault    domain.PasswordVault
	recovery domain.RecoveryCredential
	log      zerolog.Logger
}

// New returns an account Service.
func New(keys domain.KeyManager, vault domain.PasswordVault, recovery domain.RecoveryCredential, log zerolog.Logger) *Service {
	return &Service{
		keys:     keys,
		vault:    vault,
		recovery: recovery,
		log:      log.With().Str("component", "account").Logger(),
	}
}

// Register prepares keys for a new account and returns the recovery code,
// which must be shown to the user exactly once. Backup upload failures are
// logged and left for the next login.
func (s *Service) Register(ctx context.Context, username domain.Username, password string) (string, error) {
	if username == "" {
		return "", ErrNoUsername
	}
	if password == "" {
		return "", domain.ErrEmptySecret
	}
	log := s.log.With().Str("username", username.String()).Logger()

	if _, err := s.keys.EnsureKeyPair(ctx); err != nil {
		return "", err
	}
	if err := s.keys.SyncPublicKey(ctx, username); err != nil {
		return "", fmt.Errorf("publish public key: %w", err)
	}
	if err := s.vault.Backup(ctx, username, password); err != nil {
		log.Warn().Err(err).Msg("Password backup failed; will retry on next login")
	}

	code, err := s.recovery.GenerateCode()
	if err != nil {
		return "", err
	}
	if ok, err := s.recovery.BackupWithCode(ctx, username, code); err != nil {
		log.Warn().Err(err).Msg("Recovery backup failed")
	} else if !ok {
		log.Warn().Msg("Recovery backup skipped: no local key")
	}
	log.Info().Msg("Account keys ready")
	return code, nil
}

// Login makes the account's keypair available on this device.
//
// With a password backup on the server it is restored; if the password
// cannot open it and a recovery backup exists, prompt is asked for the
// recovery code and, on success, the password backup is rewritten under the
// current password. Without any backup a keypair is ensured and backed up.
// Every successful path ends by syncing the public key. ErrRestore is
// returned when no path succeeds; the caller may offer a key reset.
func (s *Service) Login(
	ctx context.Context,
	username domain.Username,
	password string,
	backups domain.AccountBackups,
	prompt RecoveryPrompt,
) (LoginOutcome, error) {
	if username == "" {
		return 0, ErrNoUsername
	}
	if password == "" {
		return 0, domain.ErrEmptySecret
	}
	log := s.log.With().Str("username", username.String()).Logger()

	var outcome LoginOutcome
	switch {
	case backups.HasPasswordBackup():
		ok, err := s.vault.Restore(ctx, username, password,
			backups.EncryptedPrivateKey, backups.PrivateKeyIV, backups.PublicKey)
		if err != nil {
			return 0, err
		}
		if ok {
			outcome = Restored
			break
		}
		log.Warn().Msg("Password backup could not be opened")
		if !backups.HasRecoveryBackup() || prompt == nil {
			return 0, domain.ErrRestore
		}
		if err := s.recover(ctx, username, backups, prompt); err != nil {
			return 0, err
		}
		if err := s.vault.Backup(ctx, username, password); err != nil {
			log.Warn().Err(err).Msg("Re-encrypting backup under current password failed")
		}
		outcome = Recovered

	default:
		if _, err := s.keys.EnsureKeyPair(ctx); err != nil {
			return 0, err
		}
		if err := s.vault.Backup(ctx, username, password); err != nil {
			log.Warn().Err(err).Msg("Password backup failed; will retry on next login")
		}
		outcome = FreshKeys
	}

	if err := s.keys.SyncPublicKey(ctx, username); err != nil {
		log.Warn().Err(err).Msg("Public key sync failed")
	}
	log.Info().Str("outcome", outcome.String()).Msg("Login keys ready")
	return outcome, nil
}

// StartOver discards the local keypair and registers fresh keys, replacing
// both server backups and returning the new recovery code. It is the
// irreversible way out after Login fails with ErrRestore: messages sealed
// for the old key stay unreadable.
func (s *Service) StartOver(ctx context.Context, username domain.Username, password string) (string, error) {
	if username == "" {
		return "", ErrNoUsername
	}
	if password == "" {
		return "", domain.ErrEmptySecret
	}
	if err := s.keys.Reset(ctx); err != nil {
		return "", fmt.Errorf("reset keys: %w", err)
	}
	s.log.Warn().Str("username", username.String()).Msg("Starting over with a new keypair")
	return s.Register(ctx, username, password)
}

func (s *Service) recover(ctx context.Context, username domain.Username, backups domain.AccountBackups, prompt RecoveryPrompt) error {
	for attempt := 1; attempt <= MaxRecoveryAttempts; attempt++ {
		code, err := prompt(ctx, attempt)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRestore, err)
		}
		ok, err := s.recovery.RestoreWithCode(ctx, username, code,
			backups.EncryptedRecoveryPrivateKey, backups.RecoveryKeyIV, backups.PublicKey)
		if err != nil && !errors.Is(err, domain.ErrEmptySecret) {
			return err
		}
		if ok {
			return nil
		}
		s.log.Warn().Int("attempt", attempt).Msg("Recovery code rejected")
	}
	return domain.ErrRestore
}
