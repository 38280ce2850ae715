package interfaces

import (
	"context"

	domaintypes "teambond/internal/domain/types"
)

// RelayClient is how we talk to the platform's REST API, all with context.
// The server is untrusted: it only ever sees public keys and ciphertext.
type RelayClient interface {
	FetchPublicKey(ctx context.Context, username domaintypes.Username) (string, error)
	UpdatePublicKey(ctx context.Context, update domaintypes.PublicKeyUpdate) error

	UpdatePrivateKeyBackup(ctx context.Context, backup domaintypes.EncryptedKeyBackup) error
	UpdateRecoveryBackup(ctx context.Context, backup domaintypes.RecoveryBackup) error
	FetchAccountBackups(
		ctx context.Context,
		username domaintypes.Username,
	) (domaintypes.AccountBackups, error)

	FetchHistory(ctx context.Context, chat domaintypes.ChatID) ([]domaintypes.WireMessage, error)
}
