package relayserver

import (
	"context"
	"errors"

	"teambond/internal/domain"
)

// ErrNotFound indicates the requested user or key does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists relay state.
type Storage interface {
	PutPublicKey(ctx context.Context, username domain.Username, publicKey string) error
	// PublicKey returns ErrNotFound when no key is stored.
	PublicKey(ctx context.Context, username domain.Username) (string, error)
	PutPasswordBackup(ctx context.Context, backup domain.EncryptedKeyBackup) error
	PutRecoveryBackup(ctx context.Context, backup domain.RecoveryBackup) error
	// Backups returns whatever is stored; missing fields are empty.
	Backups(ctx context.Context, username domain.Username) (domain.AccountBackups, error)
	AppendMessage(ctx context.Context, chat domain.ChatID, msg domain.WireMessage) error
	// Messages returns the chat history oldest first.
	Messages(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error)
	Close() error
}
