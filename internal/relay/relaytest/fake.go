// Package relaytest provides an in-memory domain.RelayClient for tests.
package relaytest

import (
	"context"
	"fmt"
	"sync"

	"teambond/internal/domain"
)

// Fake stores everything in memory. Err* fields, when set, are returned by
// the matching call instead of touching state.
type Fake struct {
	mu sync.Mutex

	PublicKeys map[domain.Username]string
	Backups    map[domain.Username]domain.AccountBackups
	History    map[domain.ChatID][]domain.WireMessage

	ErrFetchPublicKey  error
	ErrUpdatePublicKey error
	ErrBackup          error
	ErrHistory         error

	Calls map[string]int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		PublicKeys: make(map[domain.Username]string),
		Backups:    make(map[domain.Username]domain.AccountBackups),
		History:    make(map[domain.ChatID][]domain.WireMessage),
		Calls:      make(map[string]int),
	}
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// Backup returns the stored backups for username.
func (f *Fake) Backup(username domain.Username) domain.AccountBackups {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.Backups[username]
	b.Username = username
	b.PublicKey = f.PublicKeys[username]
	return b
}

func (f *Fake) FetchPublicKey(ctx context.Context, username domain.Username) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["FetchPublicKey"]++
	if f.ErrFetchPublicKey != nil {
		return "", f.ErrFetchPublicKey
	}
	k, ok := f.PublicKeys[username]
	if !ok {
		return "", fmt.Errorf("no public key for %s", username)
	}
	return k, nil
}

func (f *Fake) UpdatePublicKey(ctx context.Context, update domain.PublicKeyUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["UpdatePublicKey"]++
	if f.ErrUpdatePublicKey != nil {
		return f.ErrUpdatePublicKey
	}
	f.PublicKeys[update.Username] = update.PublicKey
	return nil
}

func (f *Fake) UpdatePrivateKeyBackup(ctx context.Context, backup domain.EncryptedKeyBackup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["UpdatePrivateKeyBackup"]++
	if f.ErrBackup != nil {
		return f.ErrBackup
	}
	b := f.Backups[backup.Username]
	b.EncryptedPrivateKey, b.PrivateKeyIV = backup.CipherText, backup.IV
	f.Backups[backup.Username] = b
	return nil
}

func (f *Fake) UpdateRecoveryBackup(ctx context.Context, backup domain.RecoveryBackup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["UpdateRecoveryBackup"]++
	if f.ErrBackup != nil {
		return f.ErrBackup
	}
	b := f.Backups[backup.Username]
	b.EncryptedRecoveryPrivateKey, b.RecoveryKeyIV = backup.CipherText, backup.IV
	f.Backups[backup.Username] = b
	return nil
}

func (f *Fake) FetchAccountBackups(ctx context.Context, username domain.Username) (domain.AccountBackups, error) {
	f.mu.Lock()
	f.Calls["FetchAccountBackups"]++
	f.mu.Unlock()
	return f.Backup(username), nil
}

func (f *Fake) FetchHistory(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["FetchHistory"]++
	if f.ErrHistory != nil {
		return nil, f.ErrHistory
	}
	return append([]domain.WireMessage(nil), f.History[chat]...), nil
}

// Append adds msg to the stored history of chat.
func (f *Fake) Append(chat domain.ChatID, msg domain.WireMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.History[chat] = append(f.History[chat], msg)
}

// SetErr sets one of the injected errors under the lock.
func (f *Fake) SetErr(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

var _ domain.RelayClient = (*Fake)(nil)
