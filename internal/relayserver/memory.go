package relayserver

import (
	"context"
	"sync"

	"teambond/internal/domain"
)

// MemoryStorage keeps relay state in process.
type MemoryStorage struct {
	mu       sync.RWMutex
	accounts map[domain.Username]domain.AccountBackups
	chats    map[domain.ChatID][]domain.WireMessage
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[domain.Username]domain.AccountBackups),
		chats:    make(map[domain.ChatID][]domain.WireMessage),
	}
}

func (m *MemoryStorage) PutPublicKey(ctx context.Context, username domain.Username, publicKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[username]
	a.Username, a.PublicKey = username, publicKey
	m.accounts[username] = a
	return nil
}

func (m *MemoryStorage) PublicKey(ctx context.Context, username domain.Username) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[username]
	if !ok || a.PublicKey == "" {
		return "", ErrNotFound
	}
	return a.PublicKey, nil
}

func (m *MemoryStorage) PutPasswordBackup(ctx context.Context, b domain.EncryptedKeyBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[b.Username]
	a.Username = b.Username
	a.EncryptedPrivateKey, a.PrivateKeyIV = b.CipherText, b.IV
	m.accounts[b.Username] = a
	return nil
}

func (m *MemoryStorage) PutRecoveryBackup(ctx context.Context, b domain.RecoveryBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[b.Username]
	a.Username = b.Username
	a.EncryptedRecoveryPrivateKey, a.RecoveryKeyIV = b.CipherText, b.IV
	m.accounts[b.Username] = a
	return nil
}

func (m *MemoryStorage) Backups(ctx context.Context, username domain.Username) (domain.AccountBackups, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.accounts[username]
	a.Username = username
	return a, nil
}

func (m *MemoryStorage) AppendMessage(ctx context.Context, chat domain.ChatID, msg domain.WireMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat] = append(m.chats[chat], msg)
	return nil
}

func (m *MemoryStorage) Messages(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WireMessage{}, m.chats[chat]...), nil
}

func (m *MemoryStorage) Close() error { return nil }

// Compile-time assertion that MemoryStorage implements Storage.
var _ Storage = (*MemoryStorage)(nil)
