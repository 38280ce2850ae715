package relayserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"teambond/internal/domain"
)

// Redis key prefixes.
const (
	userPrefix = "teambond:user:" // hash of account fields
	chatPrefix = "teambond:chat:" // list of JSON wire messages
)

// Hash fields of a user record; they mirror the REST field names.
const (
	fieldPublicKey         = "publicKey"
	fieldEncryptedPrivate  = "encryptedPrivateKey"
	fieldPrivateKeyIV      = "privateKeyIv"
	fieldEncryptedRecovery = "encryptedRecoveryPrivateKey"
	fieldRecoveryKeyIV     = "recoveryKeyIv"
)

// RedisStorage keeps relay state in Redis.
type RedisStorage struct {
	rdb *redis.Client
}

// NewRedisStorage wraps an existing client.
func NewRedisStorage(rdb *redis.Client) *RedisStorage {
	return &RedisStorage{rdb: rdb}
}

// OpenRedis connects to addr and pings the server.
func OpenRedis(ctx context.Context, addr string) (*RedisStorage, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStorage(rdb), nil
}

func (s *RedisStorage) PutPublicKey(ctx context.Context, username domain.Username, publicKey string) error {
	if err := s.rdb.HSet(ctx, userPrefix+username.String(), fieldPublicKey, publicKey).Err(); err != nil {
		return fmt.Errorf("failed to store public key: %w", err)
	}
	return nil
}

func (s *RedisStorage) PublicKey(ctx context.Context, username domain.Username) (string, error) {
	key, err := s.rdb.HGet(ctx, userPrefix+username.String(), fieldPublicKey).Result()
	if errors.Is(err, redis.Nil) || (err == nil && key == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load public key: %w", err)
	}
	return key, nil
}

func (s *RedisStorage) PutPasswordBackup(ctx context.Context, b domain.EncryptedKeyBackup) error {
	err := s.rdb.HSet(ctx, userPrefix+b.Username.String(),
		fieldEncryptedPrivate, b.CipherText,
		fieldPrivateKeyIV, b.IV,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store password backup: %w", err)
	}
	return nil
}

func (s *RedisStorage) PutRecoveryBackup(ctx context.Context, b domain.RecoveryBackup) error {
	err := s.rdb.HSet(ctx, userPrefix+b.Username.String(),
		fieldEncryptedRecovery, b.CipherText,
		fieldRecoveryKeyIV, b.IV,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store recovery backup: %w", err)
	}
	return nil
}

func (s *RedisStorage) Backups(ctx context.Context, username domain.Username) (domain.AccountBackups, error) {
	fields, err := s.rdb.HGetAll(ctx, userPrefix+username.String()).Result()
	if err != nil {
		return domain.AccountBackups{}, fmt.Errorf("failed to load backups: %w", err)
	}
	return domain.AccountBackups{
		Username:                    username,
		PublicKey:                   fields[fieldPublicKey],
		EncryptedPrivateKey:         fields[fieldEncryptedPrivate],
		PrivateKeyIV:                fields[fieldPrivateKeyIV],
		EncryptedRecoveryPrivateKey: fields[fieldEncryptedRecovery],
		RecoveryKeyIV:               fields[fieldRecoveryKeyIV],
	}, nil
}

func (s *RedisStorage) AppendMessage(ctx context.Context, chat domain.ChatID, msg domain.WireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, chatPrefix+chat.String(), data).Err(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *RedisStorage) Messages(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	raw, err := s.rdb.LRange(ctx, chatPrefix+chat.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	out := make([]domain.WireMessage, 0, len(raw))
	for _, r := range raw {
		var m domain.WireMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue // skip corrupted entries
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStorage) Close() error { return s.rdb.Close() }

// Compile-time assertion that RedisStorage implements Storage.
var _ Storage = (*RedisStorage)(nil)
