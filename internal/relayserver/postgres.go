package relayserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"teambond/internal/domain"
)

// PostgresStorage keeps relay state in PostgreSQL.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage wraps an open database handle.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// OpenPostgres connects to dsn, pings it and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := NewPostgresStorage(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS relay_users (
			username VARCHAR(255) PRIMARY KEY,
			public_key TEXT NOT NULL DEFAULT '',
			encrypted_private_key TEXT NOT NULL DEFAULT '',
			private_key_iv TEXT NOT NULL DEFAULT '',
			encrypted_recovery_private_key TEXT NOT NULL DEFAULT '',
			recovery_key_iv TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS relay_messages (
			seq BIGSERIAL PRIMARY KEY,
			message_id UUID NOT NULL UNIQUE,
			chat_id VARCHAR(511) NOT NULL,
			sender VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_relay_messages_chat
		ON relay_messages(chat_id, sent_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) PutPublicKey(ctx context.Context, username domain.Username, publicKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_users (username, public_key)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE
		SET public_key = EXCLUDED.public_key, updated_at = now()`,
		username.String(), publicKey)
	return err
}

func (s *PostgresStorage) PublicKey(ctx context.Context, username domain.Username) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT public_key FROM relay_users WHERE username = $1`,
		username.String()).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && key == "") {
		return "", ErrNotFound
	}
	return key, err
}

func (s *PostgresStorage) PutPasswordBackup(ctx context.Context, b domain.EncryptedKeyBackup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_users (username, encrypted_private_key, private_key_iv)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET encrypted_private_key = EXCLUDED.encrypted_private_key,
			private_key_iv = EXCLUDED.private_key_iv,
			updated_at = now()`,
		b.Username.String(), b.CipherText, b.IV)
	return err
}

func (s *PostgresStorage) PutRecoveryBackup(ctx context.Context, b domain.RecoveryBackup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_users (username, encrypted_recovery_private_key, recovery_key_iv)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET encrypted_recovery_private_key = EXCLUDED.encrypted_recovery_private_key,
			recovery_key_iv = EXCLUDED.recovery_key_iv,
			updated_at = now()`,
		b.Username.String(), b.CipherText, b.IV)
	return err
}

func (s *PostgresStorage) Backups(ctx context.Context, username domain.Username) (domain.AccountBackups, error) {
	out := domain.AccountBackups{Username: username}
	err := s.db.QueryRowContext(ctx, `
		SELECT public_key, encrypted_private_key, private_key_iv,
			encrypted_recovery_private_key, recovery_key_iv
		FROM relay_users WHERE username = $1`,
		username.String()).Scan(
		&out.PublicKey, &out.EncryptedPrivateKey, &out.PrivateKeyIV,
		&out.EncryptedRecoveryPrivateKey, &out.RecoveryKeyIV,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	return out, err
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, chat domain.ChatID, msg domain.WireMessage) error {
	at := msg.Timestamp.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_messages (message_id, chat_id, sender, content, sent_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), chat.String(), msg.Sender.String(), msg.Content, at.UTC())
	return err
}

func (s *PostgresStorage) Messages(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, content, sent_at
		FROM relay_messages
		WHERE chat_id = $1
		ORDER BY sent_at, seq`,
		chat.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.WireMessage{}
	for rows.Next() {
		var (
			sender  string
			content string
			sentAt  time.Time
		)
		if err := rows.Scan(&sender, &content, &sentAt); err != nil {
			return nil, err
		}
		out = append(out, domain.WireMessage{
			Sender:    domain.Username(sender),
			Content:   content,
			Timestamp: domain.NewTimestamp(sentAt),
		})
	}
	return out, rows.Err()
}

func (s *PostgresStorage) Close() error { return s.db.Close() }

// Compile-time assertion that PostgresStorage implements Storage.
var _ Storage = (*PostgresStorage)(nil)
