package domain

import (
	"errors"
	"fmt"
)

// Key custody errors.
var (
	// ErrKeyGeneration indicates a keypair could not be generated or
	// persisted. Secure chat cannot proceed.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrNoPrivateKey indicates no usable private key exists locally.
	ErrNoPrivateKey = errors.New("private key not found")

	// ErrEmptySecret indicates an empty password or recovery code.
	ErrEmptySecret = errors.New("password or recovery code is empty")
)

// Backup errors.
var (
	// ErrBackup indicates a backup could not be uploaded. It is non-fatal
	// and retried on the next login.
	ErrBackup = errors.New("key backup failed")

	// ErrRestore indicates no backup could be restored with the supplied
	// credentials.
	ErrRestore = errors.New("key restore failed")
)

// Messaging errors.
var (
	// ErrDecryption indicates a message could not be decrypted with the
	// local private key.
	ErrDecryption = errors.New("message decryption failed")

	// ErrPeerKeyUnresolved indicates the partner's public key could not be
	// obtained from the network or the cache.
	ErrPeerKeyUnresolved = errors.New("partner public key unavailable")

	// ErrNotReady indicates the conversation has not finished its setup.
	ErrNotReady = errors.New("conversation not ready")
)

// Transport and storage errors.
var (
	// ErrNetwork indicates the server or realtime channel is unreachable.
	ErrNetwork = errors.New("network unavailable")

	// ErrNotConnected indicates a send was attempted while disconnected.
	ErrNotConnected = fmt.Errorf("chat is not connected: %w", ErrNetwork)

	// ErrStoreClosed indicates the key store was used outside Open/Close.
	ErrStoreClosed = errors.New("key store is closed")
)
