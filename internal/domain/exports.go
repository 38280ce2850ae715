package domain

import (
	interfaces "teambond/internal/domain/interfaces"
	types "teambond/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username             = types.Username
	UserID               = types.UserID
	Fingerprint          = types.Fingerprint
	ChatID               = types.ChatID
	Participant          = types.Participant
	KeyPair              = types.KeyPair
	PublicKeyUpdate      = types.PublicKeyUpdate
	PartnerKeyCacheEntry = types.PartnerKeyCacheEntry
	EncryptedKeyBackup   = types.EncryptedKeyBackup
	RecoveryBackup       = types.RecoveryBackup
	AccountBackups       = types.AccountBackups
	Profile              = types.Profile
	MessageEnvelope      = types.MessageEnvelope
	Timestamp            = types.Timestamp
	WireMessage          = types.WireMessage
	ChatMessage          = types.ChatMessage
	ConnState            = types.ConnState
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyStore           = interfaces.KeyStore
	ProfileStore       = interfaces.ProfileStore
	RelayClient        = interfaces.RelayClient
	KeyManager         = interfaces.KeyManager
	PasswordVault      = interfaces.PasswordVault
	RecoveryCredential = interfaces.RecoveryCredential
	PeerKeyResolver    = interfaces.PeerKeyResolver
	MessageCipher      = interfaces.MessageCipher
	ChatTransport      = interfaces.ChatTransport
)

// Connection states.
const (
	Disconnected = types.Disconnected
	Connecting   = types.Connecting
	Connected    = types.Connected
)

// Decryption placeholders.
const (
	PlaceholderDecryptionFailed  = types.PlaceholderDecryptionFailed
	PlaceholderPrivateKeyMissing = types.PlaceholderPrivateKeyMissing
)

// NewChatID derives the shared channel name for two participants.
func NewChatID(a, b UserID) ChatID { return types.NewChatID(a, b) }

// NewTimestamp truncates t to millisecond precision.
var NewTimestamp = types.NewTimestamp

// NewWireMessage encodes env as a wire record from sender.
var NewWireMessage = types.NewWireMessage
