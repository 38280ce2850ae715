package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"teambond/internal/protocol/hybrid"
	"teambond/internal/relay"
	"teambond/internal/services/account"
	"teambond/internal/services/chat"
	"teambond/internal/services/keys"
	"teambond/internal/services/peerkey"
	"teambond/internal/services/recovery"
	"teambond/internal/services/vault"
	"teambond/internal/store"
	"teambond/internal/timeline"
	"teambond/internal/transport"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config Config
	Log    zerolog.Logger

	Store    *store.FileKeyStore
	Profiles *store.ProfileFileStore
	Relay    *relay.HTTP

	Keys     *keys.Service
	Vault    *vault.Service
	Recovery *recovery.Service
	Peers    *peerkey.Resolver
	Account  *account.Service

	Decoder   *transport.Decoder
	Timeline  *timeline.Timeline
	Transport *transport.Client
	Chat      *chat.Service
}

// NewWire constructs the dependency graph from cfg and opens the key store.
// Call Close when done.
func NewWire(cfg Config, log zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Origin-scoped key material plus the cross-origin profile list
	ks := store.NewFileKeyStore(cfg.Home, cfg.APIBase)
	ks.Log = log.With().Str("component", "keystore").Logger()
	if err := ks.Open(); err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	profiles := store.NewProfileFileStore(cfg.Home)

	rc := relay.NewHTTP(cfg.APIBase, cfg.httpClient())
	rc.Log = log.With().Str("component", "relay").Logger()
	if cfg.UsersPath != "" {
		rc.UsersPath = cfg.UsersPath
	}
	if cfg.ChatPath != "" {
		rc.ChatPath = cfg.ChatPath
	}

	// Key custody
	keySvc := keys.New(ks, rc, log)
	vaultSvc := vault.New(ks, keySvc, rc, log)
	recoverySvc := recovery.New(ks, keySvc, rc, log)
	peers := peerkey.New(ks, rc, log)

	// Conversation
	cipher := hybrid.New()
	decoder := transport.NewDecoder(keySvc, cipher)
	tl := timeline.New(timeline.DefaultDedupWindow)
	dialer := transport.StompDialer{URL: cfg.WebSocket(), HeartBeat: cfg.HeartBeat.Duration}
	tr := transport.New(dialer, decoder, tl, transport.Config{
		TopicPrefix:    cfg.TopicPrefix,
		PublishPrefix:  cfg.PublishPrefix,
		ReconnectDelay: cfg.ReconnectDelay.Duration,
	}, log)
	chatSvc := chat.New(chat.Deps{
		Keys:      keySvc,
		Peers:     peers,
		Cipher:    cipher,
		Relay:     rc,
		Transport: tr,
		Decoder:   decoder,
		Timeline:  tl,
	}, log)

	return &Wire{
		Config:    cfg,
		Log:       log,
		Store:     ks,
		Profiles:  profiles,
		Relay:     rc,
		Keys:      keySvc,
		Vault:     vaultSvc,
		Recovery:  recoverySvc,
		Peers:     peers,
		Account:   account.New(keySvc, vaultSvc, recoverySvc, log),
		Decoder:   decoder,
		Timeline:  tl,
		Transport: tr,
		Chat:      chatSvc,
	}, nil
}

// Close ends the chat session and closes the key store.
func (w *Wire) Close() error {
	w.Chat.Close()
	return w.Store.Close()
}
