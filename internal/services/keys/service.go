package keys

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"teambond/internal/crypto"
	"teambond/internal/domain"
	"teambond/internal/store"
)

// Service owns the local keypair.
type Service struct {
	store domain.KeyStore
	relay domain.RelayClient
	log   zerolog.Logger

	generate func() (*rsa.PrivateKey, error)

	// mu serialises EnsureKeyPair so concurrent callers cannot each
	// generate and persist a different keypair.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator replaces the RSA key generator.
func WithGenerator(gen func() (*rsa.PrivateKey, error)) Option {
	return func(s *Service) { s.generate = gen }
}

// New returns a key service backed by ks. rc may be nil when the caller
// never syncs with a server.
func New(ks domain.KeyStore, rc domain.RelayClient, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    ks,
		relay:    rc,
		log:      log.With().Str("component", "keys").Logger(),
		generate: crypto.GenerateRSA,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureKeyPair returns the stored keypair, creating one when none exists or
// the stored private key cannot be imported. The stored public key is always
// rewritten from the private key.
func (s *Service) EnsureKeyPair(ctx context.Context) (domain.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	der, ok, err := s.store.Get(store.KeyPrivate)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("load private key: %w", err)
	}
	if ok {
		priv, err := crypto.ParsePrivateKey(der)
		if err == nil {
			if err := s.putPublic(&priv.PublicKey); err != nil {
				return domain.KeyPair{}, fmt.Errorf("store public key: %w", err)
			}
			return domain.KeyPair{Public: &priv.PublicKey, Private: priv}, nil
		}
		s.log.Warn().Err(err).Msg("Stored private key is unreadable, generating a new keypair")
	}

	priv, err := s.generate()
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	if err := s.persist(priv); err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	s.log.Info().Msg("Generated new keypair")
	return domain.KeyPair{Public: &priv.PublicKey, Private: priv}, nil
}

// PrivateKey reads and imports the private key from the store. It never
// caches, so a key replaced by a restore is picked up immediately.
func (s *Service) PrivateKey(ctx context.Context) (*rsa.PrivateKey, error) {
	der, ok, err := s.store.Get(store.KeyPrivate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNoPrivateKey
	}
	priv, err := crypto.ParsePrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoPrivateKey, err)
	}
	return priv, nil
}

// Install replaces the local keypair with priv. It is used by restores.
func (s *Service) Install(priv *rsa.PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persist(priv)
}

// Reset deletes the local keypair. Messages encrypted to the old key can no
// longer be read on this device unless a backup is restored.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(store.KeyPrivate); err != nil {
		return err
	}
	if err := s.store.Delete(store.KeyPublic); err != nil {
		return err
	}
	s.log.Warn().Msg("Local keypair deleted")
	return nil
}

// SyncPublicKey makes sure the server holds our current public key. A fetch
// failure is treated like a missing key.
func (s *Service) SyncPublicKey(ctx context.Context, username domain.Username) error {
	pair, err := s.EnsureKeyPair(ctx)
	if err != nil {
		return err
	}
	localDER, err := crypto.MarshalPublicKey(pair.Public)
	if err != nil {
		return err
	}

	remote, err := s.relay.FetchPublicKey(ctx, username)
	if err != nil {
		s.log.Debug().Err(err).Str("username", username.String()).Msg("Could not fetch server public key")
	} else if remoteDER, err := crypto.DecodeB64(remote); err == nil && bytes.Equal(remoteDER, localDER) {
		s.log.Debug().Str("username", username.String()).Msg("Public key in sync with server")
		return nil
	}

	update := domain.PublicKeyUpdate{Username: username, PublicKey: crypto.B64(localDER)}
	if err := s.relay.UpdatePublicKey(ctx, update); err != nil {
		return fmt.Errorf("update public key: %w", err)
	}
	s.log.Info().Str("username", username.String()).Msg("Published public key")
	return nil
}

// Fingerprint returns a short fingerprint of the local public key.
func (s *Service) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	priv, err := s.PrivateKey(ctx)
	if err != nil {
		return "", err
	}
	fp, err := crypto.FingerprintRSA(&priv.PublicKey)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(fp), nil
}

func (s *Service) persist(priv *rsa.PrivateKey) error {
	der, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return err
	}
	if err := s.store.Put(store.KeyPrivate, der); err != nil {
		return err
	}
	return s.putPublic(&priv.PublicKey)
}

func (s *Service) putPublic(pub *rsa.PublicKey) error {
	der, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return err
	}
	return s.store.Put(store.KeyPublic, der)
}

// Compile-time assertion that Service implements domain.KeyManager.
var _ domain.KeyManager = (*Service)(nil)
