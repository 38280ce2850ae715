package peerkey

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"teambond/internal/crypto"
	"teambond/internal/domain"
	"teambond/internal/store"
)

// errSkipped marks a source that does not apply to this lookup.
var errSkipped = errors.New("source skipped")

// source is one step of the resolution chain.
type source struct {
	name   string
	lookup func(ctx context.Context, partner domain.Username, force bool) (*rsa.PublicKey, error)
}

// Resolver finds partner public keys.
type Resolver struct {
	store   domain.KeyStore
	relay   domain.RelayClient
	log     zerolog.Logger
	sources []source
}

// New returns a resolver that consults rc and caches into ks.
func New(ks domain.KeyStore, rc domain.RelayClient, log zerolog.Logger) *Resolver {
	r := &Resolver{
		store: ks,
		relay: rc,
		log:   log.With().Str("component", "peerkey").Logger(),
	}
	r.sources = []source{
		{name: "network", lookup: r.fromNetwork},
		{name: "cache", lookup: r.fromCache},
	}
	return r
}

// Resolve returns partner's public key or domain.ErrPeerKeyUnresolved.
func (r *Resolver) Resolve(ctx context.Context, partner domain.Username, forceRefresh bool) (*rsa.PublicKey, error) {
	if partner == "" {
		return nil, fmt.Errorf("%w: no partner", domain.ErrPeerKeyUnresolved)
	}
	for _, src := range r.sources {
		pub, err := src.lookup(ctx, partner, forceRefresh)
		if err == nil {
			r.log.Debug().Str("partner", partner.String()).Str("source", src.name).Msg("Resolved partner key")
			return pub, nil
		}
		if !errors.Is(err, errSkipped) {
			r.log.Debug().Err(err).Str("partner", partner.String()).Str("source", src.name).Msg("Partner key source failed")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPeerKeyUnresolved, partner)
}

// Cached returns the cache entry for partner without touching the network.
func (r *Resolver) Cached(partner domain.Username) (domain.PartnerKeyCacheEntry, bool, error) {
	b, ok, err := r.store.Get(store.PartnerKey(partner))
	if err != nil || !ok {
		return domain.PartnerKeyCacheEntry{}, false, err
	}
	return domain.PartnerKeyCacheEntry{Username: partner, PublicKeyBase64: string(b)}, true, nil
}

func (r *Resolver) fromNetwork(ctx context.Context, partner domain.Username, force bool) (*rsa.PublicKey, error) {
	if !force {
		if _, ok, err := r.Cached(partner); err == nil && ok {
			return nil, errSkipped
		}
	}
	b64, err := r.relay.FetchPublicKey(ctx, partner)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.ParsePublicKeyB64(b64)
	if err != nil {
		return nil, fmt.Errorf("server key for %s: %w", partner, err)
	}
	if err := r.store.Put(store.PartnerKey(partner), []byte(b64)); err != nil {
		r.log.Warn().Err(err).Str("partner", partner.String()).Msg("Could not cache partner key")
	}
	return pub, nil
}

func (r *Resolver) fromCache(ctx context.Context, partner domain.Username, _ bool) (*rsa.PublicKey, error) {
	entry, ok, err := r.Cached(partner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errSkipped
	}
	return crypto.ParsePublicKeyB64(entry.PublicKeyBase64)
}

// Compile-time assertion that Resolver implements domain.PeerKeyResolver.
var _ domain.PeerKeyResolver = (*Resolver)(nil)
