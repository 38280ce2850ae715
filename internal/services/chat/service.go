package chat

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"teambond/internal/domain"
	"teambond/internal/timeline"
)

// ErrEmptyMessage indicates Send was called with blank text.
var ErrEmptyMessage = errors.New("message is empty")

// Decoder turns a wire record into a displayable message. It never fails;
// undecryptable records come back as placeholders.
type Decoder interface {
	Decode(ctx context.Context, wm domain.WireMessage) domain.ChatMessage
}

// Deps are the collaborators of a Service.
type Deps struct {
	Keys      domain.KeyManager
	Peers     domain.PeerKeyResolver
	Cipher    domain.MessageCipher
	Relay     domain.RelayClient
	Transport domain.ChatTransport
	Decoder   Decoder
	Timeline  *timeline.Timeline
}

// Service runs a single conversation.
//
// High-level flow:
//   - Activation: once both participants are known and key setup is complete,
//     resolve the partner key (network first, cache as fallback), fetch the
//     history, decrypt it in parallel, publish it to the timeline in one step
//     and connect the transport.
//   - Regression: a partner change or a key setup reset disconnects the
//     transport, bumps the generation and clears the timeline. Work started
//     under an older generation is discarded when it completes.
//   - Send: resolve the partner key just in time if it is still missing, seal
//     for the partner and for ourselves, insert optimistically, publish, and
//     roll back exactly that entry if the publish fails.
type Service struct {
	keys      domain.KeyManager
	peers     domain.PeerKeyResolver
	cipher    domain.MessageCipher
	relay     domain.RelayClient
	transport domain.ChatTransport
	decoder   Decoder
	timeline  *timeline.Timeline
	log       zerolog.Logger

	now     func() time.Time
	workers int

	mu         sync.Mutex
	gen        uint64
	me         domain.Participant
	partner    domain.Participant
	keySetup   bool
	partnerKey *rsa.PublicKey
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for outgoing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithWorkers bounds the number of concurrent history decryptions.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New returns an idle Service.
func New(d Deps, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		keys:      d.Keys,
		peers:     d.Peers,
		cipher:    d.Cipher,
		relay:     d.Relay,
		transport: d.Transport,
		decoder:   d.Decoder,
		timeline:  d.Timeline,
		log:       log.With().Str("component", "chat").Logger(),
		now:       time.Now,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetParticipants selects the conversation. Changing either side resets the
// session. ctx bounds history loading and the lifetime of the connection.
func (s *Service) SetParticipants(ctx context.Context, me, partner domain.Participant) error {
	s.mu.Lock()
	if s.me == me && s.partner == partner {
		s.mu.Unlock()
		return nil
	}
	s.me, s.partner = me, partner
	gen := s.regressLocked()
	s.mu.Unlock()

	return s.activate(ctx, gen)
}

// SetKeySetupComplete records whether the local key setup has finished.
// Clearing it resets the session; setting it may activate one.
func (s *Service) SetKeySetupComplete(ctx context.Context, done bool) error {
	s.mu.Lock()
	if s.keySetup == done {
		s.mu.Unlock()
		return nil
	}
	s.keySetup = done
	gen := s.regressLocked()
	s.mu.Unlock()

	if !done {
		return nil
	}
	return s.activate(ctx, gen)
}

// Ready reports whether both participants are known, the partner key is
// resolved and key setup is complete.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.me.Known() && s.partner.Known() && s.keySetup && s.partnerKey != nil
}

// ChatID returns the current conversation identifier, or "" when the
// participants are not both known.
func (s *Service) ChatID() domain.ChatID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.me.Known() || !s.partner.Known() {
		return ""
	}
	return domain.NewChatID(s.me.ID, s.partner.ID)
}

// Messages returns a snapshot of the timeline.
func (s *Service) Messages() []domain.ChatMessage {
	return s.timeline.Snapshot()
}

// Close disconnects and invalidates any in-flight work.
func (s *Service) Close() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.transport.Disconnect()
}

// Send encrypts text for the partner and publishes it.
func (s *Service) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	gen, me, partner, setup, key := s.gen, s.me, s.partner, s.keySetup, s.partnerKey
	s.mu.Unlock()

	if !me.Known() || !partner.Known() || !setup {
		return domain.ErrNotReady
	}
	chat := domain.NewChatID(me.ID, partner.ID)
	if s.transport.State() != domain.Connected {
		return domain.ErrNotConnected
	}

	if key == nil {
		var err error
		key, err = s.peers.Resolve(ctx, partner.Username, true)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.gen == gen {
			s.partnerKey = key
		}
		s.mu.Unlock()
	}

	pair, err := s.keys.EnsureKeyPair(ctx)
	if err != nil {
		return err
	}
	env, err := s.cipher.Encrypt(text, key, pair.Public)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	wm, err := domain.NewWireMessage(me.Username, env, s.now())
	if err != nil {
		return err
	}

	if !s.current(gen) {
		return domain.ErrNotReady
	}
	id := s.timeline.AppendPending(domain.ChatMessage{
		Sender:    me.Username,
		Content:   text,
		Timestamp: wm.Timestamp.Time,
	})
	if err := s.transport.Send(ctx, chat, wm); err != nil {
		s.timeline.Remove(id)
		return err
	}
	s.timeline.Confirm(id)
	return nil
}

// regressLocked tears the session down and returns the new generation.
func (s *Service) regressLocked() uint64 {
	s.gen++
	s.partnerKey = nil
	// Disconnect first so no frame already in flight lands after the reset.
	// It only takes the transport's own locks.
	s.transport.Disconnect()
	s.timeline.Reset()
	return s.gen
}

func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Service) activate(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	me, partner, setup := s.me, s.partner, s.keySetup
	s.mu.Unlock()
	if !me.Known() || !partner.Known() || !setup {
		return nil
	}
	chat := domain.NewChatID(me.ID, partner.ID)
	log := s.log.With().Str("chat", chat.String()).Logger()

	key, err := s.peers.Resolve(ctx, partner.Username, true)
	if err != nil {
		// Receiving still works; Send retries the lookup.
		log.Warn().Err(err).Str("partner", partner.Username.String()).Msg("Partner key unavailable")
	} else {
		s.mu.Lock()
		if s.gen == gen {
			s.partnerKey = key
		}
		s.mu.Unlock()
	}

	history, err := s.loadHistory(ctx, chat)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("Could not load history")
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Msg("Discarding stale session setup")
		return nil
	}
	if history != nil {
		s.timeline.Replace(history)
	}
	// Connect under the lock so a concurrent regression cannot interleave.
	err = s.transport.Connect(ctx, chat)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("connect %s: %w", chat, err)
	}
	log.Info().Int("history", len(history)).Msg("Conversation active")
	return nil
}

func (s *Service) loadHistory(ctx context.Context, chat domain.ChatID) ([]domain.ChatMessage, error) {
	records, err := s.relay.FetchHistory(ctx, chat)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, wm := range records {
		i, wm := i, wm
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.decoder.Decode(gctx, wm)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
