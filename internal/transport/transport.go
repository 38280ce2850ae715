package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
	"teambond/internal/timeline"
)

// Default destinations and retry delay.
const (
	DefaultTopicPrefix    = "/topic/personal_chat/"
	DefaultPublishPrefix  = "/app/personal_chat/send_message/"
	DefaultReconnectDelay = 5 * time.Second
)

var errStreamClosed = errors.New("subscription closed")

// Config holds destination prefixes and the reconnect delay.
type Config struct {
	TopicPrefix    string
	PublishPrefix  string
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.PublishPrefix == "" {
		c.PublishPrefix = DefaultPublishPrefix
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return c
}

// Client is a ChatTransport for one conversation at a time.
type Client struct {
	dialer   Dialer
	decoder  *Decoder
	timeline *timeline.Timeline
	cfg      Config
	log      zerolog.Logger

	// applyMu orders timeline mutations against Disconnect.
	applyMu sync.Mutex

	mu      sync.Mutex
	state   domain.ConnState
	changed chan struct{}
	onState func(domain.ConnState)
	chat    domain.ChatID
	session Session
	alive   *atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a disconnected Client that appends decoded messages to tl.
func New(dialer Dialer, decoder *Decoder, tl *timeline.Timeline, cfg Config, log zerolog.Logger) *Client {
	return &Client{
		dialer:   dialer,
		decoder:  decoder,
		timeline: tl,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "transport").Logger(),
		changed:  make(chan struct{}),
	}
}

// OnStateChange registers fn to be called on every state transition.
func (c *Client) OnStateChange(fn func(domain.ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Client) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop for chat and returns immediately. Any
// previous connection is torn down first. The loop stops when ctx ends or
// Disconnect is called.
func (c *Client) Connect(ctx context.Context, chat domain.ChatID) error {
	if chat == "" {
		return errors.New("transport: empty chat id")
	}
	c.Disconnect()

	runCtx, cancel := context.WithCancel(ctx)
	alive := new(atomic.Bool)
	alive.Store(true)
	done := make(chan struct{})

	c.mu.Lock()
	c.chat = chat
	c.alive = alive
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx, chat, alive)
	}()
	return nil
}

// WaitConnected blocks until the client is connected or ctx ends.
func (c *Client) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == domain.Connected {
			c.mu.Unlock()
			return nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Send publishes msg to chat. It fails with domain.ErrNotConnected unless
// the client is connected to that very conversation.
func (c *Client) Send(ctx context.Context, chat domain.ChatID, msg domain.WireMessage) error {
	c.mu.Lock()
	sess, bound, state := c.session, c.chat, c.state
	c.mu.Unlock()

	if state != domain.Connected || sess == nil {
		return domain.ErrNotConnected
	}
	if chat != bound {
		return fmt.Errorf("%w: bound to %s, not %s", domain.ErrNotConnected, bound, chat)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := sess.Send(c.cfg.PublishPrefix+chat.String(), body); err != nil {
		return fmt.Errorf("%w: publish: %v", domain.ErrNetwork, err)
	}
	return nil
}

// Disconnect stops the loop and closes the session. It is idempotent and
// safe to call from any goroutine except a state observer.
func (c *Client) Disconnect() {
	c.mu.Lock()
	alive, cancel, done := c.alive, c.cancel, c.done
	c.alive, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if alive == nil {
		return
	}

	c.applyMu.Lock()
	alive.Store(false)
	c.applyMu.Unlock()

	cancel()

	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
	<-done

	c.transition(domain.Disconnected)
}

func (c *Client) run(ctx context.Context, chat domain.ChatID, alive *atomic.Bool) {
	log := c.log.With().Str("chat", chat.String()).Logger()
	for {
		c.setState(alive, domain.Connecting)
		sess, err := c.dialer.Dial(ctx)
		if err == nil {
			err = c.serve(ctx, sess, chat, alive)
		}
		c.setState(alive, domain.Disconnected)

		if ctx.Err() != nil || !alive.Load() {
			return
		}
		log.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("Chat connection lost")

		t := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (c *Client) serve(ctx context.Context, sess Session, chat domain.ChatID, alive *atomic.Bool) error {
	defer sess.Close()

	frames, err := sess.Subscribe(c.cfg.TopicPrefix + chat.String())
	if err != nil {
		return err
	}

	c.mu.Lock()
	if !alive.Load() {
		c.mu.Unlock()
		return nil
	}
	c.session = sess
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.session == sess {
			c.session = nil
		}
		c.mu.Unlock()
	}()

	c.setState(alive, domain.Connected)
	c.log.Info().Str("chat", chat.String()).Msg("Chat connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return errStreamClosed
			}
			if f.Err != nil {
				return f.Err
			}
			c.handle(ctx, f.Body, alive)
		}
	}
}

func (c *Client) handle(ctx context.Context, body []byte, alive *atomic.Bool) {
	var wm domain.WireMessage
	if err := json.Unmarshal(body, &wm); err != nil {
		c.log.Warn().Err(err).Msg("Dropping undecodable frame")
		return
	}
	msg := c.decoder.Decode(ctx, wm)
	if msg.Failed {
		c.log.Debug().Str("sender", wm.Sender.String()).Msg("Message could not be decrypted")
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if !alive.Load() {
		return
	}
	if !c.timeline.Append(msg) {
		c.log.Debug().Str("sender", wm.Sender.String()).Msg("Duplicate message dropped")
	}
}

func (c *Client) setState(alive *atomic.Bool, s domain.ConnState) {
	if !alive.Load() {
		return
	}
	c.transition(s)
}

func (c *Client) transition(s domain.ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Compile-time assertion that Client implements domain.ChatTransport.
var _ domain.ChatTransport = (*Client)(nil)
