package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
	"teambond/internal/protocol/hybrid"
	"teambond/internal/relay/relaytest"
	"teambond/internal/services/chat"
	"teambond/internal/services/keys"
	"teambond/internal/services/peerkey"
	"teambond/internal/store"
	"teambond/internal/timeline"
	"teambond/internal/transport"
)

type fakeTransport struct {
	mu       sync.Mutex
	state    domain.ConnState
	connects []domain.ChatID
	bound    domain.ChatID
	sent     []domain.WireMessage
	failSend error
	onSend   func(domain.WireMessage)
}

func (f *fakeTransport) Connect(ctx context.Context, chat domain.ChatID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.Connected
	f.bound = chat
	f.connects = append(f.connects, chat)
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, chat domain.ChatID, wm domain.WireMessage) error {
	f.mu.Lock()
	if f.state != domain.Connected || chat != f.bound {
		f.mu.Unlock()
		return domain.ErrNotConnected
	}
	if f.failSend != nil {
		err := f.failSend
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, wm)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(wm)
	}
	return nil
}

func (f *fakeTransport) State() domain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.Disconnected
}

func (f *fakeTransport) connected() []domain.ChatID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatID(nil), f.connects...)
}

type peer struct {
	who  domain.Participant
	keys *keys.Service
	dec  *transport.Decoder
	tl   *timeline.Timeline
	tr   *fakeTransport
	svc  *chat.Service
}

func newPeer(t *testing.T, rc domain.RelayClient, name domain.Username, id domain.UserID) *peer {
	t.Helper()
	ks := store.NewFileKeyStore(t.TempDir(), "http://localhost:8080")
	if err := ks.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = ks.Close() })

	k := keys.New(ks, rc, zerolog.Nop())
	p := &peer{
		who:  domain.Participant{ID: id, Username: name},
		keys: k,
		dec:  transport.NewDecoder(k, hybrid.New()),
		tl:   timeline.New(0),
		tr:   &fakeTransport{},
	}
	p.svc = chat.New(chat.Deps{
		Keys:      k,
		Peers:     peerkey.New(ks, rc, zerolog.Nop()),
		Cipher:    hybrid.New(),
		Relay:     rc,
		Transport: p.tr,
		Decoder:   p.dec,
		Timeline:  p.tl,
	}, zerolog.Nop(), chat.WithWorkers(2))
	return p
}

func (p *peer) publish(t *testing.T) {
	t.Helper()
	if err := p.keys.SyncPublicKey(context.Background(), p.who.Username); err != nil {
		t.Fatalf("SyncPublicKey(%s): %v", p.who.Username, err)
	}
}

func (p *peer) open(t *testing.T, partner *peer) {
	t.Helper()
	ctx := context.Background()
	if err := p.svc.SetParticipants(ctx, p.who, partner.who); err != nil {
		t.Fatalf("SetParticipants: %v", err)
	}
	if err := p.svc.SetKeySetupComplete(ctx, true); err != nil {
		t.Fatalf("SetKeySetupComplete: %v", err)
	}
}

func TestConversation_PartnersReadThirdPartyCannot(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	carol := newPeer(t, rc, "carol", "u3")
	for _, p := range []*peer{alice, bob, carol} {
		p.publish(t)
	}

	chatID := domain.NewChatID("u2", "u1")
	alice.tr.onSend = func(wm domain.WireMessage) { rc.Append(chatID, wm) }
	alice.open(t, bob)

	if !alice.svc.Ready() {
		t.Fatal("alice should be ready")
	}
	if got := alice.tr.connected(); len(got) != 1 || got[0] != chatID {
		t.Fatalf("want one connect to %s, got %v", chatID, got)
	}
	if err := alice.svc.Send(ctx, "hello bob"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgs := alice.svc.Messages(); len(msgs) != 1 || msgs[0].Pending || msgs[0].Content != "hello bob" {
		t.Fatalf("alice timeline: %+v", msgs)
	}

	bob.open(t, alice)
	msgs := bob.svc.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello bob" || msgs[0].Failed {
		t.Fatalf("bob timeline: %+v", msgs)
	}

	record := rc.History[chatID][0]
	if got := carol.dec.Decode(ctx, record); !got.Failed || got.Content != domain.PlaceholderDecryptionFailed {
		t.Fatalf("carol must not read the message, got %+v", got)
	}

	// Alice reloads her own history through the sender wrap.
	if err := alice.svc.SetKeySetupComplete(ctx, false); err != nil {
		t.Fatalf("SetKeySetupComplete: %v", err)
	}
	if alice.tl.Len() != 0 {
		t.Fatal("regression must clear the timeline")
	}
	if err := alice.svc.SetKeySetupComplete(ctx, true); err != nil {
		t.Fatalf("SetKeySetupComplete: %v", err)
	}
	msgs = alice.svc.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello bob" {
		t.Fatalf("alice reloaded timeline: %+v", msgs)
	}
}

func TestSend_EchoIsDeduplicated(t *testing.T) {
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	alice.publish(t)
	bob.publish(t)

	alice.tr.onSend = func(wm domain.WireMessage) {
		alice.tl.Append(alice.dec.Decode(context.Background(), wm))
	}
	alice.open(t, bob)
	if err := alice.svc.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := alice.tl.Len(); n != 1 {
		t.Fatalf("echo should be absorbed, timeline has %d entries", n)
	}
}

func TestSend_RollsBackOnPublishFailure(t *testing.T) {
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	alice.publish(t)
	bob.publish(t)
	alice.open(t, bob)

	alice.tr.failSend = domain.ErrNetwork
	err := alice.svc.Send(context.Background(), "lost")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("want ErrNetwork, got %v", err)
	}
	if alice.tl.Len() != 0 {
		t.Fatal("optimistic entry must be removed after a failed publish")
	}
}

func TestSend_PartnerSwitchMidSendIsNotPublished(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	carol := newPeer(t, rc, "carol", "u3")
	for _, p := range []*peer{alice, bob, carol} {
		p.publish(t)
	}
	alice.open(t, bob)

	var once sync.Once
	alice.tl.SetObserver(func(m domain.ChatMessage) {
		once.Do(func() {
			if err := alice.svc.SetParticipants(ctx, alice.who, carol.who); err != nil {
				t.Errorf("SetParticipants: %v", err)
			}
		})
	})

	err := alice.svc.Send(ctx, "for bob only")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
	want := []domain.ChatID{"u1/u2", "u1/u3"}
	got := alice.tr.connected()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("want connects %v, got %v", want, got)
	}
	alice.tr.mu.Lock()
	sent := len(alice.tr.sent)
	alice.tr.mu.Unlock()
	if sent != 0 {
		t.Fatalf("envelope for bob was published on carol's conversation (%d sends)", sent)
	}
	for _, m := range alice.tl.Snapshot() {
		if m.Content == "for bob only" {
			t.Fatal("rolled-back entry still in the new conversation")
		}
	}
}

func TestSend_Preconditions(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	bob.publish(t)

	if err := alice.svc.Send(ctx, "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if err := alice.svc.Send(ctx, "hi"); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
	alice.open(t, bob)
	alice.tr.Disconnect()
	if err := alice.svc.Send(ctx, "hi"); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestSend_ResolvesPartnerKeyJustInTime(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	alice.publish(t)

	alice.open(t, bob)
	if alice.svc.Ready() {
		t.Fatal("not ready while bob has no published key")
	}
	if len(alice.tr.connected()) != 1 {
		t.Fatal("receiving should start without the partner key")
	}
	if err := alice.svc.Send(ctx, "hi"); !errors.Is(err, domain.ErrPeerKeyUnresolved) {
		t.Fatalf("want ErrPeerKeyUnresolved, got %v", err)
	}

	bob.publish(t)
	if err := alice.svc.Send(ctx, "hi"); err != nil {
		t.Fatalf("Send after bob published: %v", err)
	}
	if !alice.svc.Ready() {
		t.Fatal("ready once the key is resolved")
	}
}

type gatedRelay struct {
	*relaytest.Fake
	block   domain.ChatID
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedRelay) FetchHistory(ctx context.Context, chat domain.ChatID) ([]domain.WireMessage, error) {
	if chat == g.block {
		close(g.entered)
		<-g.gate
	}
	return g.Fake.FetchHistory(ctx, chat)
}

func TestSetParticipants_DiscardsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	fake := relaytest.New()
	rc := &gatedRelay{
		Fake:    fake,
		block:   domain.NewChatID("u1", "u2"),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	alice := newPeer(t, rc, "alice", "u1")
	bob := newPeer(t, rc, "bob", "u2")
	carol := newPeer(t, rc, "carol", "u3")

	fake.Append(domain.NewChatID("u1", "u2"), domain.WireMessage{Sender: "bob", Content: "{}"})
	fake.Append(domain.NewChatID("u1", "u3"), domain.WireMessage{Sender: "carol", Content: "{}"})

	if err := alice.svc.SetKeySetupComplete(ctx, true); err != nil {
		t.Fatalf("SetKeySetupComplete: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- alice.svc.SetParticipants(ctx, alice.who, bob.who) }()
	<-rc.entered

	if err := alice.svc.SetParticipants(ctx, alice.who, carol.who); err != nil {
		t.Fatalf("SetParticipants(carol): %v", err)
	}
	close(rc.gate)
	if err := <-errc; err != nil {
		t.Fatalf("SetParticipants(bob): %v", err)
	}

	if got := alice.tr.connected(); len(got) != 1 || got[0] != domain.NewChatID("u1", "u3") {
		t.Fatalf("only the current conversation may connect, got %v", got)
	}
	msgs := alice.svc.Messages()
	if len(msgs) != 1 || msgs[0].Sender != "carol" {
		t.Fatalf("stale history leaked into the timeline: %+v", msgs)
	}
	if alice.svc.ChatID() != domain.NewChatID("u3", "u1") {
		t.Fatalf("unexpected chat id %s", alice.svc.ChatID())
	}
}
