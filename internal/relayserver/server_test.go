package relayserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"teambond/internal/domain"
	"teambond/internal/relay"
	"teambond/internal/relayserver"
)

func exercise(t *testing.T, store relayserver.Storage) {
	t.Helper()
	ctx := context.Background()
	srv := httptest.NewServer(relayserver.New(store, zerolog.Nop()).Handler())
	defer srv.Close()
	c := relay.NewHTTP(srv.URL, srv.Client())

	if _, err := c.FetchPublicKey(ctx, "alice"); !relay.NotFound(err) {
		t.Fatalf("want 404 for unknown user, got %v", err)
	}
	if err := c.UpdatePublicKey(ctx, domain.PublicKeyUpdate{Username: "alice", PublicKey: "pk-1"}); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}
	if err := c.UpdatePublicKey(ctx, domain.PublicKeyUpdate{Username: "alice", PublicKey: "pk-2"}); err != nil {
		t.Fatalf("UpdatePublicKey: %v", err)
	}
	key, err := c.FetchPublicKey(ctx, "alice")
	if err != nil || key != "pk-2" {
		t.Fatalf("want pk-2, got %q err=%v", key, err)
	}

	if err := c.UpdatePrivateKeyBackup(ctx, domain.EncryptedKeyBackup{Username: "alice", CipherText: "ct", IV: "iv"}); err != nil {
		t.Fatalf("UpdatePrivateKeyBackup: %v", err)
	}
	if err := c.UpdateRecoveryBackup(ctx, domain.RecoveryBackup{Username: "alice", CipherText: "rct", IV: "riv"}); err != nil {
		t.Fatalf("UpdateRecoveryBackup: %v", err)
	}
	b, err := c.FetchAccountBackups(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchAccountBackups: %v", err)
	}
	want := domain.AccountBackups{
		Username: "alice", PublicKey: "pk-2",
		EncryptedPrivateKey: "ct", PrivateKeyIV: "iv",
		EncryptedRecoveryPrivateKey: "rct", RecoveryKeyIV: "riv",
	}
	if b != want {
		t.Fatalf("backups: want %+v, got %+v", want, b)
	}
	if b, err := c.FetchAccountBackups(ctx, "nobody"); err != nil || b.HasPasswordBackup() {
		t.Fatalf("unknown user should have no backups, got %+v err=%v", b, err)
	}

	chat := domain.NewChatID("u1", "u2")
	if msgs, err := c.FetchHistory(ctx, chat); err != nil || len(msgs) != 0 {
		t.Fatalf("want empty history, got %v err=%v", msgs, err)
	}
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	post(t, srv.URL+relay.DefaultChatPath+"/send_message/u2/u1",
		domain.WireMessage{Sender: "alice", Content: `{"iv":"a"}`, Timestamp: domain.NewTimestamp(t0)})
	post(t, srv.URL+relay.DefaultChatPath+"/send_message/u1/u2",
		domain.WireMessage{Sender: "bob", Content: `{"iv":"b"}`, Timestamp: domain.NewTimestamp(t0.Add(time.Second))})

	msgs, err := c.FetchHistory(ctx, chat)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Sender != "alice" || msgs[1].Sender != "bob" {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if !msgs[0].Timestamp.Equal(t0) {
		t.Fatalf("timestamp changed: %v", msgs[0].Timestamp)
	}

	err = c.UpdatePublicKey(ctx, domain.PublicKeyUpdate{Username: "alice"})
	var se *relay.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for empty key, got %v", err)
	}
}

func post(t *testing.T, url string, msg domain.WireMessage) {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post %s: %s", url, resp.Status)
	}
}

func TestServer_MemoryStorage(t *testing.T) {
	exercise(t, relayserver.NewMemoryStorage())
}

func TestServer_RedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := relayserver.NewRedisStorage(rdb)
	t.Cleanup(func() { _ = store.Close() })
	exercise(t, store)

	if !mr.Exists("teambond:user:alice") || !mr.Exists("teambond:chat:u1/u2") {
		t.Fatal("expected user hash and chat list keys in redis")
	}
}

func TestServer_PostgresStorage(t *testing.T) {
	dsn := os.Getenv("TEAMBOND_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEAMBOND_TEST_POSTGRES_DSN not set")
	}
	store, err := relayserver.OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	exercise(t, store)
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(relayserver.New(relayserver.NewMemoryStorage(), zerolog.Nop()).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %s", resp.Status)
	}
}
