package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"teambond/internal/domain"
	"teambond/internal/store"
)

func openStore(t *testing.T, home, origin string) *store.FileKeyStore {
	t.Helper()
	ks := store.NewFileKeyStore(home, origin)
	if err := ks.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = ks.Close() })
	return ks
}

func TestKeyStore_PutGetDelete(t *testing.T) {
	var ks domain.KeyStore = openStore(t, t.TempDir(), "http://localhost:8080")

	if _, ok, err := ks.Get(store.KeyPrivate); err != nil || ok {
		t.Fatalf("want empty store, got ok=%v err=%v", ok, err)
	}
	if err := ks.Put(store.KeyPrivate, []byte{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := ks.Get(store.KeyPrivate)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != "\x01\x02\x03" {
		t.Fatalf("unexpected value %v", got)
	}

	// Returned slices are copies.
	got[0] = 9
	again, _, _ := ks.Get(store.KeyPrivate)
	if again[0] != 1 {
		t.Fatal("store value mutated through returned slice")
	}

	if err := ks.Delete(store.KeyPrivate); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ks.Delete(store.KeyPrivate); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, ok, _ := ks.Get(store.KeyPrivate); ok {
		t.Fatal("key still present after delete")
	}
}

func TestKeyStore_PersistsAcrossInstances(t *testing.T) {
	home := t.TempDir()
	a := openStore(t, home, "http://localhost:8080/")
	if err := a.Put(store.PartnerKey("bob"), []byte("spki")); err != nil {
		t.Fatalf("put: %v", err)
	}

	b := openStore(t, home, "http://localhost:8080")
	got, ok, err := b.Get("publicKey:bob")
	if err != nil || !ok || string(got) != "spki" {
		t.Fatalf("want spki, got %q ok=%v err=%v", got, ok, err)
	}

	info, err := os.Stat(filepath.Join(store.OriginDir(home, "http://localhost:8080"), "keys.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("want 0600, got %v", info.Mode().Perm())
	}
}

func TestKeyStore_OriginsAreIsolated(t *testing.T) {
	home := t.TempDir()
	a := openStore(t, home, "https://teambond.example")
	b := openStore(t, home, "http://localhost:8080")

	if err := a.Put(store.KeyPrivate, []byte("a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := b.Get(store.KeyPrivate); ok {
		t.Fatal("origin namespaces leaked")
	}
}

func TestKeyStore_ClosedRejectsUse(t *testing.T) {
	ks := store.NewFileKeyStore(t.TempDir(), "http://x")
	if _, _, err := ks.Get(store.KeyPublic); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("want ErrStoreClosed before open, got %v", err)
	}
	if err := ks.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ks.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ks.Put(store.KeyPublic, nil); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("want ErrStoreClosed after close, got %v", err)
	}
}

func TestProfileStore_SaveLoad(t *testing.T) {
	var ps domain.ProfileStore = store.NewProfileFileStore(t.TempDir())

	if _, ok, err := ps.LoadProfile("http://localhost:8080"); err != nil || ok {
		t.Fatalf("want no profile, got ok=%v err=%v", ok, err)
	}
	want := domain.Profile{Origin: "http://localhost:8080", Username: "alice", UserID: "u-1"}
	if err := ps.SaveProfile(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := ps.LoadProfile("http://localhost:8080/")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}
}

func TestKeyStore_CorruptFileIsMovedAside(t *testing.T) {
	home := t.TempDir()
	origin := "http://localhost:8080"
	path := filepath.Join(store.OriginDir(home, origin), "keys.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"privateKey":`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ks := openStore(t, home, origin)

	if _, ok, err := ks.Get(store.KeyPrivate); err != nil || ok {
		t.Fatalf("want empty store after corruption, got ok=%v err=%v", ok, err)
	}
	if b, err := os.ReadFile(path + ".corrupt"); err != nil || string(b) != `{"privateKey":` {
		t.Fatalf("corrupt file should be kept aside: %q err=%v", b, err)
	}
	if err := ks.Put(store.KeyPublic, []byte("pk")); err != nil {
		t.Fatalf("put after corruption: %v", err)
	}
	if got, ok, _ := ks.Get(store.KeyPublic); !ok || string(got) != "pk" {
		t.Fatalf("want pk, got %q", got)
	}
}
