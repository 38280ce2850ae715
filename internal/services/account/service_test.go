package account_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
	"teambond/internal/relay/relaytest"
	"teambond/internal/services/account"
	"teambond/internal/services/keys"
	"teambond/internal/services/recovery"
	"teambond/internal/services/vault"
	"teambond/internal/store"
)

type device struct {
	keys    *keys.Service
	account *account.Service
}

func newDevice(t *testing.T, rc domain.RelayClient) device {
	t.Helper()
	ks := store.NewFileKeyStore(t.TempDir(), "http://localhost:8080")
	if err := ks.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = ks.Close() })

	log := zerolog.Nop()
	k := keys.New(ks, rc, log)
	v := vault.New(ks, k, rc, log)
	r := recovery.New(ks, k, rc, log)
	return device{keys: k, account: account.New(k, v, r, log)}
}

func samePrivateKey(t *testing.T, a, b device) bool {
	t.Helper()
	ka, err := a.keys.PrivateKey(context.Background())
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	kb, err := b.keys.PrivateKey(context.Background())
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	return ka.Equal(kb)
}

func TestRegisterThenLoginOnFreshDevice(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()

	laptop := newDevice(t, rc)
	code, err := laptop.account.Register(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n := len(strings.Split(code, "-")); n != recovery.CodeWords {
		t.Fatalf("want %d-word code, got %q", recovery.CodeWords, code)
	}
	backups := rc.Backup("alice")
	if !backups.HasPasswordBackup() || !backups.HasRecoveryBackup() || backups.PublicKey == "" {
		t.Fatalf("register should upload key and both backups: %+v", backups)
	}

	phone := newDevice(t, rc)
	outcome, err := phone.account.Login(ctx, "alice", "pw", backups, nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if outcome != account.Restored {
		t.Fatalf("want restored, got %v", outcome)
	}
	if !samePrivateKey(t, laptop, phone) {
		t.Fatal("fresh device must end up with the registered key")
	}
	if rc.Count("UpdatePublicKey") != 1 {
		t.Fatalf("public key already in sync, want no re-upload, got %d uploads", rc.Count("UpdatePublicKey"))
	}
}

func TestLogin_FallsBackToRecoveryCodeAndReencrypts(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()

	laptop := newDevice(t, rc)
	code, err := laptop.account.Register(ctx, "alice", "old-password")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// The password was changed elsewhere, so the stored backup no longer opens.
	var prompts int
	prompt := func(ctx context.Context, attempt int) (string, error) {
		prompts++
		if attempt == 1 {
			return "wrong-words-here-now", nil
		}
		return "  " + strings.ToUpper(code) + "\n", nil
	}
	phone := newDevice(t, rc)
	outcome, err := phone.account.Login(ctx, "alice", "new-password", rc.Backup("alice"), prompt)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if outcome != account.Recovered || prompts != 2 {
		t.Fatalf("want recovered after 2 prompts, got %v after %d", outcome, prompts)
	}
	if !samePrivateKey(t, laptop, phone) {
		t.Fatal("recovered key differs")
	}

	// The backup now opens with the new password.
	tablet := newDevice(t, rc)
	outcome, err = tablet.account.Login(ctx, "alice", "new-password", rc.Backup("alice"), nil)
	if err != nil || outcome != account.Restored {
		t.Fatalf("want restored with new password, got %v err=%v", outcome, err)
	}
}

func TestLogin_ExhaustedIsRestoreError(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	laptop := newDevice(t, rc)
	if _, err := laptop.account.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	backups := rc.Backup("alice")

	phone := newDevice(t, rc)
	if _, err := phone.account.Login(ctx, "alice", "nope", backups, nil); !errors.Is(err, domain.ErrRestore) {
		t.Fatalf("want ErrRestore without prompt, got %v", err)
	}

	var prompts int
	wrong := func(context.Context, int) (string, error) {
		prompts++
		return "", nil
	}
	if _, err := phone.account.Login(ctx, "alice", "nope", backups, wrong); !errors.Is(err, domain.ErrRestore) {
		t.Fatalf("want ErrRestore after bad codes, got %v", err)
	}
	if prompts != account.MaxRecoveryAttempts {
		t.Fatalf("want %d prompts, got %d", account.MaxRecoveryAttempts, prompts)
	}

	cancelled := errors.New("user cancelled")
	abort := func(context.Context, int) (string, error) { return "", cancelled }
	_, err := phone.account.Login(ctx, "alice", "nope", backups, abort)
	if !errors.Is(err, domain.ErrRestore) || !errors.Is(err, cancelled) {
		t.Fatalf("want ErrRestore wrapping the prompt error, got %v", err)
	}
}

func TestLogin_NoBackupCreatesKeys(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	d := newDevice(t, rc)

	outcome, err := d.account.Login(ctx, "bob", "pw", domain.AccountBackups{Username: "bob"}, nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if outcome != account.FreshKeys {
		t.Fatalf("want fresh keys, got %v", outcome)
	}
	b := rc.Backup("bob")
	if !b.HasPasswordBackup() || b.PublicKey == "" {
		t.Fatalf("want key published and backed up, got %+v", b)
	}
}

func TestInputValidation(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, relaytest.New())
	if _, err := d.account.Register(ctx, "", "pw"); !errors.Is(err, account.ErrNoUsername) {
		t.Fatalf("want ErrNoUsername, got %v", err)
	}
	if _, err := d.account.Register(ctx, "alice", ""); !errors.Is(err, domain.ErrEmptySecret) {
		t.Fatalf("want ErrEmptySecret, got %v", err)
	}
	if _, err := d.account.Login(ctx, "alice", "", domain.AccountBackups{}, nil); !errors.Is(err, domain.ErrEmptySecret) {
		t.Fatalf("want ErrEmptySecret, got %v", err)
	}
}

func TestStartOver_ReplacesKeysAndBackups(t *testing.T) {
	ctx := context.Background()
	rc := relaytest.New()
	laptop := newDevice(t, rc)
	if _, err := laptop.account.Register(ctx, "alice", "forgotten"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	oldPub := rc.PublicKeys["alice"]

	phone := newDevice(t, rc)
	if _, err := phone.account.Login(ctx, "alice", "guess", rc.Backup("alice"), nil); !errors.Is(err, domain.ErrRestore) {
		t.Fatalf("want ErrRestore, got %v", err)
	}
	code, err := phone.account.StartOver(ctx, "alice", "guess")
	if err != nil {
		t.Fatalf("StartOver: %v", err)
	}
	if rc.PublicKeys["alice"] == oldPub {
		t.Fatal("server should hold the new public key")
	}
	if samePrivateKey(t, laptop, phone) {
		t.Fatal("start over must create a new keypair")
	}

	tablet := newDevice(t, rc)
	if outcome, err := tablet.account.Login(ctx, "alice", "guess", rc.Backup("alice"), nil); err != nil || outcome != account.Restored {
		t.Fatalf("new password backup: outcome=%v err=%v", outcome, err)
	}
	if !samePrivateKey(t, phone, tablet) {
		t.Fatal("restored key differs from the new key")
	}

	watch := newDevice(t, rc)
	prompt := func(context.Context, int) (string, error) { return code, nil }
	if outcome, err := watch.account.Login(ctx, "alice", "other", rc.Backup("alice"), prompt); err != nil || outcome != account.Recovered {
		t.Fatalf("new recovery code: outcome=%v err=%v", outcome, err)
	}
	if !samePrivateKey(t, phone, watch) {
		t.Fatal("recovery backup still holds the old key")
	}
}
