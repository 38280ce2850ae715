package crypto_test

import (
	"bytes"
	"strings"
	"testing"

	"teambond/internal/crypto"
)

func TestRSA_RoundTripCodecs(t *testing.T) {
	priv, err := crypto.GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	if priv.N.BitLen() != crypto.RSABits {
		t.Fatalf("want %d-bit modulus, got %d", crypto.RSABits, priv.N.BitLen())
	}

	der, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	back, err := crypto.ParsePrivateKey(der)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if !back.Equal(priv) {
		t.Fatal("private key changed across PKCS#8 round trip")
	}

	b64, err := crypto.PublicKeyB64(&priv.PublicKey)
	if err != nil {
		t.Fatalf("PublicKeyB64: %v", err)
	}
	pub, err := crypto.ParsePublicKeyB64(b64)
	if err != nil {
		t.Fatalf("ParsePublicKeyB64: %v", err)
	}
	if !pub.Equal(&priv.PublicKey) {
		t.Fatal("public key changed across SPKI round trip")
	}
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	if _, err := crypto.ParsePrivateKey([]byte("not a key")); err == nil {
		t.Fatal("expected error for garbage DER")
	}
}

func TestWrapUnwrap(t *testing.T) {
	priv, err := crypto.GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	key, err := crypto.NewAESKey()
	if err != nil {
		t.Fatalf("NewAESKey: %v", err)
	}
	wrapped, err := crypto.WrapKey(&priv.PublicKey, key)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	got, err := crypto.UnwrapKey(priv, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatal("unwrapped key differs")
	}

	other, err := crypto.GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	if _, err := crypto.UnwrapKey(other, wrapped); err == nil {
		t.Fatal("expected unwrap with a foreign key to fail")
	}
}

func TestGCM_SealOpenAndTamper(t *testing.T) {
	key, _ := crypto.NewAESKey()
	iv, _ := crypto.NewIV()
	if len(iv) != crypto.IVSize {
		t.Fatalf("want %d-byte IV, got %d", crypto.IVSize, len(iv))
	}

	ct, err := crypto.SealGCM(key, iv, []byte("hello"))
	if err != nil {
		t.Fatalf("SealGCM: %v", err)
	}
	pt, err := crypto.OpenGCM(key, iv, ct)
	if err != nil {
		t.Fatalf("OpenGCM: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("want hello, got %q", pt)
	}

	ct[0] ^= 0xff
	if _, err := crypto.OpenGCM(key, iv, ct); err == nil {
		t.Fatal("expected tag failure after tampering")
	}
	if _, err := crypto.SealGCM(key[:16], iv, nil); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDeriveKey_DeterministicPerUsername(t *testing.T) {
	a := crypto.DeriveKey("hunter2", []byte("alice"))
	b := crypto.DeriveKey("hunter2", []byte("alice"))
	c := crypto.DeriveKey("hunter2", []byte("bob"))
	if len(a) != crypto.AESKeySize {
		t.Fatalf("want %d-byte key, got %d", crypto.AESKeySize, len(a))
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same inputs must derive the same key")
	}
	if bytes.Equal(a, c) {
		t.Fatal("different usernames must derive different keys")
	}
}

func TestDecodeB64_ToleratesPEMAndWhitespace(t *testing.T) {
	raw := []byte("some spki bytes for testing purposes")
	enc := crypto.B64(raw)
	pem := "-----BEGIN PUBLIC KEY-----\n" + enc[:10] + "\n  " + enc[10:] + "\n-----END PUBLIC KEY-----\n"

	for name, in := range map[string]string{
		"plain":  enc,
		"pem":    pem,
		"quoted": `"` + enc + `"`,
		"spaces": " " + strings.Join(strings.Split(enc, ""), " ") + "\t",
	} {
		got, err := crypto.DecodeB64(in)
		if err != nil {
			t.Fatalf("%s: DecodeB64: %v", name, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("%s: decoded bytes differ", name)
		}
	}
}

func TestFingerprint_Format(t *testing.T) {
	priv, err := crypto.GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	fp, err := crypto.FingerprintRSA(&priv.PublicKey)
	if err != nil {
		t.Fatalf("FingerprintRSA: %v", err)
	}
	groups := strings.Fields(fp)
	if len(groups) != 8 {
		t.Fatalf("want 8 groups, got %q", fp)
	}
	for _, g := range groups {
		if len(g) != 4 || strings.ToUpper(g) != g {
			t.Fatalf("malformed group %q in %q", g, fp)
		}
	}
	again, _ := crypto.FingerprintRSA(&priv.PublicKey)
	if again != fp {
		t.Fatal("fingerprint must be stable")
	}
}
