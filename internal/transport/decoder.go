package transport

import (
	"context"
	"crypto/rsa"

	"teambond/internal/domain"
)

// PrivateKeySource returns the current private key. Implementations must
// read it fresh on every call.
type PrivateKeySource interface {
	PrivateKey(ctx context.Context) (*rsa.PrivateKey, error)
}

// Decoder turns wire records into displayable messages.
type Decoder struct {
	keys   PrivateKeySource
	cipher domain.MessageCipher
}

// NewDecoder returns a Decoder.
func NewDecoder(keys PrivateKeySource, cipher domain.MessageCipher) *Decoder {
	return &Decoder{keys: keys, cipher: cipher}
}

// Decode decrypts wm. It never fails: undecryptable content is replaced by
// a placeholder and the result is marked Failed.
func (d *Decoder) Decode(ctx context.Context, wm domain.WireMessage) domain.ChatMessage {
	out := domain.ChatMessage{Sender: wm.Sender, Timestamp: wm.Timestamp.Time}

	priv, err := d.keys.PrivateKey(ctx)
	if err != nil {
		out.Content, out.Failed = domain.PlaceholderPrivateKeyMissing, true
		return out
	}
	env, err := wm.Envelope()
	if err != nil {
		out.Content, out.Failed = domain.PlaceholderDecryptionFailed, true
		return out
	}
	text, err := d.cipher.Decrypt(env, priv)
	if err != nil {
		out.Content, out.Failed = domain.PlaceholderDecryptionFailed, true
		return out
	}
	out.Content = text
	return out
}
