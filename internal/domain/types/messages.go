package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Placeholders rendered in place of a message that could not be decrypted.
const (
	PlaceholderDecryptionFailed  = "[Decryption Failed]"
	PlaceholderPrivateKeyMissing = "[Decryption Failed - Private Key Missing]"
)

// isoLayout matches the millisecond UTC form produced by JavaScript's
// Date.prototype.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// parseLayouts are tried in order when decoding. Servers that serialise a
// local date-time send no zone; those values are read as UTC.
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// MessageEnvelope is the hybrid-encrypted payload. All fields are base64.
type MessageEnvelope struct {
	EncryptedMessage      string `json:"encryptedMessage"`
	EncryptedAESKey       string `json:"encryptedAESKey"`
	EncryptedAESKeySender string `json:"encryptedAESKeySender,omitempty"`
	IV                    string `json:"iv"`
}

// Timestamp is a wall-clock instant encoded as an ISO-8601 string. Epoch
// milliseconds are accepted when decoding.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// MarshalJSON encodes the timestamp as a quoted ISO-8601 string.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(isoLayout))
}

// UnmarshalJSON accepts an ISO-8601 string, with or without a zone, or a
// number of epoch milliseconds.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t, err := parseISO(s)
		if err != nil {
			return err
		}
		ts.Time = t.UTC()
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", b, err)
	}
	ts.Time = time.UnixMilli(ms).UTC()
	return nil
}

func parseISO(s string) (time.Time, error) {
	var first error
	for _, layout := range parseLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if first == nil {
			first = err
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, first)
}

// WireMessage is the record exchanged over the realtime channel and returned
// by the history endpoint. Content is the JSON-encoded MessageEnvelope.
type WireMessage struct {
	Sender    Username  `json:"sender"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// Envelope decodes Content.
func (m WireMessage) Envelope() (MessageEnvelope, error) {
	var env MessageEnvelope
	if err := json.Unmarshal([]byte(m.Content), &env); err != nil {
		return MessageEnvelope{}, err
	}
	return env, nil
}

// NewWireMessage encodes env as the Content of a record from sender.
func NewWireMessage(sender Username, env MessageEnvelope, at time.Time) (WireMessage, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return WireMessage{}, err
	}
	return WireMessage{Sender: sender, Content: string(b), Timestamp: NewTimestamp(at)}, nil
}

// ChatMessage is a decrypted entry ready for display.
type ChatMessage struct {
	LocalID   string    `json:"local_id,omitempty"`
	Sender    Username  `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Failed marks Content as a decryption placeholder.
	Failed bool `json:"failed,omitempty"`
	// Pending marks an optimistic entry whose publish has not completed.
	Pending bool `json:"pending,omitempty"`
}

// ConnState is the realtime transport's connection state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// String returns a lower-case label for the state.
func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
