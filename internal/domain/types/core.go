package types

import (
	"sort"
	"strings"
)

// Username represents a platform account name.
type Username string

func (u Username) String() string { return string(u) }

// UserID is the platform's stable identifier for an account.
type UserID string

// String returns the string form of the identifier.
func (id UserID) String() string { return string(id) }

// Fingerprint is the grouped hex digest shown to users when comparing keys.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// ChatID names a two-party conversation channel. It is used both as the
// realtime topic suffix and as the history lookup key.
type ChatID string

// String returns the string form of the chat identifier.
func (id ChatID) String() string { return string(id) }

// NewChatID sorts the two participant identifiers lexicographically and
// joins them with "/", so both sides derive the same channel.
func NewChatID(a, b UserID) ChatID {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return ChatID(strings.Join(ids, "/"))
}

// Participant is one side of a conversation.
type Participant struct {
	ID       UserID   `json:"id"`
	Username Username `json:"username"`
}

// Known reports whether both the identifier and the username are set.
func (p Participant) Known() bool { return p.ID != "" && p.Username != "" }
