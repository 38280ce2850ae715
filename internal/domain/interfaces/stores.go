package interfaces

import domaintypes "teambond/internal/domain/types"

// KeyStore is the origin-scoped local key/value store holding key material.
// It must be opened before use and closed when the caller is done.
type KeyStore interface {
	Open() error
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// ProfileStore persists the signed-in account per server origin.
type ProfileStore interface {
	SaveProfile(profile domaintypes.Profile) error
	LoadProfile(origin string) (domaintypes.Profile, bool, error)
}
