package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"teambond/internal/domain"
)

const (
	keysFile = "keys.json"
	// corruptSuffix is appended to a keys file that no longer decodes.
	corruptSuffix = ".corrupt"
)

// Well-known key names.
const (
	KeyPrivate = "privateKey"
	KeyPublic  = "publicKey"
)

// PartnerKey names the cache slot for a partner's public key.
func PartnerKey(username domain.Username) string {
	return KeyPublic + ":" + username.String()
}

// FileKeyStore keeps key material for a single server origin in one JSON
// file under the user's home directory. Values are written atomically.
//
// A keys file that is not valid JSON is moved aside to keys.json.corrupt and
// the store starts empty, so a damaged file heals like an unreadable key.
type FileKeyStore struct {
	dir string
	Log zerolog.Logger

	mu   sync.Mutex
	open bool
}

// NewFileKeyStore returns a store rooted at home and scoped to origin.
func NewFileKeyStore(home, origin string) *FileKeyStore {
	return &FileKeyStore{dir: OriginDir(home, origin), Log: zerolog.Nop()}
}

// OriginDir is the namespace directory for origin under home.
func OriginDir(home, origin string) string {
	return filepath.Join(home, "origins", originSlug(origin))
}

// Open creates the namespace directory if needed.
func (s *FileKeyStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	s.open = true
	return nil
}

// Close releases the store. Later calls fail with domain.ErrStoreClosed.
func (s *FileKeyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	return nil
}

// Get returns a copy of the value stored under key.
func (s *FileKeyStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, false, domain.ErrStoreClosed
	}
	m, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores value under key, replacing any previous value.
func (s *FileKeyStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return domain.ErrStoreClosed
	}
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = append([]byte(nil), value...)
	return writeJSON(filepath.Join(s.dir, keysFile), m, 0o600)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileKeyStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return domain.ErrStoreClosed
	}
	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return writeJSON(filepath.Join(s.dir, keysFile), m, 0o600)
}

func (s *FileKeyStore) load() (map[string][]byte, error) {
	path := filepath.Join(s.dir, keysFile)
	m := make(map[string][]byte)
	err := readJSON(path, &m)
	if err == nil {
		return m, nil
	}
	if !undecodable(err) {
		return nil, err
	}
	if rerr := os.Rename(path, path+corruptSuffix); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	s.Log.Warn().Err(err).Str("moved_to", path+corruptSuffix).Msg("Key file is corrupt, starting with an empty store")
	return make(map[string][]byte), nil
}

func undecodable(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var b64 base64.CorruptInputError
	return errors.As(err, &syntax) || errors.As(err, &typ) || errors.As(err, &b64)
}

// originSlug turns a base URL into a filesystem-safe directory name, so
// "http://localhost:8080/" and "http://localhost:8080" share a namespace.
func originSlug(origin string) string {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Scheme + "_" + u.Host
	}
	host = strings.ToLower(strings.TrimRight(host, "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, host)
}

// Compile-time assertion that FileKeyStore implements domain.KeyStore.
var _ domain.KeyStore = (*FileKeyStore)(nil)
