package store

import (
	"path/filepath"
	"sync"

	"teambond/internal/domain"
)

const profilesFile = "profiles.json"

// ProfileFileStore persists the signed-in account for each server origin.
type ProfileFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewProfileFileStore returns a ProfileFileStore rooted at dir.
func NewProfileFileStore(dir string) *ProfileFileStore {
	return &ProfileFileStore{dir: dir}
}

// SaveProfile stores or replaces the profile for profile.Origin.
func (s *ProfileFileStore) SaveProfile(profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, profilesFile)
	profiles := make(map[string]domain.Profile)
	if err := readJSON(path, &profiles); err != nil {
		return err
	}
	profiles[originSlug(profile.Origin)] = profile
	return writeJSON(path, profiles, 0o600)
}

// LoadProfile retrieves the profile for origin.
func (s *ProfileFileStore) LoadProfile(origin string) (domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make(map[string]domain.Profile)
	if err := readJSON(filepath.Join(s.dir, profilesFile), &profiles); err != nil {
		return domain.Profile{}, false, err
	}
	profile, ok := profiles[originSlug(origin)]
	return profile, ok, nil
}

// Compile-time assertion that ProfileFileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*ProfileFileStore)(nil)
