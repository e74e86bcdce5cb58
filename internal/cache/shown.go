package cache

import (
	"errors"
	"os"
	"time"
)

// ShownStore remembers which fingerprints already made it into an output
// feed, so re-syndicated entries are not reprocessed on later runs.
type ShownStore struct {
	path    string
	ttl     time.Duration
	entries map[string]time.Time
}

// NewShownStore creates a shown-article store backed by path.
func NewShownStore(path string, ttl time.Duration) *ShownStore {
	return &ShownStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// Load reads the store, dropping entries past the TTL.
func (s *ShownStore) Load() error {
	s.entries = make(map[string]time.Time)

	var raw map[string]time.Time
	if err := readJSONFile(s.path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	now := time.Now()
	for key, shownAt := range raw {
		if now.Sub(shownAt) < s.ttl {
			s.entries[key] = shownAt
		}
	}
	return nil
}

// Contains reports whether the fingerprint was shown within the TTL.
func (s *ShownStore) Contains(fingerprint string) bool {
	shownAt, ok := s.entries[fingerprint]
	return ok && time.Since(shownAt) < s.ttl
}

// Mark records a fingerprint as shown now.
func (s *ShownStore) Mark(fingerprint string) {
	s.entries[fingerprint] = time.Now()
}

// Save purges expired entries and writes the store atomically.
func (s *ShownStore) Save() error {
	now := time.Now()
	for key, shownAt := range s.entries {
		if now.Sub(shownAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	return writeJSONFile(s.path, s.entries)
}

// Len returns the number of entries currently held.
func (s *ShownStore) Len() int {
	return len(s.entries)
}
