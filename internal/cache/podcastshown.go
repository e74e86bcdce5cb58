package cache

import (
	"errors"
	"os"
	"time"
)

// PodcastShownEntry records which day's theme run selected an article.
type PodcastShownEntry struct {
	Day     string    `json:"day"`
	ShownAt time.Time `json:"shownAt"`
}

// PodcastShownStore keeps fingerprints out of theme selections for the
// exclusion window, regardless of which theme picked them.
type PodcastShownStore struct {
	path    string
	ttl     time.Duration
	entries map[string]PodcastShownEntry
}

// NewPodcastShownStore creates a podcast shown store backed by path.
func NewPodcastShownStore(path string, ttl time.Duration) *PodcastShownStore {
	return &PodcastShownStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]PodcastShownEntry),
	}
}

// Load reads the store, dropping entries past the TTL.
func (s *PodcastShownStore) Load() error {
	s.entries = make(map[string]PodcastShownEntry)

	var raw map[string]PodcastShownEntry
	if err := readJSONFile(s.path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	now := time.Now()
	for key, entry := range raw {
		if now.Sub(entry.ShownAt) < s.ttl {
			s.entries[key] = entry
		}
	}
	return nil
}

// Contains reports whether the fingerprint was selected within the TTL.
func (s *PodcastShownStore) Contains(fingerprint string) bool {
	entry, ok := s.entries[fingerprint]
	return ok && time.Since(entry.ShownAt) < s.ttl
}

// Mark records a fingerprint as selected for the given day.
func (s *PodcastShownStore) Mark(fingerprint, day string) {
	s.entries[fingerprint] = PodcastShownEntry{Day: day, ShownAt: time.Now()}
}

// Save purges expired entries and writes the store atomically.
func (s *PodcastShownStore) Save() error {
	now := time.Now()
	for key, entry := range s.entries {
		if now.Sub(entry.ShownAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	return writeJSONFile(s.path, s.entries)
}

// Len returns the number of entries currently held.
func (s *PodcastShownStore) Len() int {
	return len(s.entries)
}
