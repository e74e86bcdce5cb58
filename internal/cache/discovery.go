package cache

import (
	"errors"
	"os"
	"time"
)

// DiscoveryEntry is one evaluated candidate feed.
type DiscoveryEntry struct {
	Score    int       `json:"score"`
	Category string    `json:"category"`
	Title    string    `json:"title"`
	CachedAt time.Time `json:"cachedAt"`
}

// DiscoveryStore caches candidate feed evaluations by feed URL, so repeat
// discovery runs skip feeds judged recently.
type DiscoveryStore struct {
	path    string
	ttl     time.Duration
	entries map[string]DiscoveryEntry
}

// NewDiscoveryStore creates a discovery store backed by path.
func NewDiscoveryStore(path string, ttl time.Duration) *DiscoveryStore {
	return &DiscoveryStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]DiscoveryEntry),
	}
}

// Load reads the store, dropping entries past the TTL.
func (s *DiscoveryStore) Load() error {
	s.entries = make(map[string]DiscoveryEntry)

	var raw map[string]DiscoveryEntry
	if err := readJSONFile(s.path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	now := time.Now()
	for key, entry := range raw {
		if now.Sub(entry.CachedAt) < s.ttl {
			s.entries[key] = entry
		}
	}
	return nil
}

// Get returns the cached evaluation for a feed URL, if still valid.
func (s *DiscoveryStore) Get(feedURL string) (DiscoveryEntry, bool) {
	entry, ok := s.entries[feedURL]
	if !ok || time.Since(entry.CachedAt) >= s.ttl {
		return DiscoveryEntry{}, false
	}
	return entry, true
}

// Put records an evaluation for a feed URL.
func (s *DiscoveryStore) Put(feedURL, title string, score int, category string) {
	s.entries[feedURL] = DiscoveryEntry{
		Score:    score,
		Category: category,
		Title:    title,
		CachedAt: time.Now(),
	}
}

// Save purges expired entries and writes the store atomically.
func (s *DiscoveryStore) Save() error {
	now := time.Now()
	for key, entry := range s.entries {
		if now.Sub(entry.CachedAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	return writeJSONFile(s.path, s.entries)
}

// Len returns the number of entries currently held.
func (s *DiscoveryStore) Len() int {
	return len(s.entries)
}
