package cache

import (
	"errors"
	"os"
	"time"
)

// ImageEntry is one resolved article image. An empty URL is a cached
// negative result, so failing pages are not refetched every run.
type ImageEntry struct {
	URL      string    `json:"url"`
	CachedAt time.Time `json:"cachedAt"`
}

// ImageStore caches resolved image URLs by article fingerprint.
type ImageStore struct {
	path    string
	ttl     time.Duration
	entries map[string]ImageEntry
}

// NewImageStore creates an image store backed by path.
func NewImageStore(path string, ttl time.Duration) *ImageStore {
	return &ImageStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]ImageEntry),
	}
}

// Load reads the store, dropping entries past the TTL.
func (s *ImageStore) Load() error {
	s.entries = make(map[string]ImageEntry)

	var raw map[string]ImageEntry
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

// Get returns the cached image URL for a fingerprint, if still valid.
// The second return distinguishes "not cached" from a cached negative.
func (s *ImageStore) Get(fingerprint string) (string, bool) {
	entry, ok := s.entries[fingerprint]
	if !ok || time.Since(entry.CachedAt) >= s.ttl {
		return "", false
	}
	return entry.URL, true
}

// Put records a resolved image URL, or an empty negative result.
func (s *ImageStore) Put(fingerprint, url string) {
	s.entries[fingerprint] = ImageEntry{URL: url, CachedAt: time.Now()}
}

// Save purges expired entries and writes the store atomically.
func (s *ImageStore) Save() error {
	now := time.Now()
	for key, entry := range s.entries {
		if now.Sub(entry.CachedAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	return writeJSONFile(s.path, s.entries)
}

// Len returns the number of entries currently held.
func (s *ImageStore) Len() int {
	return len(s.entries)
}
