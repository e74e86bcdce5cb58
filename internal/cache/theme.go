package cache

import (
	"errors"
	"os"
	"sync"
	"time"
)

// ThemeEntry is one cached theme-fit score.
type ThemeEntry struct {
	Score    int       `json:"score"`
	CachedAt time.Time `json:"cachedAt"`
}

// ThemeStore caches theme-fit scores keyed by fingerprint and theme label,
// so an article is only theme-scored once per theme within the TTL.
type ThemeStore struct {
	path string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]ThemeEntry
}

// NewThemeStore creates a theme score store backed by path.
func NewThemeStore(path string, ttl time.Duration) *ThemeStore {
	return &ThemeStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]ThemeEntry),
	}
}

// themeKey builds the composite cache key.
func themeKey(fingerprint, themeLabel string) string {
	return fingerprint + "|" + themeLabel
}

// Load reads the store, dropping entries past the TTL.
func (s *ThemeStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]ThemeEntry)

	var raw map[string]ThemeEntry
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

// Get returns the cached theme score for an article under a theme.
func (s *ThemeStore) Get(fingerprint, themeLabel string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[themeKey(fingerprint, themeLabel)]
	if !ok || time.Since(entry.CachedAt) >= s.ttl {
		return 0, false
	}
	return entry.Score, true
}

// Put records a theme score. Safe for concurrent use.
func (s *ThemeStore) Put(fingerprint, themeLabel string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[themeKey(fingerprint, themeLabel)] = ThemeEntry{
		Score:    score,
		CachedAt: time.Now(),
	}
}

// Save purges expired entries and writes the store atomically.
func (s *ThemeStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if now.Sub(entry.CachedAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	return writeJSONFile(s.path, s.entries)
}

// Len returns the number of entries currently held.
func (s *ThemeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
