package cache

import (
	"errors"
	"os"
	"sync"
	"time"
)

// ScoreEntry is one cached oracle verdict, stored raw, before the
// deterministic local-override and source-adjustment passes.
type ScoreEntry struct {
	Title    string    `json:"title"`
	Score    int       `json:"score"`
	Category string    `json:"category"`
	CachedAt time.Time `json:"cachedAt"`
}

// ScoreStore caches relevance scores by article fingerprint.
type ScoreStore struct {
	path string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]ScoreEntry
}

// NewScoreStore creates a score store backed by path with the given TTL.
func NewScoreStore(path string, ttl time.Duration) *ScoreStore {
	return &ScoreStore{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]ScoreEntry),
	}
}

// Load reads the store from disk, dropping expired entries. A missing file
// is a cold start, not an error; a corrupt file leaves the store empty and
// returns the parse error for the caller to log.
func (s *ScoreStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]ScoreEntry)

	var raw map[string]ScoreEntry
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

// Get returns the entry for a fingerprint if present and still valid.
func (s *ScoreStore) Get(fingerprint string) (ScoreEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fingerprint]
	if !ok || time.Since(entry.CachedAt) >= s.ttl {
		return ScoreEntry{}, false
	}
	return entry, true
}

// Put records a freshly scored article. Safe for concurrent use by
// parallel scoring batches.
func (s *ScoreStore) Put(fingerprint, title string, score int, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[fingerprint] = ScoreEntry{
		Title:    title,
		Score:    score,
		Category: category,
		CachedAt: time.Now(),
	}
}

// Save purges expired entries and writes the store atomically.
func (s *ScoreStore) Save() error {
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
func (s *ScoreStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
