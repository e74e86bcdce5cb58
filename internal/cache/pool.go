package cache

import (
	"errors"
	"os"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
)

// PoolRecord is one scored article in the rolling weekly pool.
type PoolRecord struct {
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"sourceUrl"`
	Score       int       `json:"score"`
	Category    string    `json:"category"`
	Image       string    `json:"image,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Article re-hydrates the canonical Article from a pool record.
func (r PoolRecord) Article() *article.Article {
	a := article.New(r.Title, r.Link, r.Description, r.PublishedAt, r.Source, r.SourceURL)
	a.Score = r.Score
	a.Category = r.Category
	a.Image = r.Image
	return a
}

// PoolStore is the weekly rolling pool the theme selector draws from:
// an append-only log of scored articles, deduplicated by link and pruned
// to the window on every load.
type PoolStore struct {
	path    string
	window  time.Duration
	records []PoolRecord
}

// NewPoolStore creates a pool store backed by path with the given window.
func NewPoolStore(path string, window time.Duration) *PoolStore {
	return &PoolStore{path: path, window: window}
}

// Load reads the pool, pruning records older than the window and
// collapsing duplicate links (first record wins, matching append order).
func (s *PoolStore) Load() error {
	s.records = nil

	var raw []PoolRecord
	if err := readJSONFile(s.path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	now := time.Now()
	seen := make(map[string]bool, len(raw))
	for _, rec := range raw {
		if now.Sub(rec.AddedAt) >= s.window {
			continue
		}
		if rec.Link != "" && seen[rec.Link] {
			continue
		}
		seen[rec.Link] = true
		s.records = append(s.records, rec)
	}
	return nil
}

// Add appends scored articles to the pool. An article whose link is
// already pooled has its score, category and image refreshed in place,
// keeping the original AddedAt so the window still ages it out.
func (s *PoolStore) Add(articles []*article.Article) {
	index := make(map[string]int, len(s.records))
	for i, rec := range s.records {
		index[rec.Link] = i
	}

	now := time.Now()
	for _, a := range articles {
		if i, ok := index[a.Link]; ok {
			s.records[i].Score = a.Score
			s.records[i].Category = a.Category
			if a.Image != "" {
				s.records[i].Image = a.Image
			}
			continue
		}
		index[a.Link] = len(s.records)
		s.records = append(s.records, PoolRecord{
			Link:        a.Link,
			Title:       a.Title,
			Description: a.Description,
			PublishedAt: a.PublishedAt,
			Source:      a.SourceName,
			SourceURL:   a.SourceURL,
			Score:       a.Score,
			Category:    a.Category,
			Image:       a.Image,
			AddedAt:     now,
		})
	}
}

// Records returns the pooled records in append order.
func (s *PoolStore) Records() []PoolRecord {
	return s.records
}

// Save prunes the window again and writes the pool atomically.
func (s *PoolStore) Save() error {
	now := time.Now()
	kept := make([]PoolRecord, 0, len(s.records))
	for _, rec := range s.records {
		if now.Sub(rec.AddedAt) < s.window {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	return writeJSONFile(s.path, s.records)
}

// Len returns the number of pooled records.
func (s *PoolStore) Len() int {
	return len(s.records)
}
