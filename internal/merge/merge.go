// Package merge combines a category's persisted feed state with newly
// admitted articles, ages out items past the retention window, and caps
// the feed size. New items win fingerprint conflicts because they carry
// fresher scores.
package merge

import (
	"log"
	"sort"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

type Merger struct {
	retention     time.Duration
	maxSize       int
	localExempt   bool
	localCategory string
}

func New(cfg *config.Config) *Merger {
	return &Merger{
		retention:     time.Duration(cfg.Limits.RetentionDays) * 24 * time.Hour,
		maxSize:       cfg.Limits.MaxFeedSize,
		localExempt:   cfg.Limits.LocalRetentionExempt,
		localCategory: cfg.Scoring.LocalCategory,
	}
}

// Merge produces the next feed state for a category from the persisted
// items and the run's newly admitted ones.
func (m *Merger) Merge(existing, incoming []*article.Article, category string) []*article.Article {
	cutoff := time.Now().Add(-m.retention)
	exempt := m.localExempt && category == m.localCategory

	merged := make([]*article.Article, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))

	for _, a := range incoming {
		if seen[a.Fingerprint] {
			continue
		}
		seen[a.Fingerprint] = true
		merged = append(merged, a)
	}

	aged := 0
	for _, a := range existing {
		if seen[a.Fingerprint] {
			continue
		}
		if !exempt && a.PublishedAt.Before(cutoff) {
			aged++
			continue
		}
		seen[a.Fingerprint] = true
		merged = append(merged, a)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	capped := 0
	if m.maxSize > 0 && len(merged) > m.maxSize {
		capped = len(merged) - m.maxSize
		merged = merged[:m.maxSize]
	}

	if aged > 0 || capped > 0 {
		log.Printf("Merge [%s]: %d items (aged out %d, capped %d)", category, len(merged), aged, capped)
	}
	return merged
}
