// Package limit enforces per-source diversity caps within a category.
//
// The cap for a source resolves in order: the source type's max_per_source
// when the source is mapped to a type, the local cap when the category is
// the local one, then the configured default. Selection is a single greedy
// pass over the score-sorted list, so the kept articles are the
// highest-scoring ones each source can admit.
package limit

import (
	"log"
	"sort"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

type Limiter struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Limiter {
	return &Limiter{cfg: cfg}
}

// Apply returns the subset of articles honoring each source's cap for the
// given category, ordered by score descending (stable on ties).
func (l *Limiter) Apply(articles []*article.Article, category string) []*article.Article {
	if len(articles) == 0 {
		return articles
	}

	sorted := make([]*article.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	counts := make(map[string]int)
	kept := make([]*article.Article, 0, len(sorted))
	for _, a := range sorted {
		cap := l.capFor(a.SourceName, category)
		if counts[a.SourceName] >= cap {
			continue
		}
		counts[a.SourceName]++
		kept = append(kept, a)
	}

	if dropped := len(sorted) - len(kept); dropped > 0 {
		log.Printf("Limiter [%s]: kept %d, dropped %d over source caps", category, len(kept), dropped)
	}
	return kept
}

func (l *Limiter) capFor(sourceName, category string) int {
	if st, ok := l.cfg.SourceType(sourceName); ok && st.MaxPerSource > 0 {
		return st.MaxPerSource
	}
	if category == l.cfg.Scoring.LocalCategory && l.cfg.Limits.LocalMaxPerSource > 0 {
		return l.cfg.Limits.LocalMaxPerSource
	}
	return l.cfg.Limits.MaxPerSource
}
