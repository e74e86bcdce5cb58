// Package dedup collapses a raw collection batch into a duplicate-free
// set. Wire services syndicate the same story to many outlets, so exact
// link identity is not enough: near-identical titles are treated as
// duplicates too, and conflicts resolve by source priority.
package dedup

import (
	"sort"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/zirnhelt/super-rss-feed/internal/article"
)

// similarityThreshold is the percentage above which two normalized titles
// count as the same story.
const similarityThreshold = 85

// RankFunc maps a source name to its priority rank. Lower rank wins.
type RankFunc func(sourceName string) int

// Deduplicator removes exact and fuzzy duplicates from article batches.
type Deduplicator struct {
	rank RankFunc
}

// New creates a Deduplicator using the given ranking table lookup.
func New(rank RankFunc) *Deduplicator {
	return &Deduplicator{rank: rank}
}

// Deduplicate returns the batch with duplicates removed. The batch is
// walked in priority rank order, first match wins, so the best-ranked
// version of each story survives regardless of arrival order; same-rank
// duplicates keep the earliest collected copy. Output order is priority
// rank ascending, original order within a rank.
func (d *Deduplicator) Deduplicate(articles []*article.Article) []*article.Article {
	batch := make([]*article.Article, len(articles))
	copy(batch, articles)
	sort.SliceStable(batch, func(i, j int) bool {
		return d.rank(batch[i].SourceName) < d.rank(batch[j].SourceName)
	})

	seen := make(map[string]bool, len(batch))
	var kept []*article.Article

	for _, cand := range batch {
		if seen[cand.Fingerprint] {
			continue
		}
		seen[cand.Fingerprint] = true

		if d.matchesKept(cand, kept) {
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}

// matchesKept reports whether a kept article's title is similar enough
// to count as the same story. Empty titles never match.
func (d *Deduplicator) matchesKept(cand *article.Article, kept []*article.Article) bool {
	if cand.NormalizedTitle == "" {
		return false
	}
	for _, k := range kept {
		if k.NormalizedTitle == "" {
			continue
		}
		if titleSimilarity(cand.NormalizedTitle, k.NormalizedTitle) > similarityThreshold {
			return true
		}
	}
	return false
}

// titleSimilarity scores two normalized titles with both a direct
// character ratio and a token-sort ratio, taking the maximum. The
// token-sort pass catches word-shuffled wire reprints.
func titleSimilarity(a, b string) int {
	direct := fuzzy.Ratio(a, b)
	sorted := fuzzy.TokenSortRatio(a, b)
	if sorted > direct {
		return sorted
	}
	return direct
}
