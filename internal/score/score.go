// Package score assigns every article a relevance score and category.
// Cached verdicts are reused within their TTL; the rest go to the oracle
// in fixed-size batches. A failed batch degrades to default values and
// never aborts the run.
package score

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/cache"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/llm"
)

const scoringPrompt = `You are scoring syndicated news articles for a personal reading feed.

Reader interests:
%s

Categories (use exactly one per article): %s

For each numbered article below, give an integer relevance score from 0 to 100
(100 = must read, 0 = no interest) and the single best-fitting category.

Articles:
%s
Respond with ONLY a JSON array, one object per article, in the same order:
[{"score": 85, "category": "ai-tech"}, ...]`

// maxPromptDescription caps how much of a description goes to the oracle.
const maxPromptDescription = 300

// Result holds the results of a scoring pass.
type Result struct {
	Total         int
	FromCache     int
	Scored        int
	Batches       int
	FailedBatches int
}

// Scorer scores articles against the configured interests.
type Scorer struct {
	cfg      *config.Config
	provider llm.Provider
	store    *cache.ScoreStore
}

// NewScorer creates a scorer backed by the given oracle and score cache.
func NewScorer(cfg *config.Config, provider llm.Provider, store *cache.ScoreStore) *Scorer {
	return &Scorer{cfg: cfg, provider: provider, store: store}
}

// ScoreArticles annotates every article with a score and category. Cache
// hits carry the stored raw verdict; misses are batched to the oracle and
// cached raw. The local-priority override and source adjustment are
// deterministic and re-applied to hits and misses alike, so a cached
// article always reproduces the same final values.
func (s *Scorer) ScoreArticles(ctx context.Context, articles []*article.Article) *Result {
	r := &Result{Total: len(articles)}

	var uncached []*article.Article
	for _, a := range articles {
		if entry, ok := s.store.Get(a.Fingerprint); ok {
			a.Score = entry.Score
			a.Category = entry.Category
			r.FromCache++
		} else {
			uncached = append(uncached, a)
		}
	}

	if len(uncached) > 0 {
		if s.provider == nil {
			log.Println("No oracle provider available, using default scores")
			for _, a := range uncached {
				s.applyDefaults(a)
			}
		} else {
			s.scoreBatches(ctx, uncached, r)
		}
	}

	for _, a := range articles {
		s.applyLocalOverride(a)
		s.applySourceAdjustment(a)
	}

	log.Printf("Scoring complete: %d articles (%d cached, %d fresh, %d failed batches)",
		r.Total, r.FromCache, r.Scored, r.FailedBatches)
	return r
}

// scoreBatches sends the uncached articles to the oracle in bounded
// concurrent batches. Cache writes go through the store's own lock; the
// result counters share one mutex here.
func (s *Scorer) scoreBatches(ctx context.Context, articles []*article.Article, r *Result) {
	batches := splitBatches(articles, s.cfg.Scoring.BatchSize)
	r.Batches = len(batches)

	concurrency := s.cfg.Scoring.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			verdicts, err := s.scoreBatch(ctx, batch)
			if err != nil {
				log.Printf("Oracle batch failed, using defaults: %v", err)
				for _, a := range batch {
					s.applyDefaults(a)
				}
				mu.Lock()
				r.FailedBatches++
				mu.Unlock()
				return nil
			}

			for i, a := range batch {
				a.Score = verdicts[i].score
				a.Category = verdicts[i].category
				s.store.Put(a.Fingerprint, a.Title, a.Score, a.Category)
			}
			mu.Lock()
			r.Scored += len(batch)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

type verdict struct {
	score    int
	category string
}

// scoreBatch issues one oracle call for a batch and parses the verdicts.
// Any deviation from the contract is a batch failure.
func (s *Scorer) scoreBatch(ctx context.Context, batch []*article.Article) ([]verdict, error) {
	response, err := s.provider.Generate(ctx, s.buildPrompt(batch), s.cfg.Oracle.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}

	parsed := llm.ParseJSONArray(response)
	if parsed == nil {
		return nil, fmt.Errorf("unparsable oracle response")
	}
	if len(parsed) != len(batch) {
		return nil, fmt.Errorf("oracle returned %d verdicts for %d articles", len(parsed), len(batch))
	}

	verdicts := make([]verdict, len(batch))
	for i, m := range parsed {
		score := article.ClampScore(llm.IntField(m, "score", s.cfg.Scoring.DefaultScore))
		category := llm.StringField(m, "category", s.cfg.Scoring.DefaultCategory)
		if !s.cfg.HasCategory(category) {
			category = s.cfg.Scoring.DefaultCategory
		}
		verdicts[i] = verdict{score: score, category: category}
	}
	return verdicts, nil
}

func (s *Scorer) buildPrompt(batch []*article.Article) string {
	var sb strings.Builder
	for i, a := range batch {
		desc := a.Description
		if len(desc) > maxPromptDescription {
			desc = desc[:maxPromptDescription] + "..."
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n%s\n\n", i+1, a.SourceName, a.Title, desc)
	}
	return fmt.Sprintf(scoringPrompt, s.cfg.Scoring.Interests,
		strings.Join(s.cfg.CategoryNames(), ", "), sb.String())
}

// applyDefaults marks an article with the neutral fallback verdict.
// Defaults are not cached, so the next run retries the oracle.
func (s *Scorer) applyDefaults(a *article.Article) {
	a.Score = s.cfg.Scoring.DefaultScore
	a.Category = s.cfg.Scoring.DefaultCategory
}

// applyLocalOverride forces a minimum score and the local category for
// articles matching a configured local keyword, regardless of the oracle.
func (s *Scorer) applyLocalOverride(a *article.Article) {
	if len(s.cfg.Scoring.LocalKeywords) == 0 {
		return
	}
	text := strings.ToLower(a.Title + " " + a.Description)
	for _, kw := range s.cfg.Scoring.LocalKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || !strings.Contains(text, kw) {
			continue
		}
		if a.Score < s.cfg.Scoring.LocalMinScore {
			a.Score = s.cfg.Scoring.LocalMinScore
		}
		a.Category = s.cfg.Scoring.LocalCategory
		return
	}
}

// applySourceAdjustment adds the source type's signed bias, clamped.
func (s *Scorer) applySourceAdjustment(a *article.Article) {
	if st, ok := s.cfg.SourceType(a.SourceName); ok && st.ScoreAdjustment != 0 {
		a.Score = article.ClampScore(a.Score + st.ScoreAdjustment)
	}
}

// splitBatches cuts articles into slices of at most size.
func splitBatches(articles []*article.Article, size int) [][]*article.Article {
	if size < 1 {
		size = 1
	}
	var batches [][]*article.Article
	for start := 0; start < len(articles); start += size {
		end := start + size
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, articles[start:end])
	}
	return batches
}
