// Package podcast selects a themed daily subset from the weekly pool.
// Each weekday has a configured theme; candidates are scored for thematic
// fit by a second oracle pass and excluded for a week once shown.
package podcast

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/cache"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/llm"
)

const themePrompt = `Today's podcast theme: %s

%s

Rate how well each numbered article fits this theme on a scale of 0 to 100
(100 = perfect fit, 0 = unrelated).

Articles:
%s
Respond with ONLY a JSON array, one object per article, in the same order:
[{"score": 85}, ...]`

const maxPromptDescription = 300

// ThemeForWeekday returns the theme configured for the given weekday.
func ThemeForWeekday(cfg *config.Config, day time.Weekday) (config.Theme, bool) {
	for _, t := range cfg.Podcast.Themes {
		if strings.EqualFold(t.Weekday, day.String()) {
			return t, true
		}
	}
	return config.Theme{}, false
}

// ThemeByLabel returns the theme with the given label, matched
// case-insensitively.
func ThemeByLabel(cfg *config.Config, label string) (config.Theme, bool) {
	for _, t := range cfg.Podcast.Themes {
		if strings.EqualFold(t.Label, label) {
			return t, true
		}
	}
	return config.Theme{}, false
}

// Selection is the outcome of one theme run.
type Selection struct {
	Theme         config.Theme
	Articles      []*article.Article
	BonusPicks    int
	PoolSize      int
	Excluded      int
	FromCache     int
	Scored        int
	FailedBatches int
}

// Selector picks the day's themed articles from the weekly pool.
type Selector struct {
	cfg      *config.Config
	provider llm.Provider
	themes   *cache.ThemeStore
	shown    *cache.PodcastShownStore
}

// NewSelector creates a selector backed by the theme score cache and the
// podcast shown cache.
func NewSelector(cfg *config.Config, provider llm.Provider, themes *cache.ThemeStore, shown *cache.PodcastShownStore) *Selector {
	return &Selector{cfg: cfg, provider: provider, themes: themes, shown: shown}
}

// Select filters the pool to the theme's categories, theme-scores the
// candidates, and returns the top picks plus cross-category bonus picks.
// Every selected fingerprint is marked shown; the caller persists the
// shown and theme caches after the stage.
func (s *Selector) Select(ctx context.Context, theme config.Theme, pool []*article.Article) *Selection {
	sel := &Selection{Theme: theme, PoolSize: len(pool)}
	p := s.cfg.Podcast

	themeSet := make(map[string]bool, len(theme.Categories))
	for _, c := range theme.Categories {
		themeSet[c] = true
	}

	var primaries, bonusPool []*article.Article
	for _, a := range pool {
		if s.shown.Contains(a.Fingerprint) {
			sel.Excluded++
			continue
		}
		switch {
		case themeSet[a.Category] && a.Score >= p.MinScore:
			primaries = append(primaries, a)
		case p.BonusCount > 0 && !themeSet[a.Category] && a.Score >= p.BonusMinScore:
			bonusPool = append(bonusPool, a)
		}
	}

	candidates := make([]*article.Article, 0, len(primaries)+len(bonusPool))
	candidates = append(candidates, primaries...)
	candidates = append(candidates, bonusPool...)
	scores := s.scoreThemeFit(ctx, theme, candidates, sel)

	picks := make([]pick, 0, len(primaries))
	for _, a := range primaries {
		picks = append(picks, pick{art: a, score: s.adjusted(a, scores[a.Fingerprint])})
	}
	sortPicks(picks)
	if p.MaxArticles > 0 && len(picks) > p.MaxArticles {
		picks = picks[:p.MaxArticles]
	}

	bonus := make([]pick, 0, len(bonusPool))
	for _, a := range bonusPool {
		bonus = append(bonus, pick{art: a, score: s.adjusted(a, scores[a.Fingerprint])})
	}
	sortPicks(bonus)

	perCategory := make(map[string]int)
	for _, b := range bonus {
		if sel.BonusPicks >= p.BonusCount {
			break
		}
		if p.BonusPerCategory > 0 && perCategory[b.art.Category] >= p.BonusPerCategory {
			continue
		}
		perCategory[b.art.Category]++
		picks = append(picks, b)
		sel.BonusPicks++
	}

	for _, pk := range picks {
		sel.Articles = append(sel.Articles, pk.art)
		s.shown.Mark(pk.art.Fingerprint, theme.Weekday)
	}

	log.Printf("Podcast [%s]: selected %d articles (%d bonus) from pool of %d, %d excluded as shown",
		theme.Label, len(sel.Articles), sel.BonusPicks, sel.PoolSize, sel.Excluded)
	return sel
}

type pick struct {
	art   *article.Article
	score int
}

func sortPicks(picks []pick) {
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].score > picks[j].score
	})
}

// scoreThemeFit returns a theme score per fingerprint, from the cache
// where valid and the oracle otherwise. A failed or absent oracle falls
// back to the article's relevance score, uncached, so selection still
// produces a result.
func (s *Selector) scoreThemeFit(ctx context.Context, theme config.Theme, articles []*article.Article, sel *Selection) map[string]int {
	scores := make(map[string]int, len(articles))

	var uncached []*article.Article
	for _, a := range articles {
		if score, ok := s.themes.Get(a.Fingerprint, theme.Label); ok {
			scores[a.Fingerprint] = score
			sel.FromCache++
			continue
		}
		uncached = append(uncached, a)
	}
	if len(uncached) == 0 {
		return scores
	}

	if s.provider == nil || !s.provider.IsConfigured() {
		log.Printf("Podcast: no oracle available, using relevance scores for %d articles", len(uncached))
		for _, a := range uncached {
			scores[a.Fingerprint] = a.Score
		}
		return scores
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	concurrency := s.cfg.Scoring.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, batch := range splitBatches(uncached, s.cfg.Scoring.BatchSize) {
		batch := batch
		g.Go(func() error {
			fits, err := s.scoreBatch(gctx, theme, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Podcast: theme batch failed, falling back to relevance scores: %v", err)
				sel.FailedBatches++
				for _, a := range batch {
					scores[a.Fingerprint] = a.Score
				}
				return nil
			}
			for i, a := range batch {
				scores[a.Fingerprint] = fits[i]
				s.themes.Put(a.Fingerprint, theme.Label, fits[i])
			}
			sel.Scored += len(batch)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

// scoreBatch issues one theme-fit oracle call. Any contract deviation is
// a batch failure.
func (s *Selector) scoreBatch(ctx context.Context, theme config.Theme, batch []*article.Article) ([]int, error) {
	response, err := s.provider.Generate(ctx, buildThemePrompt(theme, batch), s.cfg.Oracle.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}

	parsed := llm.ParseJSONArray(response)
	if parsed == nil {
		return nil, fmt.Errorf("unparsable oracle response")
	}
	if len(parsed) != len(batch) {
		return nil, fmt.Errorf("oracle returned %d scores for %d articles", len(parsed), len(batch))
	}

	fits := make([]int, len(batch))
	for i, m := range parsed {
		fits[i] = article.ClampScore(llm.IntField(m, "score", 0))
	}
	return fits, nil
}

func buildThemePrompt(theme config.Theme, batch []*article.Article) string {
	var sb strings.Builder
	for i, a := range batch {
		desc := a.Description
		if len(desc) > maxPromptDescription {
			desc = desc[:maxPromptDescription] + "..."
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n%s\n\n", i+1, a.SourceName, a.Title, desc)
	}
	return fmt.Sprintf(themePrompt, theme.Label, theme.Prompt, sb.String())
}

// adjusted applies the context penalty: articles in the context category
// without any context keyword lose a fixed amount, floored at zero.
func (s *Selector) adjusted(a *article.Article, themeScore int) int {
	p := s.cfg.Podcast
	if p.ContextPenalty <= 0 || p.ContextCategory == "" || a.Category != p.ContextCategory {
		return themeScore
	}
	if s.hasContextKeyword(a) {
		return themeScore
	}
	themeScore -= p.ContextPenalty
	if themeScore < 0 {
		themeScore = 0
	}
	return themeScore
}

func (s *Selector) hasContextKeyword(a *article.Article) bool {
	text := strings.ToLower(a.Title + " " + a.Description)
	for _, kw := range s.cfg.Podcast.ContextKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
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
