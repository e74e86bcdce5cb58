// Package discover evaluates candidate feeds before they are added to
// the subscription list. Each candidate is sampled and scored through
// the regular relevance path; verdicts are cached per feed URL so a
// rejected feed is not re-fetched every run.
package discover

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/cache"
	"github.com/zirnhelt/super-rss-feed/internal/collect"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/score"
)

const (
	feedRequestTimeout = 30 * time.Second
	defaultSampleSize  = 3
)

// FeedReport is the evaluation of one candidate feed.
type FeedReport struct {
	URL       string
	Title     string
	Score     int
	Category  string
	Accepted  bool
	FromCache bool
	Err       error
}

// Result summarizes a discovery run.
type Result struct {
	Candidates    int
	FromCache     int
	Evaluated     int
	Accepted      int
	Failed        int
	FailedBatches int
	Reports       []FeedReport
}

// Discoverer scores candidate feeds against the configured interests.
type Discoverer struct {
	cfg    *config.Config
	scorer *score.Scorer
	store  *cache.DiscoveryStore
	client *http.Client
}

// NewDiscoverer creates a discoverer backed by the given scorer and
// discovery cache.
func NewDiscoverer(cfg *config.Config, scorer *score.Scorer, store *cache.DiscoveryStore) *Discoverer {
	return &Discoverer{
		cfg:    cfg,
		scorer: scorer,
		store:  store,
		client: &http.Client{Timeout: feedRequestTimeout},
	}
}

// Evaluate scores every configured candidate. A candidate that fails to
// parse is reported and skipped; it never aborts the run.
func (d *Discoverer) Evaluate(ctx context.Context) *Result {
	r := &Result{Candidates: len(d.cfg.Discover.Candidates)}

	for _, url := range d.cfg.Discover.Candidates {
		report := d.evaluate(ctx, url, r)
		r.Reports = append(r.Reports, report)
		switch {
		case report.Err != nil:
			r.Failed++
		case report.FromCache:
			r.FromCache++
		default:
			r.Evaluated++
		}
		if report.Accepted {
			r.Accepted++
		}
	}

	log.Printf("Discovery complete: %d candidates (%d accepted, %d cached, %d failed)",
		r.Candidates, r.Accepted, r.FromCache, r.Failed)
	return r
}

func (d *Discoverer) evaluate(ctx context.Context, feedURL string, r *Result) FeedReport {
	report := FeedReport{URL: feedURL}

	if entry, ok := d.store.Get(feedURL); ok {
		report.Title = entry.Title
		report.Score = entry.Score
		report.Category = entry.Category
		report.FromCache = true
		report.Accepted = entry.Score >= d.cfg.Discover.MinFeedScore
		return report
	}

	parser := gofeed.NewParser()
	parser.Client = d.client
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		report.Err = fmt.Errorf("parsing candidate: %w", err)
		return report
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = feedURL
	}
	report.Title = title

	samples := d.sampleArticles(feed, title, feedURL)
	if len(samples) == 0 {
		report.Err = fmt.Errorf("no usable entries")
		return report
	}

	scored := d.scorer.ScoreArticles(ctx, samples)
	r.FailedBatches += scored.FailedBatches

	report.Score = averageScore(samples)
	report.Category = dominantCategory(samples)
	report.Accepted = report.Score >= d.cfg.Discover.MinFeedScore

	d.store.Put(feedURL, title, report.Score, report.Category)
	return report
}

// sampleArticles converts the newest few entries of a parsed feed, the
// same way collection would, so sample verdicts share the score cache
// with later real runs.
func (d *Discoverer) sampleArticles(feed *gofeed.Feed, title, feedURL string) []*article.Article {
	size := d.cfg.Discover.SampleSize
	if size < 1 {
		size = defaultSampleSize
	}

	src := collect.Source{Name: title, URL: feedURL, SiteURL: feed.Link}
	var samples []*article.Article
	for _, item := range feed.Items {
		a := collect.ParseItem(item, src)
		if a == nil {
			continue
		}
		samples = append(samples, a)
		if len(samples) == size {
			break
		}
	}
	return samples
}

// averageScore returns the rounded mean sample score.
func averageScore(samples []*article.Article) int {
	var total int
	for _, a := range samples {
		total += a.Score
	}
	return (total + len(samples)/2) / len(samples)
}

// dominantCategory returns the most frequent sample category, first
// seen winning ties.
func dominantCategory(samples []*article.Article) string {
	counts := make(map[string]int)
	var order []string
	for _, a := range samples {
		if counts[a.Category] == 0 {
			order = append(order, a.Category)
		}
		counts[a.Category]++
	}

	var best string
	for _, c := range order {
		if best == "" || counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
