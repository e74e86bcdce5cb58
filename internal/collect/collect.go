// Package collect resolves the configured sources and gathers their
// recent entries as articles. Sources are fetched concurrently; a failing
// source is skipped and counted, never fatal.
package collect

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

const feedRequestTimeout = 30 * time.Second

// Result holds the results of a collection pass.
type Result struct {
	SourceCount   int
	FailedSources int
	TotalFound    int
	Kept          int
	Sources       map[string]int
}

// Collector fetches articles from the resolved sources.
type Collector struct {
	cfg    *config.Config
	client *http.Client
}

// NewCollector creates a collector for the configured sources.
func NewCollector(cfg *config.Config) *Collector {
	return &Collector{
		cfg:    cfg,
		client: &http.Client{Timeout: feedRequestTimeout},
	}
}

// Collect fetches every source and returns the kept articles in source
// order. Resolution errors (an unreadable subscription file) are fatal;
// per-source fetch errors are not.
func (c *Collector) Collect(ctx context.Context) ([]*article.Article, *Result, error) {
	sources, err := ResolveSources(c.cfg)
	if err != nil {
		return nil, nil, err
	}

	cutoff := time.Now().Add(-time.Duration(c.cfg.Limits.LookbackHours) * time.Hour)

	// Each source writes only its own slot, so no lock is needed.
	kept := make([][]*article.Article, len(sources))
	founds := make([]int, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	concurrency := c.cfg.Sources.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			entries, found, err := c.fetchSource(gctx, src, cutoff)
			if err != nil {
				log.Printf("Collect: %s failed: %v", src.Name, err)
				errs[i] = err
				return nil
			}
			kept[i] = entries
			founds[i] = found
			return nil
		})
	}
	_ = g.Wait()

	r := &Result{SourceCount: len(sources), Sources: make(map[string]int)}
	var all []*article.Article
	for i, src := range sources {
		if errs[i] != nil {
			r.FailedSources++
			continue
		}
		r.TotalFound += founds[i]
		if len(kept[i]) > 0 {
			r.Sources[src.Name] += len(kept[i])
			all = append(all, kept[i]...)
		}
	}
	r.Kept = len(all)

	log.Printf("Collect: %d sources (%d failed), %d entries found, %d kept",
		r.SourceCount, r.FailedSources, r.TotalFound, r.Kept)
	return all, r, nil
}
