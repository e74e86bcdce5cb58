package pipeline

import (
	"log"
	"path/filepath"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/cache"
)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func (p *Pipeline) scoreStore() *cache.ScoreStore {
	ttl := time.Duration(p.cfg.Scoring.CacheTTLHours) * time.Hour
	return cache.NewScoreStore(filepath.Join(p.cfg.CacheDir(), "scores.json"), ttl)
}

func (p *Pipeline) shownStore() *cache.ShownStore {
	return cache.NewShownStore(filepath.Join(p.cfg.CacheDir(), "shown.json"), days(p.cfg.Limits.ShownTTLDays))
}

func (p *Pipeline) poolStore() *cache.PoolStore {
	return cache.NewPoolStore(filepath.Join(p.cfg.CacheDir(), "pool.json"), days(p.cfg.Podcast.PoolDays))
}

func (p *Pipeline) imageStore() *cache.ImageStore {
	return cache.NewImageStore(filepath.Join(p.cfg.CacheDir(), "images.json"), days(p.cfg.Images.CacheTTLDays))
}

func (p *Pipeline) themeStore() *cache.ThemeStore {
	return cache.NewThemeStore(filepath.Join(p.cfg.CacheDir(), "theme-scores.json"), days(p.cfg.Podcast.ThemeCacheTTLDays))
}

func (p *Pipeline) podcastShownStore() *cache.PodcastShownStore {
	return cache.NewPodcastShownStore(filepath.Join(p.cfg.CacheDir(), "podcast-shown.json"), days(p.cfg.Podcast.ShownTTLDays))
}

func (p *Pipeline) discoveryStore() *cache.DiscoveryStore {
	return cache.NewDiscoveryStore(filepath.Join(p.cfg.CacheDir(), "discovery.json"), days(p.cfg.Discover.CacheTTLDays))
}

// loadStore loads a cache, treating an unreadable file as a cold start.
func loadStore(name string, load func() error) {
	if err := load(); err != nil {
		log.Printf("%s cache unreadable, starting cold: %v", name, err)
	}
}

// saveStore persists a cache. Failures cost cache hits on the next run
// but never fail the pipeline.
func saveStore(name string, save func() error) {
	if err := save(); err != nil {
		log.Printf("Saving %s cache: %v", name, err)
	}
}
