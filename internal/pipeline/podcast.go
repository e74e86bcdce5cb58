package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/history"
	"github.com/zirnhelt/super-rss-feed/internal/output"
	"github.com/zirnhelt/super-rss-feed/internal/podcast"
)

// Podcast selects the day's themed articles from the weekly pool and
// writes the podcast feed. An empty themeLabel picks the theme
// scheduled for today's weekday; a day without a theme is a quiet
// no-op, not an error.
func (p *Pipeline) Podcast(ctx context.Context, themeLabel string) *Result {
	r := &Result{}
	rec := &history.Run{Kind: history.KindPodcast, StartedAt: time.Now()}

	theme, ok := p.resolveTheme(themeLabel)
	if !ok {
		if themeLabel != "" {
			r.fail("Theme", fmt.Errorf("unknown theme %q", themeLabel))
			return r
		}
		r.step("Theme", "no theme scheduled for %s", time.Now().Weekday())
		return r
	}
	r.step("Theme", "%s (%s)", theme.Label, theme.Weekday)

	log.Println("Step 1/3: Loading the weekly pool...")
	pool := p.poolStore()
	loadStore("pool", pool.Load)
	records := pool.Records()
	articles := make([]*article.Article, 0, len(records))
	for _, pr := range records {
		articles = append(articles, pr.Article())
	}
	r.step("Pool", "%d pooled articles", len(articles))

	log.Println("Step 2/3: Selecting themed articles...")
	themes := p.themeStore()
	loadStore("theme", themes.Load)
	shown := p.podcastShownStore()
	loadStore("podcast shown", shown.Load)
	sel := podcast.NewSelector(p.cfg, p.provider, themes, shown).Select(ctx, theme, articles)
	saveStore("theme", themes.Save)
	rec.Collected = sel.PoolSize
	rec.ShownFiltered = sel.Excluded
	rec.CacheHits = sel.FromCache
	rec.FreshScored = sel.Scored
	rec.OracleFailures = sel.FailedBatches
	r.step("Select", "%d picked (%d bonus), %d already featured", len(sel.Articles), sel.BonusPicks, sel.Excluded)

	log.Println("Step 3/3: Writing the podcast feed...")
	if err := output.NewWriter(p.cfg).WritePodcastFeed(theme.Label, sel.Articles); err != nil {
		// Shown marks stay unsaved so the picks are not burned.
		r.fail("Publish", err)
		return r
	}
	saveStore("podcast shown", shown.Save)
	rec.Admitted = len(sel.Articles)
	r.step("Publish", "%d articles in the %s feed", len(sel.Articles), theme.Label)

	p.record(r, rec)
	return r
}

func (p *Pipeline) resolveTheme(label string) (config.Theme, bool) {
	if label != "" {
		return podcast.ThemeByLabel(p.cfg, label)
	}
	return podcast.ThemeForWeekday(p.cfg, time.Now().Weekday())
}
