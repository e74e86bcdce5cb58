// Package pipeline wires the curation stages into the three runnable
// flows: the full curation run, the daily themed podcast selection, and
// candidate feed discovery. Stages are sequential; each one loads the
// caches it needs, tolerates a corrupt cache as a cold start, and
// persists once when the stage completes.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/collect"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/dedup"
	"github.com/zirnhelt/super-rss-feed/internal/fetch"
	"github.com/zirnhelt/super-rss-feed/internal/history"
	"github.com/zirnhelt/super-rss-feed/internal/images"
	"github.com/zirnhelt/super-rss-feed/internal/limit"
	"github.com/zirnhelt/super-rss-feed/internal/llm"
	"github.com/zirnhelt/super-rss-feed/internal/merge"
	"github.com/zirnhelt/super-rss-feed/internal/output"
	"github.com/zirnhelt/super-rss-feed/internal/score"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a pipeline run.
type Result struct {
	Steps []StepResult
}

// Failed reports whether any step ended in an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

func (r *Result) step(name, format string, args ...any) {
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: fmt.Sprintf(format, args...)})
}

func (r *Result) fail(name string, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Err: err})
}

// Pipeline runs the curation stages against one config.
type Pipeline struct {
	cfg      *config.Config
	provider llm.Provider
	db       *history.DB
}

// New creates a pipeline over the given oracle provider and history
// database.
func New(cfg *config.Config, provider llm.Provider, db *history.DB) *Pipeline {
	return &Pipeline{cfg: cfg, provider: provider, db: db}
}

// Run executes one full curation pass. A non-empty onlyCategory
// restricts publication to that category; collection, scoring and the
// weekly pool still cover everything.
func (p *Pipeline) Run(ctx context.Context, onlyCategory string) *Result {
	r := &Result{}
	rec := &history.Run{Kind: history.KindRun, StartedAt: time.Now()}

	if onlyCategory != "" && !p.cfg.HasCategory(onlyCategory) {
		r.fail("Config", fmt.Errorf("unknown category %q", onlyCategory))
		return r
	}

	log.Println("Step 1/9: Collecting articles...")
	collected, cr, err := collect.NewCollector(p.cfg).Collect(ctx)
	if err != nil {
		r.fail("Collect", err)
		return r
	}
	rec.Collected = cr.Kept
	rec.FailedSources = cr.FailedSources
	r.step("Collect", "%d articles from %d sources (%d failed)", cr.Kept, cr.SourceCount, cr.FailedSources)

	log.Println("Step 2/9: Removing duplicates...")
	unique := dedup.New(p.cfg.PriorityRank).Deduplicate(collected)
	rec.Duplicates = len(collected) - len(unique)
	r.step("Dedup", "%d duplicates removed, %d remain", rec.Duplicates, len(unique))

	log.Println("Step 3/9: Filtering recently shown articles...")
	shown := p.shownStore()
	loadStore("shown", shown.Load)
	fresh := make([]*article.Article, 0, len(unique))
	for _, a := range unique {
		if !shown.Contains(a.Fingerprint) {
			fresh = append(fresh, a)
		}
	}
	rec.ShownFiltered = len(unique) - len(fresh)
	r.step("Shown", "%d already shown, %d new", rec.ShownFiltered, len(fresh))

	log.Println("Step 4/9: Filling thin descriptions...")
	fill := fetch.NewFiller(p.cfg).Fill(ctx, fresh)
	r.step("Fill", "%d candidates, %d filled, %d failed", fill.Candidates, fill.Filled, fill.Failed)

	log.Println("Step 5/9: Scoring articles...")
	scores := p.scoreStore()
	loadStore("score", scores.Load)
	sr := score.NewScorer(p.cfg, p.provider, scores).ScoreArticles(ctx, fresh)
	saveStore("score", scores.Save)
	rec.CacheHits = sr.FromCache
	rec.FreshScored = sr.Scored
	rec.OracleFailures = sr.FailedBatches
	r.step("Score", "%d cached, %d fresh, %d failed batches", sr.FromCache, sr.Scored, sr.FailedBatches)

	log.Println("Step 6/9: Applying the score threshold...")
	admitted := make([]*article.Article, 0, len(fresh))
	for _, a := range fresh {
		if a.Score >= p.cfg.Scoring.MinScore {
			admitted = append(admitted, a)
		}
	}
	r.step("Cut", "%d of %d at or above score %d", len(admitted), len(fresh), p.cfg.Scoring.MinScore)

	log.Println("Step 7/9: Updating the weekly pool...")
	pool := p.poolStore()
	loadStore("pool", pool.Load)
	pool.Add(admitted)
	saveStore("pool", pool.Save)
	r.step("Pool", "%d articles pooled", pool.Len())

	log.Println("Step 8/9: Applying per-source limits and resolving images...")
	limiter := limit.New(p.cfg)
	perCategory := make(map[string][]*article.Article)
	var publishable []*article.Article
	var considered int
	for _, cat := range p.selectedCategories(onlyCategory) {
		var batch []*article.Article
		for _, a := range admitted {
			if a.Category == cat.Name {
				batch = append(batch, a)
			}
		}
		considered += len(batch)
		capped := limiter.Apply(batch, cat.Name)
		perCategory[cat.Name] = capped
		publishable = append(publishable, capped...)
	}
	r.step("Limit", "%d of %d within per-source caps", len(publishable), considered)

	imgStore := p.imageStore()
	loadStore("image", imgStore.Load)
	ir := images.NewResolver(p.cfg, imgStore).Resolve(ctx, publishable)
	saveStore("image", imgStore.Save)
	r.step("Images", "%d cached, %d scraped, %d fallbacks", ir.FromCache, ir.Scraped, ir.Fallbacks)

	log.Println("Step 9/9: Merging and writing feeds...")
	writer := output.NewWriter(p.cfg)
	merger := merge.New(p.cfg)
	var written int
	for _, cat := range p.selectedCategories(onlyCategory) {
		existing, err := writer.LoadCategoryFeed(cat.Name)
		if err != nil {
			log.Printf("Feed state for %s unreadable, starting fresh: %v", cat.Name, err)
		}
		merged := merger.Merge(existing, perCategory[cat.Name], cat.Name)
		if err := writer.WriteCategoryFeed(cat.Name, merged); err != nil {
			r.fail("Publish "+cat.Name, err)
			continue
		}
		for _, a := range perCategory[cat.Name] {
			shown.Mark(a.Fingerprint)
		}
		rec.Admitted += len(perCategory[cat.Name])
		rec.Categories = append(rec.Categories, history.CategoryCount{
			Category: cat.Name,
			Admitted: len(perCategory[cat.Name]),
			FeedSize: len(merged),
		})
		written++
	}
	if err := writer.WriteSubscriptionList(); err != nil {
		log.Printf("Writing subscription list: %v", err)
	}
	saveStore("shown", shown.Save)
	r.step("Publish", "%d category feeds written, %d articles admitted", written, rec.Admitted)

	p.record(r, rec)
	return r
}

// selectedCategories returns the configured categories, narrowed to one
// when a run is restricted.
func (p *Pipeline) selectedCategories(only string) []config.Category {
	if only == "" {
		return p.cfg.Categories
	}
	for _, cat := range p.cfg.Categories {
		if cat.Name == only {
			return []config.Category{cat}
		}
	}
	return nil
}

// record stores the run, compresses aged detail rows and refreshes the
// feed log.
func (p *Pipeline) record(r *Result, rec *history.Run) {
	rec.Duration = time.Since(rec.StartedAt)
	if _, err := p.db.RecordRun(rec); err != nil {
		r.fail("History", err)
		return
	}
	if _, err := p.db.Compress(time.Now()); err != nil {
		log.Printf("Compressing history: %v", err)
	}
	if err := p.db.WriteFeedLog(p.cfg.FeedLogPath()); err != nil {
		log.Printf("Writing feed log: %v", err)
	}
	r.step("History", "run recorded")
}
