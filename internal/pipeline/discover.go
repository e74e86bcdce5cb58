package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/discover"
	"github.com/zirnhelt/super-rss-feed/internal/history"
	"github.com/zirnhelt/super-rss-feed/internal/score"
)

// Discover evaluates the configured candidate feeds and writes the
// discovery report plus an OPML of the accepted ones.
func (p *Pipeline) Discover(ctx context.Context) *Result {
	r := &Result{}
	rec := &history.Run{Kind: history.KindDiscover, StartedAt: time.Now()}

	if len(p.cfg.Discover.Candidates) == 0 {
		r.step("Discover", "no candidate feeds configured")
		return r
	}

	log.Println("Step 1/2: Evaluating candidate feeds...")
	scores := p.scoreStore()
	loadStore("score", scores.Load)
	verdicts := p.discoveryStore()
	loadStore("discovery", verdicts.Load)
	scorer := score.NewScorer(p.cfg, p.provider, scores)
	res := discover.NewDiscoverer(p.cfg, scorer, verdicts).Evaluate(ctx)
	saveStore("score", scores.Save)
	saveStore("discovery", verdicts.Save)
	rec.Collected = res.Candidates
	rec.FailedSources = res.Failed
	rec.CacheHits = res.FromCache
	rec.FreshScored = res.Evaluated
	rec.OracleFailures = res.FailedBatches
	rec.Admitted = res.Accepted
	r.step("Evaluate", "%d candidates: %d accepted, %d cached, %d failed", res.Candidates, res.Accepted, res.FromCache, res.Failed)

	log.Println("Step 2/2: Writing the discovery report...")
	if err := discover.WriteReport(p.cfg.DiscoveryReportPath(), res, time.Now()); err != nil {
		r.fail("Report", err)
		return r
	}
	if err := discover.WriteAcceptedOPML(p.cfg.DiscoveredOPMLPath(), res); err != nil {
		r.fail("Report", err)
		return r
	}
	r.step("Report", "report and accepted-feeds OPML written")

	p.record(r, rec)
	return r
}
