package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/cache"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/history"
)

type mockProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func rssDoc(title string, items ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>%s</title><link>https://signal.example</link>%s</channel></rss>`,
		title, strings.Join(items, ""))
}

func rssItem(title, link string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>Body text for the story.</description><pubDate>%s</pubDate></item>`,
		title, link, time.Now().Format(time.RFC1123Z))
}

func serveFeed(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// threeStoryFeed serves one source whose middle story trips the local
// keyword override.
func threeStoryFeed(t *testing.T) *httptest.Server {
	t.Helper()
	return serveFeed(t, rssDoc("Cariboo Signal",
		rssItem("Mill announces winter shutdown", "https://signal.example/mill"),
		rssItem("Williams Lake council approves budget", "https://signal.example/council"),
		rssItem("Highway 97 reopens after slide", "https://signal.example/highway"),
	))
}

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Oracle: config.Oracle{MaxTokens: 1500},
		Sources: config.Sources{
			Feeds:       []config.Feed{{URL: feedURL, Name: "Cariboo Signal"}},
			Concurrency: 2,
			MaxPerFeed:  10,
		},
		Scoring: config.Scoring{
			MinScore:        30,
			DefaultScore:    50,
			DefaultCategory: "news",
			CacheTTLHours:   6,
			BatchSize:       10,
			Concurrency:     1,
			LocalKeywords:   []string{"williams lake"},
			LocalCategory:   "local",
			LocalMinScore:   80,
		},
		Categories: []config.Category{
			{Name: "local", Title: "Around Town"},
			{Name: "news", Title: "Wider News"},
		},
		Limits: config.Limits{
			LookbackHours: 48,
			MaxPerSource:  10,
			MaxFeedSize:   50,
			RetentionDays: 7,
			ShownTTLDays:  14,
		},
		Fetch:  config.Fetch{Enabled: false},
		Images: config.Images{Enabled: false, CacheTTLDays: 7},
		Podcast: config.Podcast{
			MaxArticles:       2,
			MinScore:          50,
			PoolDays:          7,
			ShownTTLDays:      3,
			ThemeCacheTTLDays: 7,
		},
		Discover: config.Discover{
			MinFeedScore: 60,
			SampleSize:   3,
			CacheTTLDays: 30,
		},
		Output: config.Output{DataDir: t.TempDir()},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, provider *mockProvider) (*Pipeline, *history.DB) {
	t.Helper()
	db, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("opening history db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(cfg, provider, db), db
}

func readFeedFile(t *testing.T, cfg *config.Config, category string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.FeedsDir(), "feed-"+category+".json"))
	if err != nil {
		t.Fatalf("reading %s feed: %v", category, err)
	}
	return string(data)
}

func TestRunWritesCategoryFeeds(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, srv.URL)
	mock := &mockProvider{response: `[{"score": 60, "category": "news"}, {"score": 60, "category": "news"}, {"score": 60, "category": "news"}]`}
	p, _ := newTestPipeline(t, cfg, mock)

	r := p.Run(context.Background(), "")
	if r.Failed() {
		t.Fatalf("run failed: %+v", r.Steps)
	}

	news := readFeedFile(t, cfg, "news")
	if !strings.Contains(news, "Mill announces winter shutdown") || !strings.Contains(news, "Highway 97 reopens after slide") {
		t.Errorf("news feed missing stories: %s", news)
	}
	if strings.Contains(news, "Williams Lake council") {
		t.Errorf("local story leaked into the news feed")
	}

	local := readFeedFile(t, cfg, "local")
	if !strings.Contains(local, "Williams Lake council approves budget") {
		t.Errorf("local feed missing the keyword-matched story: %s", local)
	}

	if _, err := os.Stat(cfg.FeedLogPath()); err != nil {
		t.Errorf("expected the feed log to be written: %v", err)
	}
}

func TestRunSecondPassFiltersShown(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, srv.URL)
	mock := &mockProvider{response: `[{"score": 60, "category": "news"}, {"score": 60, "category": "news"}, {"score": 60, "category": "news"}]`}
	p, db := newTestPipeline(t, cfg, mock)

	if r := p.Run(context.Background(), ""); r.Failed() {
		t.Fatalf("first run failed: %+v", r.Steps)
	}
	if r := p.Run(context.Background(), ""); r.Failed() {
		t.Fatalf("second run failed: %+v", r.Steps)
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("loading runs: %v", err)
	}
	second := runs[0]
	if second.ShownFiltered != 3 {
		t.Errorf("expected 3 shown-filtered on the second pass, got %d", second.ShownFiltered)
	}
	if second.Admitted != 0 {
		t.Errorf("expected nothing new admitted, got %d", second.Admitted)
	}
	if mock.callCount() != 1 {
		t.Errorf("expected one oracle call across both runs, got %d", mock.callCount())
	}

	// Already published stories stay in the feed through the merge.
	news := readFeedFile(t, cfg, "news")
	if !strings.Contains(news, "Mill announces winter shutdown") {
		t.Errorf("merge dropped a previously published story")
	}
}

func TestRunRestrictedToOneCategory(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, srv.URL)
	mock := &mockProvider{response: `[{"score": 60, "category": "news"}, {"score": 60, "category": "news"}, {"score": 60, "category": "news"}]`}
	p, db := newTestPipeline(t, cfg, mock)

	r := p.Run(context.Background(), "news")
	if r.Failed() {
		t.Fatalf("run failed: %+v", r.Steps)
	}

	if _, err := os.Stat(filepath.Join(cfg.FeedsDir(), "feed-local.json")); !os.IsNotExist(err) {
		t.Errorf("expected no local feed on a news-only run, stat err: %v", err)
	}
	readFeedFile(t, cfg, "news")

	last, err := db.LastRun(history.KindRun)
	if err != nil || last == nil {
		t.Fatalf("loading last run: %v", err)
	}
	if len(last.Categories) != 1 || last.Categories[0].Category != "news" {
		t.Errorf("expected one news category entry, got %+v", last.Categories)
	}

	// The pool still gathers every admitted article for the podcast.
	pool := cache.NewPoolStore(filepath.Join(cfg.CacheDir(), "pool.json"), 7*24*time.Hour)
	if err := pool.Load(); err != nil {
		t.Fatalf("loading pool: %v", err)
	}
	if pool.Len() != 3 {
		t.Errorf("expected 3 pooled articles, got %d", pool.Len())
	}
}

func TestRunUnknownCategoryFails(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, srv.URL)
	p, db := newTestPipeline(t, cfg, &mockProvider{})

	r := p.Run(context.Background(), "sports")
	if !r.Failed() {
		t.Fatal("expected a failed run for an unknown category")
	}
	if r.Steps[0].Name != "Config" {
		t.Errorf("expected the config step to fail, got %+v", r.Steps[0])
	}

	last, err := db.LastRun(history.KindRun)
	if err != nil {
		t.Fatalf("loading last run: %v", err)
	}
	if last != nil {
		t.Errorf("expected no history row for a rejected run, got %+v", last)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, srv.URL)
	mock := &mockProvider{response: `[{"score": 60, "category": "news"}, {"score": 60, "category": "news"}, {"score": 60, "category": "news"}]`}
	p, db := newTestPipeline(t, cfg, mock)

	if r := p.Run(context.Background(), ""); r.Failed() {
		t.Fatalf("run failed: %+v", r.Steps)
	}

	last, err := db.LastRun(history.KindRun)
	if err != nil || last == nil {
		t.Fatalf("loading last run: %v", err)
	}
	if last.Collected != 3 || last.Admitted != 3 || last.FreshScored != 3 {
		t.Errorf("unexpected counts: %+v", last)
	}
	if len(last.Categories) != 2 {
		t.Fatalf("expected two category entries, got %+v", last.Categories)
	}
	if last.Categories[0].Category != "local" || last.Categories[0].Admitted != 1 {
		t.Errorf("unexpected local entry: %+v", last.Categories[0])
	}
	if last.Categories[1].Category != "news" || last.Categories[1].Admitted != 2 {
		t.Errorf("unexpected news entry: %+v", last.Categories[1])
	}
}

func poolArticle(title, link string) *article.Article {
	a := article.New(title, link, "Body text for the story.", time.Now(), "Cariboo Signal", "https://signal.example/feed")
	a.Score = 80
	a.Category = "news"
	return a
}

func TestPodcastWritesFeed(t *testing.T) {
	cfg := testConfig(t, "http://unused.invalid")
	cfg.Podcast.Themes = []config.Theme{{
		Weekday:    "Monday",
		Label:      "tech-roundup",
		Categories: []string{"news"},
		Prompt:     "How well does this fit a technology roundup?",
	}}

	pool := cache.NewPoolStore(filepath.Join(cfg.CacheDir(), "pool.json"), 7*24*time.Hour)
	pool.Add([]*article.Article{
		poolArticle("Mill announces winter shutdown", "https://signal.example/mill"),
		poolArticle("Highway 97 reopens after slide", "https://signal.example/highway"),
	})
	if err := pool.Save(); err != nil {
		t.Fatalf("seeding pool: %v", err)
	}

	mock := &mockProvider{response: `[{"score": 90}, {"score": 70}]`}
	p, db := newTestPipeline(t, cfg, mock)

	r := p.Podcast(context.Background(), "tech-roundup")
	if r.Failed() {
		t.Fatalf("podcast run failed: %+v", r.Steps)
	}

	feed := readFeedFile(t, cfg, "podcast")
	if !strings.Contains(feed, "Mill announces winter shutdown") || !strings.Contains(feed, "Highway 97 reopens after slide") {
		t.Errorf("podcast feed missing picks: %s", feed)
	}
	if _, err := os.Stat(filepath.Join(cfg.CacheDir(), "podcast-shown.json")); err != nil {
		t.Errorf("expected the podcast shown cache to be saved: %v", err)
	}

	last, err := db.LastRun(history.KindPodcast)
	if err != nil || last == nil {
		t.Fatalf("loading last podcast run: %v", err)
	}
	if last.Admitted != 2 || last.Collected != 2 {
		t.Errorf("unexpected podcast counts: %+v", last)
	}
}

func TestPodcastNoThemeScheduled(t *testing.T) {
	cfg := testConfig(t, "http://unused.invalid")
	p, _ := newTestPipeline(t, cfg, &mockProvider{})

	r := p.Podcast(context.Background(), "")
	if r.Failed() {
		t.Fatalf("expected a quiet no-op, got %+v", r.Steps)
	}
	if len(r.Steps) != 1 || !strings.Contains(r.Steps[0].Summary, "no theme scheduled") {
		t.Errorf("unexpected steps: %+v", r.Steps)
	}
	if _, err := os.Stat(filepath.Join(cfg.FeedsDir(), "feed-podcast.json")); !os.IsNotExist(err) {
		t.Errorf("expected no podcast feed, stat err: %v", err)
	}
}

func TestPodcastUnknownThemeFails(t *testing.T) {
	cfg := testConfig(t, "http://unused.invalid")
	p, _ := newTestPipeline(t, cfg, &mockProvider{})

	r := p.Podcast(context.Background(), "opera")
	if !r.Failed() {
		t.Fatal("expected a failed run for an unknown theme")
	}
}

func TestDiscoverWritesReportAndOPML(t *testing.T) {
	srv := threeStoryFeed(t)
	cfg := testConfig(t, "http://unused.invalid")
	cfg.Discover.Candidates = []string{srv.URL}
	mock := &mockProvider{response: `[{"score": 80, "category": "news"}, {"score": 70, "category": "news"}, {"score": 90, "category": "news"}]`}
	p, db := newTestPipeline(t, cfg, mock)

	r := p.Discover(context.Background())
	if r.Failed() {
		t.Fatalf("discover run failed: %+v", r.Steps)
	}

	report, err := os.ReadFile(cfg.DiscoveryReportPath())
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(report), "Cariboo Signal") {
		t.Errorf("report missing the accepted feed: %s", report)
	}

	opml, err := os.ReadFile(cfg.DiscoveredOPMLPath())
	if err != nil {
		t.Fatalf("reading discovered OPML: %v", err)
	}
	if !strings.Contains(string(opml), srv.URL) {
		t.Errorf("OPML missing the accepted feed URL: %s", opml)
	}

	last, err := db.LastRun(history.KindDiscover)
	if err != nil || last == nil {
		t.Fatalf("loading last discover run: %v", err)
	}
	if last.Admitted != 1 || last.Collected != 1 {
		t.Errorf("unexpected discover counts: %+v", last)
	}
}

func TestDiscoverNoCandidates(t *testing.T) {
	cfg := testConfig(t, "http://unused.invalid")
	p, _ := newTestPipeline(t, cfg, &mockProvider{})

	r := p.Discover(context.Background())
	if r.Failed() {
		t.Fatalf("expected a quiet no-op, got %+v", r.Steps)
	}
	if len(r.Steps) != 1 || !strings.Contains(r.Steps[0].Summary, "no candidate feeds") {
		t.Errorf("unexpected steps: %+v", r.Steps)
	}
}
