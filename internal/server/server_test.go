package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/history"
	"github.com/zirnhelt/super-rss-feed/internal/output"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Categories: []config.Category{
			{Name: "local", Title: "Around Town", Description: "News from the lakecity."},
			{Name: "news", Title: "Wider News"},
		},
		Podcast: config.Podcast{
			Themes: []config.Theme{{Weekday: "Monday", Label: "tech", Categories: []string{"news"}}},
		},
		Output: config.Output{DataDir: t.TempDir()},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *history.DB) {
	t.Helper()
	db, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(cfg, db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, db
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Around Town") {
		t.Error("expected the local category title in the response")
	}
	if !strings.Contains(body, "feed-podcast.json") {
		t.Error("expected the podcast feed link in the response")
	}
	if !strings.Contains(body, "No runs recorded yet") {
		t.Error("expected the empty-history note in the response")
	}
}

func TestIndexShowsRecentRuns(t *testing.T) {
	srv, db := newTestServer(t, testConfig(t))
	if _, err := db.RecordRun(&history.Run{
		Kind:      history.KindRun,
		StartedAt: time.Now(),
		Duration:  95 * time.Second,
		Collected: 412,
		Admitted:  37,
	}); err != nil {
		t.Fatalf("recording run: %v", err)
	}

	rec := get(t, srv, "/")
	body := rec.Body.String()
	if !strings.Contains(body, "<td>run</td>") {
		t.Error("expected the run kind in the table")
	}
	if !strings.Contains(body, "<td>412</td>") || !strings.Contains(body, "<td>37</td>") {
		t.Error("expected run counts in the table")
	}
}

func TestFeedsRoute(t *testing.T) {
	cfg := testConfig(t)
	a := article.New("Mill announces winter shutdown", "https://signal.example/mill",
		"The mill winds down for the season.", time.Now(), "Cariboo Signal", "https://signal.example/feed")
	a.Category = "local"
	if err := output.NewWriter(cfg).WriteCategoryFeed("local", []*article.Article{a}); err != nil {
		t.Fatalf("writing feed: %v", err)
	}
	srv, _ := newTestServer(t, cfg)

	rec := get(t, srv, "/feeds/feed-local.json")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Mill announces winter shutdown") {
		t.Error("expected the article in the served feed")
	}
}

func TestLogRoute(t *testing.T) {
	cfg := testConfig(t)
	srv, db := newTestServer(t, cfg)
	if _, err := db.RecordRun(&history.Run{Kind: history.KindRun, StartedAt: time.Now(), Admitted: 12}); err != nil {
		t.Fatalf("recording run: %v", err)
	}
	if err := db.WriteFeedLog(cfg.FeedLogPath()); err != nil {
		t.Fatalf("writing feed log: %v", err)
	}

	rec := get(t, srv, "/log")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Feed log") {
		t.Error("expected the rendered feed log heading")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected the markdown tables rendered as HTML")
	}
}

func TestLogRouteWithoutHistory(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := get(t, srv, "/log")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No runs recorded yet") {
		t.Error("expected the empty-log note")
	}
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Error("expected 'ok' in response body")
	}
}

func TestStaticRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := get(t, srv, "/no-such-page")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
