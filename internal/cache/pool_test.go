package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
)

func poolArticle(title, link string, score int, category string) *article.Article {
	a := article.New(title, link, "", time.Now(), "Tribune", "https://tribune.example")
	a.Score = score
	a.Category = category
	return a
}

func TestPoolAddDeduplicatesByLink(t *testing.T) {
	s := NewPoolStore(filepath.Join(t.TempDir(), "pool.json"), 7*24*time.Hour)

	s.Add([]*article.Article{
		poolArticle("Mill reopens", "https://a/mill", 60, "local"),
		poolArticle("Budget passes", "https://a/budget", 55, "local"),
	})
	s.Add([]*article.Article{
		poolArticle("Mill reopens", "https://a/mill", 75, "local"),
	})

	if s.Len() != 2 {
		t.Fatalf("expected 2 pooled records, got %d", s.Len())
	}
	for _, rec := range s.Records() {
		if rec.Link == "https://a/mill" && rec.Score != 75 {
			t.Errorf("re-added article should carry the refreshed score, got %d", rec.Score)
		}
	}
}

func TestPoolLoadPrunesWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")

	raw := []PoolRecord{
		{Link: "https://a/old", Title: "old", AddedAt: time.Now().Add(-8 * 24 * time.Hour)},
		{Link: "https://a/new", Title: "new", AddedAt: time.Now().Add(-1 * 24 * time.Hour)},
		{Link: "https://a/new", Title: "new again", AddedAt: time.Now()},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewPoolStore(path, 7*24*time.Hour)
	if err := s.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected pruning and link dedupe to leave 1 record, got %d", s.Len())
	}
	if s.Records()[0].Title != "new" {
		t.Errorf("first record for a link should win, got %q", s.Records()[0].Title)
	}
}

func TestPoolRecordArticleRoundTrip(t *testing.T) {
	a := poolArticle("Mill reopens", "https://a/mill", 75, "local")
	a.Image = "https://a/mill.jpg"

	s := NewPoolStore(filepath.Join(t.TempDir(), "pool.json"), 7*24*time.Hour)
	s.Add([]*article.Article{a})

	got := s.Records()[0].Article()
	if got.Fingerprint != a.Fingerprint {
		t.Error("re-hydrated article should keep its fingerprint")
	}
	if got.Score != 75 || got.Category != "local" || got.Image != a.Image {
		t.Errorf("re-hydrated article lost fields: %+v", got)
	}
}

func TestPoolSaveWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	s := NewPoolStore(path, 7*24*time.Hour)
	if err := s.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var records []PoolRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("empty pool should still be valid JSON: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty pool, got %d records", len(records))
	}
}
