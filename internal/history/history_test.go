package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(kind string, startedAt time.Time) *Run {
	return &Run{
		Kind:           kind,
		StartedAt:      startedAt,
		Duration:       90 * time.Second,
		Collected:      412,
		FailedSources:  1,
		Duplicates:     12,
		ShownFiltered:  40,
		CacheHits:      310,
		FreshScored:    58,
		OracleFailures: 2,
		Admitted:       37,
		Categories: []CategoryCount{
			{Category: "local", Admitted: 12, FeedSize: 85},
			{Category: "news", Admitted: 25, FeedSize: 160},
		},
	}
}

func TestRecordRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RecordRun(sampleRun(KindRun, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero run ID")
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.Kind != KindRun {
		t.Errorf("expected kind %q, got %q", KindRun, r.Kind)
	}
	if r.Collected != 412 || r.Admitted != 37 {
		t.Errorf("counts not round-tripped: collected %d admitted %d", r.Collected, r.Admitted)
	}
	if r.Duration != 90*time.Second {
		t.Errorf("expected duration 90s, got %s", r.Duration)
	}
	if len(r.Categories) != 2 {
		t.Fatalf("expected 2 category rows, got %d", len(r.Categories))
	}
	if r.Categories[0].Category != "local" || r.Categories[0].FeedSize != 85 {
		t.Errorf("unexpected first category row: %+v", r.Categories[0])
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now.Add(-2*time.Hour)))
	db.RecordRun(sampleRun(KindPodcast, now.Add(-1*time.Hour)))
	db.RecordRun(sampleRun(KindRun, now))

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Kind != KindRun || runs[1].Kind != KindPodcast {
		t.Errorf("expected newest first, got %q then %q", runs[0].Kind, runs[1].Kind)
	}
}

func TestLastRunByKind(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastRun(KindPodcast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != nil {
		t.Fatal("expected nil before any run")
	}

	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now))
	older := sampleRun(KindPodcast, now.Add(-3*time.Hour))
	older.Admitted = 5
	db.RecordRun(older)

	last, err = db.LastRun(KindPodcast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last == nil {
		t.Fatal("expected a podcast run")
	}
	if last.Admitted != 5 {
		t.Errorf("expected admitted 5, got %d", last.Admitted)
	}
}

func TestRejectsUnknownKind(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.RecordRun(sampleRun("cron", time.Now())); err == nil {
		t.Error("expected CHECK constraint error for unknown kind")
	}
}

func TestCompressFoldsOldRuns(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now.Add(-10*24*time.Hour)))
	db.RecordRun(sampleRun(KindRun, now.Add(-10*24*time.Hour+time.Hour)))
	db.RecordRun(sampleRun(KindRun, now))

	folded, err := db.Compress(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if folded != 2 {
		t.Errorf("expected 2 folded runs, got %d", folded)
	}

	runs, _ := db.RecentRuns(10)
	if len(runs) != 1 {
		t.Errorf("expected 1 detail run left, got %d", len(runs))
	}

	weeks, err := db.WeeklySummaries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weeks) != 1 {
		t.Fatalf("expected 1 weekly row, got %d", len(weeks))
	}
	w := weeks[0]
	if w.Runs != 2 {
		t.Errorf("expected 2 runs in week, got %d", w.Runs)
	}
	if w.Collected != 824 || w.Admitted != 74 || w.OracleFailures != 4 {
		t.Errorf("unexpected weekly totals: %+v", w)
	}
	if !strings.Contains(w.Week, "-W") {
		t.Errorf("expected ISO week label, got %q", w.Week)
	}
}

func TestCompressAccumulatesIntoExistingWeek(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	old := now.Add(-10 * 24 * time.Hour)

	db.RecordRun(sampleRun(KindRun, old))
	if _, err := db.Compress(now); err != nil {
		t.Fatalf("first compress: %v", err)
	}
	db.RecordRun(sampleRun(KindRun, old.Add(time.Hour)))
	if _, err := db.Compress(now); err != nil {
		t.Fatalf("second compress: %v", err)
	}

	weeks, _ := db.WeeklySummaries()
	if len(weeks) != 1 {
		t.Fatalf("expected 1 weekly row, got %d", len(weeks))
	}
	if weeks[0].Runs != 2 {
		t.Errorf("expected accumulated 2 runs, got %d", weeks[0].Runs)
	}
}

func TestCompressLeavesFreshRunsAlone(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now.Add(-2*24*time.Hour)))

	folded, err := db.Compress(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if folded != 0 {
		t.Errorf("expected 0 folded, got %d", folded)
	}
	runs, _ := db.RecentRuns(10)
	if len(runs) != 1 {
		t.Errorf("expected run to survive, got %d", len(runs))
	}
}

func TestCompressRemovesCategoryRows(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now.Add(-10*24*time.Hour)))

	if _, err := db.Compress(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM run_categories").Scan(&count); err != nil {
		t.Fatalf("counting run_categories: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade to remove category rows, got %d", count)
	}
}

func TestWriteFeedLog(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.RecordRun(sampleRun(KindRun, now.Add(-10*24*time.Hour)))
	db.RecordRun(sampleRun(KindRun, now))
	db.Compress(now)

	path := filepath.Join(t.TempDir(), "feed-log.md")
	if err := db.WriteFeedLog(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading feed log: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"# Feed log",
		"## Recent runs",
		"| run |",
		"## Latest run detail",
		"- Score cache hits: 310",
		"| local | 12 | 85 |",
		"## Weekly summary",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("feed log missing %q", want)
		}
	}
}

func TestWriteFeedLogEmptyHistory(t *testing.T) {
	db := openTestDB(t)
	path := filepath.Join(t.TempDir(), "feed-log.md")
	if err := db.WriteFeedLog(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "No runs recorded yet.") {
		t.Error("expected placeholder for empty history")
	}
}
