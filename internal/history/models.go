package history

import "time"

// Run kinds.
const (
	KindRun      = "run"
	KindPodcast  = "podcast"
	KindDiscover = "discover"
)

// Run is the recorded outcome of one pipeline invocation.
type Run struct {
	ID             int64
	Kind           string
	StartedAt      time.Time
	Duration       time.Duration
	Collected      int
	FailedSources  int
	Duplicates     int
	ShownFiltered  int
	CacheHits      int
	FreshScored    int
	OracleFailures int
	Admitted       int
	Categories     []CategoryCount
}

// CategoryCount holds the per-category outcome of a run.
type CategoryCount struct {
	Category string
	Admitted int
	FeedSize int
}

// WeeklySummary aggregates the runs of one ISO week after the detail
// rows have been compressed away.
type WeeklySummary struct {
	Week           string
	Runs           int
	Collected      int
	Admitted       int
	OracleFailures int
}
