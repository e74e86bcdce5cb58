package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// feedLogRuns is how many recent runs the feed log lists.
const feedLogRuns = 20

// WriteFeedLog regenerates the markdown feed log at path: a table of
// recent runs, detail for the latest one, and the weekly summary table.
func (db *DB) WriteFeedLog(path string) error {
	runs, err := db.RecentRuns(feedLogRuns)
	if err != nil {
		return err
	}
	weeks, err := db.WeeklySummaries()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(renderFeedLog(runs, weeks, time.Now())))
}

func renderFeedLog(runs []Run, weeks []WeeklySummary, now time.Time) string {
	sections := []string{
		"# Feed log",
		fmt.Sprintf("Updated %s.", now.UTC().Format("2006-01-02 15:04 UTC")),
	}

	if len(runs) == 0 {
		sections = append(sections, "No runs recorded yet.")
	} else {
		var b strings.Builder
		b.WriteString("## Recent runs\n\n")
		b.WriteString("| Started (UTC) | Kind | Duration | Collected | Admitted | Failed sources | Oracle failures |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, r := range runs {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d | %d |\n",
				r.StartedAt.UTC().Format("2006-01-02 15:04"), r.Kind,
				r.Duration.Round(time.Second), r.Collected, r.Admitted,
				r.FailedSources, r.OracleFailures)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
		sections = append(sections, renderLatestRun(runs[0]))
	}

	if len(weeks) > 0 {
		var b strings.Builder
		b.WriteString("## Weekly summary\n\n")
		b.WriteString("| Week | Runs | Collected | Admitted | Oracle failures |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, w := range weeks {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n",
				w.Week, w.Runs, w.Collected, w.Admitted, w.OracleFailures)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n") + "\n"
}

func renderLatestRun(r Run) string {
	var b strings.Builder
	b.WriteString("## Latest run detail\n\n")
	fmt.Fprintf(&b, "- Duplicates removed: %d\n", r.Duplicates)
	fmt.Fprintf(&b, "- Recently shown: %d\n", r.ShownFiltered)
	fmt.Fprintf(&b, "- Score cache hits: %d\n", r.CacheHits)
	fmt.Fprintf(&b, "- Freshly scored: %d\n", r.FreshScored)
	if len(r.Categories) > 0 {
		b.WriteString("\n| Category | Admitted | Feed size |\n")
		b.WriteString("|---|---|---|\n")
		for _, cc := range r.Categories {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", cc.Category, cc.Admitted, cc.FeedSize)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
