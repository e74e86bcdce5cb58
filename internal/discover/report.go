package discover

import (
	"fmt"
	"strings"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/output"
)

// WriteReport renders the evaluation as a markdown report, accepted
// feeds grouped by their dominant category.
func WriteReport(path string, r *Result, now time.Time) error {
	return output.WriteFileAtomic(path, []byte(renderReport(r, now)))
}

// WriteAcceptedOPML writes the accepted candidates as a subscription
// list ready to paste into the sources OPML.
func WriteAcceptedOPML(path string, r *Result) error {
	var entries []output.OPMLEntry
	for _, report := range r.Reports {
		if report.Accepted {
			entries = append(entries, output.OPMLEntry{Title: report.Title, XMLURL: report.URL})
		}
	}
	return output.WriteOPML(path, "Discovered feeds", entries)
}

func renderReport(r *Result, now time.Time) string {
	sections := []string{
		"# Feed discovery report",
		fmt.Sprintf("Updated %s.", now.UTC().Format("2006-01-02 15:04 UTC")),
		fmt.Sprintf("%d candidates: %d accepted, %d rejected, %d failed.",
			r.Candidates, r.Accepted, r.Candidates-r.Accepted-r.Failed, r.Failed),
	}

	byCategory := make(map[string][]FeedReport)
	var categories []string
	var rejected, failed []FeedReport
	for _, report := range r.Reports {
		switch {
		case report.Err != nil:
			failed = append(failed, report)
		case report.Accepted:
			if len(byCategory[report.Category]) == 0 {
				categories = append(categories, report.Category)
			}
			byCategory[report.Category] = append(byCategory[report.Category], report)
		default:
			rejected = append(rejected, report)
		}
	}

	if len(categories) > 0 {
		var b strings.Builder
		b.WriteString("## Accepted\n")
		for _, category := range categories {
			fmt.Fprintf(&b, "\n### %s\n\n", category)
			for _, report := range byCategory[category] {
				fmt.Fprintf(&b, "- [%s](%s): score %d%s\n",
					report.Title, report.URL, report.Score, cachedSuffix(report))
			}
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if len(rejected) > 0 {
		var b strings.Builder
		b.WriteString("## Rejected\n\n")
		for _, report := range rejected {
			fmt.Fprintf(&b, "- [%s](%s): score %d (%s)%s\n",
				report.Title, report.URL, report.Score, report.Category, cachedSuffix(report))
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if len(failed) > 0 {
		var b strings.Builder
		b.WriteString("## Failed\n\n")
		for _, report := range failed {
			fmt.Fprintf(&b, "- %s: %v\n", report.URL, report.Err)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n") + "\n"
}

func cachedSuffix(report FeedReport) string {
	if report.FromCache {
		return " (cached)"
	}
	return ""
}
