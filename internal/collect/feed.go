package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zirnhelt/super-rss-feed/internal/article"
)

const (
	defaultMaxPerFeed    = 20
	maxDescriptionLength = 2000
)

// fetchSource parses one feed and returns its kept articles plus the raw
// item count.
func (c *Collector) fetchSource(ctx context.Context, src Source, cutoff time.Time) ([]*article.Article, int, error) {
	parser := gofeed.NewParser()
	parser.Client = c.client

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing feed: %w", err)
	}

	maxPerFeed := c.cfg.Sources.MaxPerFeed
	if maxPerFeed < 1 {
		maxPerFeed = defaultMaxPerFeed
	}

	var entries []*article.Article
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}
		a := ParseItem(item, src)
		if a == nil {
			continue
		}
		if a.PublishedAt.Before(cutoff) {
			continue
		}
		if c.blockedByKeyword(a) {
			continue
		}
		entries = append(entries, a)
	}
	return entries, len(feed.Items), nil
}

// ParseItem builds an article from one feed item. Items without a title
// are dropped; a missing link falls back to the GUID, and a missing date
// gets the benefit of the doubt as now.
func ParseItem(item *gofeed.Item, src Source) *article.Article {
	title := stripHTML(item.Title)
	if title == "" {
		return nil
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}

	published := time.Now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	desc = stripHTML(desc)
	if len(desc) > maxDescriptionLength {
		desc = desc[:maxDescriptionLength]
	}

	a := article.New(title, link, desc, published, src.Name, src.SiteURL)
	if item.Image != nil {
		a.Image = item.Image.URL
	}
	return a
}

func (c *Collector) blockedByKeyword(a *article.Article) bool {
	if len(c.cfg.Sources.BlockedKeywords) == 0 {
		return false
	}
	text := strings.ToLower(a.Title + " " + a.Description)
	for _, kw := range c.cfg.Sources.BlockedKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	// Decode common entities
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	// Normalize whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
