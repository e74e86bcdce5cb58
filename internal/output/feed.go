// Package output renders the run's artifacts: one JSON Feed 1.1 file per
// category, the podcast feed, and an OPML subscription list. Feed files
// double as the persisted feed state, so the package also reads them back
// into articles at the start of a run.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1.1"

// Feed is a JSON Feed 1.1 document.
type Feed struct {
	Version     string `json:"version"`
	Title       string `json:"title"`
	HomePageURL string `json:"home_page_url,omitempty"`
	FeedURL     string `json:"feed_url,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Items       []Item `json:"items"`
}

// Item is one feed entry. Curation carries the score and category under
// a JSON Feed extension key so readers that ignore extensions still work.
type Item struct {
	ID            string    `json:"id"`
	URL           string    `json:"url,omitempty"`
	Title         string    `json:"title"`
	ContentHTML   string    `json:"content_html"`
	DatePublished string    `json:"date_published"`
	Authors       []Author  `json:"authors,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Image         string    `json:"image,omitempty"`
	Curation      *Curation `json:"_curation,omitempty"`
}

type Author struct {
	Name string `json:"name"`
}

type Curation struct {
	Score    int    `json:"score"`
	Category string `json:"category"`
}

// Writer renders and persists feed files under the feeds directory.
type Writer struct {
	cfg *config.Config
	dir string
}

// NewWriter creates a writer rooted at the configured feeds directory.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{cfg: cfg, dir: cfg.FeedsDir()}
}

func feedFileName(category string) string {
	return "feed-" + category + ".json"
}

// FeedPath returns where a category's feed file lives.
func (w *Writer) FeedPath(category string) string {
	return filepath.Join(w.dir, feedFileName(category))
}

// WriteCategoryFeed renders a category's articles as its JSON Feed file.
func (w *Writer) WriteCategoryFeed(category string, articles []*article.Article) error {
	title := category
	var description string
	for _, c := range w.cfg.Categories {
		if c.Name == category {
			if c.Title != "" {
				title = c.Title
			}
			description = c.Description
			break
		}
	}
	return w.write(w.FeedPath(category), title, description, feedFileName(category), articles)
}

// WritePodcastFeed renders the day's themed selection, titled by theme.
func (w *Writer) WritePodcastFeed(themeLabel string, articles []*article.Article) error {
	return w.write(w.FeedPath("podcast"), themeLabel,
		"Today's themed selection", feedFileName("podcast"), articles)
}

func (w *Writer) write(path, title, description, fileName string, articles []*article.Article) error {
	feed := Feed{
		Version:     jsonFeedVersion,
		Title:       title,
		HomePageURL: w.cfg.Output.HomePageURL,
		Description: description,
		Language:    "en-US",
		Items:       make([]Item, 0, len(articles)),
	}
	if w.cfg.Output.FeedURLBase != "" {
		feed.FeedURL = w.cfg.Output.FeedURLBase + "/" + fileName
	}

	for _, a := range articles {
		item := Item{
			ID:            a.Fingerprint,
			URL:           a.Link,
			Title:         a.Title,
			ContentHTML:   a.Description,
			DatePublished: a.PublishedAt.Format(time.RFC3339),
			Image:         a.Image,
			Curation:      &Curation{Score: a.Score, Category: a.Category},
		}
		if a.SourceName != "" {
			item.Authors = []Author{{Name: a.SourceName}}
		}
		if a.Category != "" {
			item.Tags = []string{a.Category}
		}
		feed.Items = append(feed.Items, item)
	}

	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding feed: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// LoadCategoryFeed reads a category's persisted feed state back into
// articles. A missing file is an empty feed; a corrupt one returns an
// error alongside the empty slice so the caller can continue cold.
func (w *Writer) LoadCategoryFeed(category string) ([]*article.Article, error) {
	data, err := os.ReadFile(w.FeedPath(category))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading feed state: %w", err)
	}

	var feed Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parsing feed state: %w", err)
	}

	articles := make([]*article.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		published, err := time.Parse(time.RFC3339, item.DatePublished)
		if err != nil {
			// An unreadable date ages the item out naturally.
			published = time.Time{}
		}
		source := ""
		if len(item.Authors) > 0 {
			source = item.Authors[0].Name
		}

		a := article.New(item.Title, item.URL, item.ContentHTML, published, source, "")
		a.Image = item.Image
		a.Category = category
		if item.Curation != nil {
			a.Score = item.Curation.Score
			if item.Curation.Category != "" {
				a.Category = item.Curation.Category
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// WriteFileAtomic writes via a temp file and rename so readers never see
// a partial feed.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
