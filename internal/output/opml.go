package output

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"time"
)

// OPMLEntry is one feed in a subscription list.
type OPMLEntry struct {
	Title   string
	XMLURL  string
	HTMLURL string
}

type opml struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Type    string `xml:"type,attr"`
	Text    string `xml:"text,attr"`
	Title   string `xml:"title,attr"`
	XMLURL  string `xml:"xmlUrl,attr"`
	HTMLURL string `xml:"htmlUrl,attr,omitempty"`
}

// WriteOPML writes a subscription list atomically.
func WriteOPML(path, title string, entries []OPMLEntry) error {
	doc := opml{
		Version: "2.0",
		Head: opmlHead{
			Title:       title,
			DateCreated: time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT",
		},
	}
	for _, e := range entries {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Type:    "rss",
			Text:    e.Title,
			Title:   e.Title,
			XMLURL:  e.XMLURL,
			HTMLURL: e.HTMLURL,
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding OPML: %w", err)
	}
	return WriteFileAtomic(path, append([]byte(xml.Header), data...))
}

// WriteSubscriptionList writes the OPML list of the curated category
// feeds next to them.
func (w *Writer) WriteSubscriptionList() error {
	var entries []OPMLEntry
	for _, c := range w.cfg.Categories {
		title := c.Title
		if title == "" {
			title = c.Name
		}
		entry := OPMLEntry{Title: title, HTMLURL: w.cfg.Output.HomePageURL}
		if w.cfg.Output.FeedURLBase != "" {
			entry.XMLURL = w.cfg.Output.FeedURLBase + "/" + feedFileName(c.Name)
		}
		entries = append(entries, entry)
	}
	return WriteOPML(filepath.Join(w.dir, "curated-feeds.opml"), "Curated Feeds", entries)
}
