package collect

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zirnhelt/super-rss-feed/internal/config"
)

// Source is one resolved syndication source.
type Source struct {
	Name    string
	URL     string
	SiteURL string
}

// ResolveSources merges the inline feed list with the OPML subscription
// file, deduplicates by feed URL, and drops blocked sources.
func ResolveSources(cfg *config.Config) ([]Source, error) {
	var sources []Source
	for _, f := range cfg.Sources.Feeds {
		name := f.Name
		if name == "" {
			name = extractSourceName(f.URL)
		}
		sources = append(sources, Source{Name: name, URL: f.URL, SiteURL: f.SiteURL})
	}

	if cfg.Sources.OPMLPath != "" {
		fromOPML, err := ParseOPML(cfg.Sources.OPMLPath)
		if err != nil {
			return nil, fmt.Errorf("reading subscriptions: %w", err)
		}
		sources = append(sources, fromOPML...)
	}

	resolved := make([]Source, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		if blockedSource(cfg, s.Name) {
			continue
		}
		resolved = append(resolved, s)
	}
	return resolved, nil
}

// blockedSource matches blocked entries as substrings of the source name,
// so "fox news" also covers "Fox News Politics".
func blockedSource(cfg *config.Config, name string) bool {
	lower := strings.ToLower(name)
	for _, blocked := range cfg.Sources.Blocked {
		blocked = strings.ToLower(strings.TrimSpace(blocked))
		if blocked != "" && strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}

type opmlDoc struct {
	XMLName xml.Name `xml:"opml"`
	Body    opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// ParseOPML extracts feed sources from an OPML file. Outlines nest under
// folders, so the walk recurses; any outline carrying an xmlUrl counts as
// a feed.
func ParseOPML(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc opmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing OPML: %w", err)
	}

	var sources []Source
	var walk func(outlines []opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				name := o.Title
				if name == "" {
					name = o.Text
				}
				if name == "" {
					name = extractSourceName(o.XMLURL)
				}
				sources = append(sources, Source{Name: name, URL: o.XMLURL, SiteURL: o.HTMLURL})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return sources, nil
}

// extractSourceName derives a display name from a feed URL's host.
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return feedURL
	}

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 && parts[len(parts)-2] != "" {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
