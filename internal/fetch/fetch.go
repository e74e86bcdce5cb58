// Package fetch fills in near-empty article descriptions by fetching the
// page and extracting its main text. The pass is bounded per run, and a
// domain that answers with an HTTP error is skipped for the rest of it.
package fetch

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

const (
	userAgent            = "super-rss-feed/1.0 (feed curator)"
	minExtractedLength   = 100
	maxFilledDescription = 1000
)

// Result holds the results of a description fill pass.
type Result struct {
	Candidates int
	Filled     int
	Failed     int
}

// Filler fetches article pages and extracts readable text.
type Filler struct {
	cfg    *config.Config
	client *http.Client
}

// NewFiller creates a description filler.
func NewFiller(cfg *config.Config) *Filler {
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Filler{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fill replaces descriptions shorter than the configured floor with
// extracted page text, attempting at most maxPerRun fetches.
func (f *Filler) Fill(ctx context.Context, articles []*article.Article) *Result {
	r := &Result{}
	if !f.cfg.Fetch.Enabled {
		return r
	}

	failedDomains := make(map[string]struct{})
	for _, a := range articles {
		if len(a.Description) >= f.cfg.Fetch.MinDescription || a.Link == "" {
			continue
		}
		if f.cfg.Fetch.MaxPerRun > 0 && r.Candidates >= f.cfg.Fetch.MaxPerRun {
			break
		}
		r.Candidates++

		domain := domainOf(a.Link)
		if _, failed := failedDomains[domain]; failed {
			r.Failed++
			continue
		}

		text, httpErr := f.extract(ctx, a.Link)
		if httpErr != nil {
			r.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("Fetch: %s: %v, skipping remaining from %s", a.Link, httpErr, domain)
			continue
		}
		if text == "" {
			r.Failed++
			continue
		}

		if len(text) > maxFilledDescription {
			text = text[:maxFilledDescription]
		}
		a.Description = text
		r.Filled++
	}

	if r.Candidates > 0 {
		log.Printf("Fetch: filled %d of %d short descriptions (%d failed)",
			r.Filled, r.Candidates, r.Failed)
	}
	return r
}

// extract fetches one page and runs readability over it. Only HTTP status
// errors are returned; connection and parse problems just yield no text,
// so they do not poison the whole domain.
func (f *Filler) extract(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, _ := url.Parse(link)
	doc, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(doc.TextContent), " ")
	if len(text) > minExtractedLength {
		return text, nil
	}
	return "", nil
}

func domainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
