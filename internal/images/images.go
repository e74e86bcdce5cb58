// Package images resolves a thumbnail for admitted articles. The page's
// og:image wins, then twitter:image, then the first image inside the
// article body; pages yielding nothing fall back to a favicon URL for
// their host. Scrape outcomes are cached by fingerprint, negative results
// included, so a page is fetched at most once per TTL.
package images

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/zirnhelt/super-rss-feed/internal/article"
	"github.com/zirnhelt/super-rss-feed/internal/cache"
	"github.com/zirnhelt/super-rss-feed/internal/config"
)

const (
	userAgent  = "super-rss-feed/1.0 (feed curator)"
	faviconURL = "https://www.google.com/s2/favicons?domain=%s&sz=128"
)

// Result holds the results of an image resolution pass.
type Result struct {
	FromCache int
	Scraped   int
	Failed    int
	Fallbacks int
}

// Resolver assigns an image URL to articles that lack one.
type Resolver struct {
	cfg    *config.Config
	store  *cache.ImageStore
	client *http.Client
}

// NewResolver creates an image resolver backed by the image cache.
func NewResolver(cfg *config.Config, store *cache.ImageStore) *Resolver {
	timeout := time.Duration(cfg.Images.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve fills the Image field of every article missing one, spending at
// most maxFetchPerRun page fetches. Articles past the budget or with
// failed fetches still get the favicon fallback.
func (r *Resolver) Resolve(ctx context.Context, articles []*article.Article) *Result {
	res := &Result{}
	if !r.cfg.Images.Enabled {
		return res
	}

	fetches := 0
	for _, a := range articles {
		if a.Image != "" || a.Link == "" {
			continue
		}

		if cached, ok := r.store.Get(a.Fingerprint); ok {
			res.FromCache++
			r.assign(a, cached, res)
			continue
		}

		if r.cfg.Images.MaxFetchPerRun > 0 && fetches >= r.cfg.Images.MaxFetchPerRun {
			r.assign(a, "", res)
			continue
		}
		fetches++

		scraped, err := r.scrape(ctx, a.Link)
		if err != nil {
			// Not cached: the page may well come back next run.
			res.Failed++
			r.assign(a, "", res)
			continue
		}
		r.store.Put(a.Fingerprint, scraped)
		res.Scraped++
		r.assign(a, scraped, res)
	}

	if res.FromCache+res.Scraped+res.Failed > 0 {
		log.Printf("Images: %d cached, %d scraped, %d failed, %d favicon fallbacks",
			res.FromCache, res.Scraped, res.Failed, res.Fallbacks)
	}
	return res
}

func (r *Resolver) assign(a *article.Article, scraped string, res *Result) {
	if scraped != "" {
		a.Image = scraped
		return
	}
	if fav := faviconFor(a.Link); fav != "" {
		a.Image = fav
		res.Fallbacks++
	}
}

func (r *Resolver) scrape(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && img != "" {
		return img, nil
	}
	if img, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok && img != "" {
		return img, nil
	}
	if src, ok := doc.Find("article img").First().Attr("src"); ok && src != "" {
		return absolutize(src, link), nil
	}
	return "", nil
}

// absolutize resolves protocol-relative and root-relative image paths
// against the article's page URL.
func absolutize(src, pageURL string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if strings.HasPrefix(src, "/") {
		if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host + src
		}
	}
	return src
}

func faviconFor(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf(faviconURL, u.Host)
}
