package article

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Article is the canonical unit of content moving through the pipeline.
// Every source shape (feed entry, weekly pool record) is converted into
// this type at the boundary; nothing downstream inspects raw entries.
type Article struct {
	Title           string
	Link            string
	Description     string
	PublishedAt     time.Time
	SourceName      string
	SourceURL       string
	Fingerprint     string
	NormalizedTitle string
	Score           int
	Category        string
	Image           string
}

// New builds an Article with its identity fields populated.
func New(title, link, description string, publishedAt time.Time, sourceName, sourceURL string) *Article {
	return &Article{
		Title:           title,
		Link:            link,
		Description:     description,
		PublishedAt:     publishedAt,
		SourceName:      sourceName,
		SourceURL:       sourceURL,
		Fingerprint:     fingerprintFor(link, title, sourceName),
		NormalizedTitle: NormalizeTitle(title),
	}
}

// Fingerprint returns the identity hash for a link.
func Fingerprint(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

// fingerprintFor hashes the link, or title+source when the link is empty,
// so link-less entries still get distinct stable identities.
func fingerprintFor(link, title, sourceName string) string {
	if link == "" {
		return Fingerprint(title + "|" + sourceName)
	}
	return Fingerprint(link)
}

// NormalizeTitle returns the comparison key used for fuzzy matching.
// It is never an identity key.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ClampScore bounds a score to the [0,100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
