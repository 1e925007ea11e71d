// Package normalize turns raw fetcher output into deduplicated, canonical items.
package normalize

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsdigest/internal/model"
)

// Normalize maps raw items to NormalizedItem, dropping items without a usable URL
// and keeping only the first occurrence of each URL. Input order is preserved.
func Normalize(raw []model.RawItem, log *slog.Logger) []model.NormalizedItem {
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.NormalizedItem, 0, len(raw))

	var invalid, duplicates int
	for _, r := range raw {
		link := strings.TrimSpace(r.Link)
		if !ValidURL(link) {
			invalid++
			log.Debug("dropping item without usable url", "source", r.SourceName, "title", r.Title, "url", r.Link)
			continue
		}
		if _, ok := seen[link]; ok {
			duplicates++
			continue
		}
		seen[link] = struct{}{}

		out = append(out, model.NormalizedItem{
			Title:       CleanText(r.Title),
			URL:         link,
			Summary:     CleanText(r.Summary),
			PublishedAt: r.PublishedAt,
			SourceName:  r.SourceName,
			Stars:       r.Stars,
			Votes:       r.Votes,
		})
	}

	log.Info("items normalized", "input", len(raw), "unique", len(out), "duplicates", duplicates, "invalid", invalid)
	return out
}

// ValidURL reports whether s is an absolute http(s) URL with a host.
func ValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// CleanText strips HTML markup and collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
