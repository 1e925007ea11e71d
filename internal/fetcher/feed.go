package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"newsdigest/internal/model"
)

// FeedOptions tune how entries are selected from a feed.
type FeedOptions struct {
	// MaxItems is how many of the most recent entries are considered.
	MaxItems int
	// Window is the freshness window. Entries published at or before now-Window are dropped.
	Window time.Duration
	// KeepUndated keeps entries that carry neither a published nor an updated date.
	KeepUndated bool
	UserAgent   string
	Now         func() time.Time
}

// FeedSource reads an RSS or Atom feed.
type FeedSource struct {
	name   string
	url    string
	client HTTPClient
	opts   FeedOptions
}

// NewFeedSource creates a FeedSource for the feed at url.
func NewFeedSource(name, url string, client HTTPClient, opts FeedOptions) *FeedSource {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 10
	}
	if opts.Window <= 0 {
		opts.Window = 48 * time.Hour
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "NewsDigest/1.0"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FeedSource{name: name, url: url, client: client, opts: opts}
}

// Name returns the source label attached to every item.
func (s *FeedSource) Name() string { return s.name }

// Fetch downloads the feed and returns its fresh entries.
func (s *FeedSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	body, err := do(s.client, req)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return s.selectItems(feed.Items), nil
}

// selectItems keeps the MaxItems most recent entries that fall inside the freshness window.
func (s *FeedSource) selectItems(entries []*gofeed.Item) []model.RawItem {
	type dated struct {
		entry *gofeed.Item
		at    *time.Time
	}

	candidates := make([]dated, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		candidates = append(candidates, dated{entry: e, at: entryTime(e)})
	}

	// Newest first; undated entries keep feed order at the end.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].at, candidates[j].at
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if len(candidates) > s.opts.MaxItems {
		candidates = candidates[:s.opts.MaxItems]
	}

	cutoff := s.opts.Now().Add(-s.opts.Window)
	var items []model.RawItem
	for _, c := range candidates {
		if c.at == nil && !s.opts.KeepUndated {
			continue
		}
		if c.at != nil && !c.at.After(cutoff) {
			continue
		}
		items = append(items, model.RawItem{
			Title:       c.entry.Title,
			Link:        entryLink(c.entry),
			Summary:     entrySummary(c.entry),
			PublishedAt: c.at,
			SourceName:  s.name,
		})
	}
	return items
}

// entryTime returns the published date, falling back to the updated date.
func entryTime(e *gofeed.Item) *time.Time {
	if e.PublishedParsed != nil {
		t := e.PublishedParsed.UTC()
		return &t
	}
	if e.UpdatedParsed != nil {
		t := e.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func entryLink(e *gofeed.Item) string {
	if e.Link != "" {
		return e.Link
	}
	if len(e.Links) > 0 {
		return e.Links[0]
	}
	return ""
}

func entrySummary(e *gofeed.Item) string {
	if e.Description != "" {
		return e.Description
	}
	return e.Content
}
