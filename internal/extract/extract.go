// Package extract fills in missing item summaries from the linked article.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"newsdigest/internal/model"
	"newsdigest/internal/normalize"
)

const maxPageSize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tune page extraction.
type Options struct {
	Workers   int
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

// Extractor downloads pages and derives a summary with readability.
type Extractor struct {
	client HTTPClient
	opts   Options
	log    *slog.Logger
}

// New creates an Extractor.
func New(client HTTPClient, opts Options, log *slog.Logger) *Extractor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 500
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "NewsDigest/1.0"
	}
	return &Extractor{client: client, opts: opts, log: log}
}

// Fill returns a copy of items where empty summaries are replaced by the article excerpt.
// Extraction failures leave the summary empty.
func (e *Extractor) Fill(ctx context.Context, items []model.NormalizedItem) []model.NormalizedItem {
	out := make([]model.NormalizedItem, len(items))
	copy(out, items)

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i := range out {
		if out[i].Summary != "" {
			continue
		}
		g.Go(func() error {
			summary, err := e.Summary(ctx, out[i].URL)
			if err != nil {
				e.log.Debug("summary extraction failed", "url", out[i].URL, "error", err)
				return nil
			}
			out[i].Summary = summary
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Summary downloads pageURL and returns its cleaned excerpt.
func (e *Extractor) Summary(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageSize), parsed)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	text := normalize.CleanText(article.Excerpt)
	if text == "" {
		text = normalize.CleanText(article.TextContent)
	}
	if text == "" {
		return "", fmt.Errorf("no text extracted")
	}

	if r := []rune(text); len(r) > e.opts.MaxChars {
		text = string(r[:e.opts.MaxChars])
	}
	return text, nil
}
