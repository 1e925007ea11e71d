package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsdigest/internal/model"
)

const noDescription = "No description"

// RepoSearchOptions configure the repository-search source.
type RepoSearchOptions struct {
	Endpoint  string
	Token     string
	Label     string
	Keywords  []string
	Days      int
	Limit     int
	UserAgent string
	Now       func() time.Time
}

// RepoSearchSource queries a repository search API for recently created, popular repositories.
type RepoSearchSource struct {
	client HTTPClient
	opts   RepoSearchOptions
}

type repoSearchResponse struct {
	Items []struct {
		FullName        string    `json:"full_name"`
		HTMLURL         string    `json:"html_url"`
		Description     *string   `json:"description"`
		StargazersCount int       `json:"stargazers_count"`
		CreatedAt       time.Time `json:"created_at"`
	} `json:"items"`
}

// NewRepoSearchSource creates a RepoSearchSource.
func NewRepoSearchSource(client HTTPClient, opts RepoSearchOptions) *RepoSearchSource {
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "NewsDigest/1.0"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RepoSearchSource{client: client, opts: opts}
}

// Name returns the source label attached to every item.
func (s *RepoSearchSource) Name() string { return s.opts.Label }

// Query returns the search expression sent upstream.
func (s *RepoSearchSource) Query() string {
	since := s.opts.Now().UTC().AddDate(0, 0, -s.opts.Days).Format("2006-01-02")
	return strings.Join(s.opts.Keywords, " OR ") + " created:>" + since
}

// Fetch runs the search and maps each repository to a raw item.
func (s *RepoSearchSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	params := url.Values{}
	params.Set("q", s.Query())
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(s.opts.Limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", s.opts.UserAgent)
	if s.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	}

	body, err := do(s.client, req)
	if err != nil {
		return nil, err
	}

	var resp repoSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]model.RawItem, 0, len(resp.Items))
	for _, r := range resp.Items {
		desc := noDescription
		if r.Description != nil && strings.TrimSpace(*r.Description) != "" {
			desc = *r.Description
		}
		item := model.RawItem{
			Title:      r.FullName,
			Link:       r.HTMLURL,
			Summary:    desc,
			SourceName: s.opts.Label,
			Stars:      r.StargazersCount,
		}
		if !r.CreatedAt.IsZero() {
			created := r.CreatedAt.UTC()
			item.PublishedAt = &created
		}
		items = append(items, item)
	}
	return items, nil
}
