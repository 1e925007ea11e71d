package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsdigest/internal/model"
)

const listingQuery = `query Posts($first: Int!, $postedAfter: DateTime) {
  posts(first: $first, order: VOTES, postedAfter: $postedAfter) {
    edges { node { name tagline url votesCount createdAt } }
  }
}`

// ListingOptions configure the curated-listing source.
type ListingOptions struct {
	Endpoint  string
	Token     string
	Label     string
	Limit     int
	Window    time.Duration
	UserAgent string
	Now       func() time.Time
}

// ListingSource reads top-voted launches from a GraphQL listing API.
// Without a token it reports ErrSourceDisabled.
type ListingSource struct {
	client HTTPClient
	opts   ListingOptions
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type listingResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node struct {
					Name       string    `json:"name"`
					Tagline    string    `json:"tagline"`
					URL        string    `json:"url"`
					VotesCount int       `json:"votesCount"`
					CreatedAt  time.Time `json:"createdAt"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewListingSource creates a ListingSource.
func NewListingSource(client HTTPClient, opts ListingOptions) *ListingSource {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "NewsDigest/1.0"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ListingSource{client: client, opts: opts}
}

// Name returns the source label attached to every item.
func (s *ListingSource) Name() string { return s.opts.Label }

// Fetch returns the top launches posted inside the window.
func (s *ListingSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	if s.opts.Token == "" {
		return nil, ErrSourceDisabled
	}

	payload, err := json.Marshal(graphQLRequest{
		Query: listingQuery,
		Variables: map[string]any{
			"first":       s.opts.Limit,
			"postedAfter": s.opts.Now().Add(-s.opts.Window).UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Authorization", "Bearer "+s.opts.Token)

	body, err := do(s.client, req)
	if err != nil {
		return nil, err
	}

	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("listing query: %s", resp.Errors[0].Message)
	}

	edges := resp.Data.Posts.Edges
	items := make([]model.RawItem, 0, len(edges))
	for _, e := range edges {
		item := model.RawItem{
			Title:      e.Node.Name,
			Link:       e.Node.URL,
			Summary:    e.Node.Tagline,
			SourceName: s.opts.Label,
			Votes:      e.Node.VotesCount,
		}
		if !e.Node.CreatedAt.IsZero() {
			created := e.Node.CreatedAt.UTC()
			item.PublishedAt = &created
		}
		items = append(items, item)
	}
	return items, nil
}
