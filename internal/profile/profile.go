// Package profile loads the reader profile used to personalise a run.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"newsdigest/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the profile from a remote configuration endpoint.
type Client struct {
	endpoint string
	apiKey   string
	client   HTTPClient
	log      *slog.Logger
}

type profileResponse struct {
	Role              string   `json:"role"`
	Projects          []string `json:"projects"`
	Learning          []string `json:"learning"`
	TrackingCompanies []string `json:"tracking_companies"`
	Interests         []string `json:"interests"`
}

// New creates a profile client. An empty endpoint or key makes Fetch return the default profile.
func New(endpoint, apiKey string, client HTTPClient, log *slog.Logger) *Client {
	return &Client{endpoint: endpoint, apiKey: apiKey, client: client, log: log}
}

// Fetch returns the remote profile. Any failure falls back to model.DefaultProfile.
func (c *Client) Fetch(ctx context.Context) model.UserProfile {
	if c.endpoint == "" || c.apiKey == "" {
		c.log.Info("profile endpoint not configured, using default profile")
		return model.DefaultProfile()
	}

	p, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn("could not fetch profile, using default", "error", err)
		return model.DefaultProfile()
	}

	c.log.Info("profile loaded",
		"role", p.Role,
		"projects", len(p.Projects),
		"learning", len(p.LearningTopics),
		"companies", len(p.TrackedCompanies),
	)
	return p
}

func (c *Client) fetch(ctx context.Context) (model.UserProfile, error) {
	url := strings.TrimRight(c.endpoint, "/") + "/config"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.UserProfile{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pr profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&pr); err != nil {
		return model.UserProfile{}, fmt.Errorf("decode profile: %w", err)
	}

	p := model.UserProfile{
		Role:             strings.TrimSpace(pr.Role),
		Projects:         uniqueStrings(pr.Projects),
		LearningTopics:   uniqueStrings(pr.Learning),
		TrackedCompanies: uniqueStrings(pr.TrackingCompanies),
		Interests:        uniqueStrings(pr.Interests),
	}
	if p.Role == "" {
		p.Role = model.DefaultRole
	}
	return p, nil
}

// uniqueStrings trims entries, drops empties and removes duplicates, keeping first occurrence.
func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Summary renders the profile as the text block sent to the text-generation collaborator.
func Summary(p model.UserProfile) string {
	role := p.Role
	if role == "" {
		role = model.DefaultRole
	}

	var b strings.Builder
	b.WriteString("USER PROFILE:\n")
	fmt.Fprintf(&b, "- Role: %s\n", role)
	fmt.Fprintf(&b, "- Projects: %s\n", joinOrNone(p.Projects))
	fmt.Fprintf(&b, "- Learning: %s\n", joinOrNone(p.LearningTopics))
	fmt.Fprintf(&b, "- Tracking Companies: %s\n", joinOrNone(p.TrackedCompanies))
	fmt.Fprintf(&b, "- Interests: %s\n", joinOrNone(p.Interests))
	return b.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None specified"
	}
	return strings.Join(values, ", ")
}
