package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default source labels used by the categorizer.
const (
	DefaultRepoSearchLabel = "GitHub Trending"
	DefaultListingLabel    = "Product Hunt"
)

// Sources lists the upstreams fetched on every run and the keywords used to categorize them.
type Sources struct {
	Feeds                 []FeedSource `yaml:"feeds"`
	RepoSearch            RepoSearch   `yaml:"repo_search"`
	Listing               Listing      `yaml:"listing"`
	DeveloperToolKeywords []string     `yaml:"developer_tool_keywords"`
}

// FeedSource is a syndication feed. AIVendor marks the blog of an AI company.
type FeedSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	AIVendor bool   `yaml:"ai_vendor"`
}

// RepoSearch configures the repository-search source.
type RepoSearch struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Listing configures the curated-listing source.
type Listing struct {
	Label string `yaml:"label"`
}

// DefaultSources returns the built-in source list.
func DefaultSources() *Sources {
	return &Sources{
		Feeds: []FeedSource{
			{Name: "Anthropic Blog", URL: "https://www.anthropic.com/news", AIVendor: true},
			{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss.xml", AIVendor: true},
			{Name: "Google AI Blog", URL: "http://ai.googleblog.com/feeds/posts/default", AIVendor: true},
			{Name: "Microsoft AI Blog", URL: "https://blogs.microsoft.com/ai/feed/", AIVendor: true},
			{Name: "Hugging Face", URL: "https://huggingface.co/blog/feed.xml", AIVendor: true},
			{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/"},
			{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
			{Name: "GitHub Blog", URL: "https://github.blog/feed/"},
		},
		RepoSearch: RepoSearch{
			Label:    DefaultRepoSearchLabel,
			Keywords: []string{"ai", "machine-learning", "llm"},
		},
		Listing:               Listing{Label: DefaultListingLabel},
		DeveloperToolKeywords: defaultDeveloperToolKeywords(),
	}
}

func defaultDeveloperToolKeywords() []string {
	return []string{
		"copilot", "cursor", "vs code", "vscode", "jetbrains", "sdk", "developer tool",
		"devtools", "github actions", "docker", "kubernetes", "terraform", "compiler",
		"debugger", "framework", "coding assistant", "code review", "mcp server", "cli tool",
	}
}

// LoadSources reads a YAML source list. An empty path yields DefaultSources.
func LoadSources(path string) (*Sources, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse sources yaml: %w", err)
	}

	s.setDefaults()
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}
	return &s, nil
}

func (s *Sources) setDefaults() {
	if s.RepoSearch.Label == "" {
		s.RepoSearch.Label = DefaultRepoSearchLabel
	}
	if len(s.RepoSearch.Keywords) == 0 {
		s.RepoSearch.Keywords = DefaultSources().RepoSearch.Keywords
	}
	if s.Listing.Label == "" {
		s.Listing.Label = DefaultListingLabel
	}
	if len(s.DeveloperToolKeywords) == 0 {
		s.DeveloperToolKeywords = defaultDeveloperToolKeywords()
	}
}

func (s *Sources) validate() error {
	seen := make(map[string]bool, len(s.Feeds)+2)
	seen[s.RepoSearch.Label] = true
	if seen[s.Listing.Label] {
		return fmt.Errorf("listing label %q collides with repo search label", s.Listing.Label)
	}
	seen[s.Listing.Label] = true

	for i, f := range s.Feeds {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("feed at index %d: name is required", i)
		}
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("feed %q: url is required", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("feed %q: duplicate source name", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// AIVendorNames returns the names of feeds flagged as AI-vendor blogs.
func (s *Sources) AIVendorNames() []string {
	var names []string
	for _, f := range s.Feeds {
		if f.AIVendor {
			names = append(names, f.Name)
		}
	}
	return names
}
