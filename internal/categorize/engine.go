// Package categorize assigns every normalized item to exactly one category.
package categorize

import (
	"fmt"
	"regexp"
	"strings"

	"newsdigest/internal/model"
)

// regexPrefix marks a keyword that should be compiled as a case-insensitive regular expression.
const regexPrefix = "re:"

// Rule maps items to a category. A rule matches when the item's source is in Sources,
// or when its title or summary contains one of Keywords or matches one of Patterns.
type Rule struct {
	Category model.Category
	Sources  map[string]struct{}
	Keywords []string
	Patterns []*regexp.Regexp
}

// Engine evaluates rules top to bottom. The first matching rule wins.
type Engine struct {
	rules    []Rule
	fallback model.Category
}

// Config names the source labels and keywords the default rule chain uses.
type Config struct {
	AIVendors             []string
	RepoSearchLabel       string
	ListingLabel          string
	DeveloperToolKeywords []string
}

// New creates an Engine from explicit rules. Items matching none get fallback.
func New(rules []Rule, fallback model.Category) *Engine {
	return &Engine{rules: rules, fallback: fallback}
}

// NewDefault builds the standard chain: AI vendor blogs, repository search,
// curated listing, developer-tool keywords, then general news.
func NewDefault(cfg Config) (*Engine, error) {
	keywords, patterns, err := splitKeywords(cfg.DeveloperToolKeywords)
	if err != nil {
		return nil, err
	}

	rules := []Rule{
		{Category: model.CategoryAICompanies, Sources: sourceSet(cfg.AIVendors...)},
		{Category: model.CategoryGitHubTrending, Sources: sourceSet(cfg.RepoSearchLabel)},
		{Category: model.CategoryProductLaunches, Sources: sourceSet(cfg.ListingLabel)},
		{Category: model.CategoryDeveloperTools, Keywords: keywords, Patterns: patterns},
	}
	return New(rules, model.CategoryGeneral), nil
}

// Categorize returns a copy of items with Category assigned.
func (e *Engine) Categorize(items []model.NormalizedItem) []model.NormalizedItem {
	out := make([]model.NormalizedItem, len(items))
	for i, item := range items {
		item.Category = e.Category(item)
		out[i] = item
	}
	return out
}

// Category returns the category of a single item.
func (e *Engine) Category(item model.NormalizedItem) model.Category {
	for _, r := range e.rules {
		if r.matches(item) {
			return r.Category
		}
	}
	return e.fallback
}

// Counts tallies items per category, listing every known category.
func Counts(items []model.NormalizedItem) map[model.Category]int {
	counts := make(map[model.Category]int, len(model.Categories))
	for _, c := range model.Categories {
		counts[c] = 0
	}
	for _, item := range items {
		counts[item.Category]++
	}
	return counts
}

func (r Rule) matches(item model.NormalizedItem) bool {
	if _, ok := r.Sources[item.SourceName]; ok {
		return true
	}
	if len(r.Keywords) == 0 && len(r.Patterns) == 0 {
		return false
	}

	text := strings.ToLower(item.Title + " " + item.Summary)
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, re := range r.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func sourceSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// splitKeywords lower-cases plain keywords and compiles "re:" entries.
func splitKeywords(raw []string) ([]string, []*regexp.Regexp, error) {
	var keywords []string
	var patterns []*regexp.Regexp
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(kw, regexPrefix); ok {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid keyword regex %q: %w", pattern, err)
			}
			patterns = append(patterns, re)
			continue
		}
		keywords = append(keywords, strings.ToLower(kw))
	}
	return keywords, patterns, nil
}
