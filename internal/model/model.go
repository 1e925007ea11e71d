// Package model defines the domain types used across the pipeline.
package model

import "time"

// RawItem is a single entry as returned by a source fetcher, before normalization.
type RawItem struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
	SourceName  string
	Stars       int
	Votes       int
}

// Category is the bucket a normalized item is assigned to.
type Category string

// Supported categories, in the order the categorizer evaluates them.
const (
	CategoryAICompanies     Category = "AI Companies"
	CategoryGitHubTrending  Category = "GitHub Trending"
	CategoryProductLaunches Category = "Product Launches"
	CategoryDeveloperTools  Category = "Developer Tools"
	CategoryGeneral         Category = "General Tech News"
)

// Categories lists every category in rule order.
var Categories = []Category{
	CategoryAICompanies,
	CategoryGitHubTrending,
	CategoryProductLaunches,
	CategoryDeveloperTools,
	CategoryGeneral,
}

// IsValid reports whether c is one of the fixed categories.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizedItem is the canonical item shape. URL is the dedup key.
type NormalizedItem struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
	SourceName  string
	Category    Category
	Stars       int
	Votes       int
}

// DefaultRole is used when the profile source does not provide one.
const DefaultRole = "Developer"

// UserProfile describes the reader the digest is personalised for.
type UserProfile struct {
	Role             string
	Projects         []string
	LearningTopics   []string
	TrackedCompanies []string
	Interests        []string
}

// DefaultProfile returns the profile used when no profile source is reachable.
func DefaultProfile() UserProfile {
	return UserProfile{Role: DefaultRole}
}

// Digest is the narrative part of a run result.
type Digest struct {
	TLDR       string   `json:"tldr"`
	Patterns   []string `json:"patterns"`
	Signals    []string `json:"signals"`
	BottomLine string   `json:"bottom_line"`
}

// ScoredStory is a normalized item annotated with its relevance to the profile.
type ScoredStory struct {
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Summary        string   `json:"summary"`
	RelevanceScore int      `json:"relevance_score"`
	WhyRelevant    string   `json:"why_relevant"`
	Category       Category `json:"category"`
	Source         string   `json:"source"`
	Date           string   `json:"date"`
}

// ActionType classifies an action item.
type ActionType string

// Supported action types.
const (
	ActionOpportunity ActionType = "OPPORTUNITY"
	ActionLearn       ActionType = "LEARN"
	ActionBuild       ActionType = "BUILD"
	ActionNetwork     ActionType = "NETWORK"
	ActionWatch       ActionType = "WATCH"
)

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionOpportunity, ActionLearn, ActionBuild, ActionNetwork, ActionWatch:
		return true
	}
	return false
}

// Priority ranks an action item.
type Priority string

// Supported priorities.
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ActionItem is a suggested follow-up. RelatedStories index into Result.Stories.
type ActionItem struct {
	Type           ActionType `json:"type"`
	Priority       Priority   `json:"priority"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	WhyNow         string     `json:"why_now"`
	TimeEstimate   string     `json:"time_estimate"`
	RelatedStories []int      `json:"related_stories"`
}

// Result is the validated output of one run.
type Result struct {
	Date        string        `json:"date"`
	GeneratedAt time.Time     `json:"generated_at"`
	Digest      Digest        `json:"smart_digest"`
	Stories     []ScoredStory `json:"stories"`
	Actions     []ActionItem  `json:"actions"`
}

// ArchiveEntry references the output of a past run.
type ArchiveEntry struct {
	Date        string `json:"date"`
	DisplayDate string `json:"display_date"`
	File        string `json:"file"`
}

// SourceStatus is the outcome of a single fetcher in a run.
type SourceStatus string

// Supported source statuses.
const (
	SourceOK       SourceStatus = "ok"
	SourceFailed   SourceStatus = "failed"
	SourceDisabled SourceStatus = "disabled"
)

// SourceReport records what one fetcher contributed to a run.
type SourceReport struct {
	Source   string
	Status   SourceStatus
	Items    int
	Error    string
	Duration time.Duration
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Supported run statuses.
const (
	RunStarted   RunStatus = "started"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is a journal record of one pipeline execution.
type Run struct {
	ID           string
	Date         string
	Status       RunStatus
	ItemsFetched int
	ItemsUnique  int
	Stories      int
	Actions      int
	OutputFile   string
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
