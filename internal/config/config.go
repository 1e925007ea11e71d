// Package config handles application configuration from flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds the application configuration.
type Config struct {
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	OutputDir    string `long:"output-dir" env:"OUTPUT_DIR" default:"./output" description:"Directory for run results"`
	ArchivePath  string `long:"archive-file" env:"ARCHIVE_FILE" default:"./archive.json" description:"Archive record file"`
	ArchiveLimit int    `long:"archive-limit" env:"ARCHIVE_LIMIT" default:"30" description:"Number of runs kept in the archive"`
	DatabasePath string `long:"database-path" env:"DATABASE_PATH" default:"./data/digest.db" description:"Run journal SQLite database (empty disables the journal)"`
	SourcesFile  string `long:"sources-file" env:"SOURCES_FILE" description:"YAML file listing feeds and categorization keywords"`

	FreshnessWindow time.Duration `long:"freshness-window" env:"FRESHNESS_WINDOW" default:"48h" description:"Maximum age of feed entries"`
	FeedMaxItems    int           `long:"feed-max-items" env:"FEED_MAX_ITEMS" default:"10" description:"Most recent entries considered per feed"`
	KeepUndated     bool          `long:"keep-undated" env:"KEEP_UNDATED" description:"Keep feed entries without a published or updated date"`
	FetchTimeout    time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Per-source fetch timeout"`
	FetchWorkers    int           `long:"fetch-workers" env:"FETCH_WORKERS" default:"8" description:"Sources fetched concurrently"`
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" default:"NewsDigest/1.0" description:"User agent for outgoing requests"`

	RepoSearchURL   string `long:"repo-search-url" env:"REPO_SEARCH_URL" default:"https://api.github.com/search/repositories" description:"Repository search endpoint"`
	RepoSearchDays  int    `long:"repo-search-days" env:"REPO_SEARCH_DAYS" default:"7" description:"Only repositories created in the last N days"`
	RepoSearchLimit int    `long:"repo-search-limit" env:"REPO_SEARCH_LIMIT" default:"10" description:"Repositories requested per run"`
	GitHubToken     string `long:"github-token" env:"GITHUB_TOKEN" description:"Optional token for the repository search API"`

	ListingURL   string `long:"listing-url" env:"LISTING_URL" default:"https://api.producthunt.com/v2/api/graphql" description:"Curated listing GraphQL endpoint"`
	ListingToken string `long:"listing-token" env:"PRODUCT_HUNT_TOKEN" description:"Curated listing token (source disabled when empty)"`
	ListingLimit int    `long:"listing-limit" env:"LISTING_LIMIT" default:"10" description:"Listings requested per run"`

	ExtractMissingSummaries bool `long:"extract-missing-summaries" env:"EXTRACT_MISSING_SUMMARIES" description:"Fetch linked pages for items without a summary"`
	ExtractWorkers          int  `long:"extract-workers" env:"EXTRACT_WORKERS" default:"4" description:"Pages extracted concurrently"`

	ProfileEndpoint string `long:"profile-endpoint" env:"CONFIG_API_ENDPOINT" description:"User profile endpoint"`
	ProfileAPIKey   string `long:"profile-api-key" env:"CONFIG_API_KEY" description:"Bearer token for the profile endpoint"`

	LLMEndpoint    string        `long:"llm-endpoint" env:"LLM_ENDPOINT" default:"https://api.perplexity.ai/chat/completions" description:"Chat completions endpoint"`
	LLMModel       string        `long:"llm-model" env:"LLM_MODEL" default:"sonar-pro" description:"Chat completions model"`
	LLMAPIKey      string        `long:"llm-api-key" env:"LLM_API_KEY" description:"Chat completions API key"`
	LLMTimeout     time.Duration `long:"llm-timeout" env:"LLM_TIMEOUT" default:"120s" description:"Text generation request timeout"`
	LLMTemperature float64       `long:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.2" description:"Sampling temperature"`
	LLMMaxTokens   int           `long:"llm-max-tokens" env:"LLM_MAX_TOKENS" default:"8000" description:"Maximum tokens in the response"`

	MaxStories          int `long:"max-stories" env:"MAX_STORIES" default:"15" description:"Maximum stories accepted from the collaborator"`
	MaxActions          int `long:"max-actions" env:"MAX_ACTIONS" default:"5" description:"Maximum action items kept"`
	ContextMaxItems     int `long:"context-max-items" env:"CONTEXT_MAX_ITEMS" default:"150" description:"Items included in the generation context"`
	ContextSummaryChars int `long:"context-summary-chars" env:"CONTEXT_SUMMARY_CHARS" default:"200" description:"Summary characters per item in the context"`

	CohereAPIKey string `long:"cohere-api-key" env:"COHERE_API_KEY" description:"Enables embedding pre-ranking when the context bound is exceeded"`
	CohereModel  string `long:"cohere-model" env:"COHERE_MODEL" default:"embed-english-v3.0" description:"Embedding model"`

	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token for run notifications"`
	TelegramChatID int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat receiving notifications"`

	S3Bucket string `long:"s3-bucket" env:"S3_BUCKET" description:"Bucket receiving published outputs (empty disables publishing)"`
	S3Region string `long:"s3-region" env:"AWS_REGION" description:"Bucket region"`
	S3Prefix string `long:"s3-prefix" env:"S3_PREFIX" description:"Key prefix for published outputs"`

	Schedule   string `long:"schedule" env:"SCHEDULE" description:"Cron spec; when set the process keeps running and executes on schedule"`
	Timezone   string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for the schedule and run dates"`
	RunOnStart bool   `long:"run-on-start" env:"RUN_ON_START" description:"Execute once immediately in scheduled mode"`

	PreviewAddr   string `long:"preview-addr" env:"PREVIEW_ADDR" default:":8080" description:"Preview server listen address"`
	PreviewAPIKey string `long:"preview-api-key" env:"PREVIEW_API_KEY" description:"Require this key for /api routes"`
}

// Load reads configuration from command-line arguments and environment variables.
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}

	return &cfg, nil
}

// IsHelp reports whether err was caused by a --help request.
func IsHelp(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}

// Validate checks the settings a digest run depends on.
func (c *Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive, got %s", c.FreshnessWindow)
	}
	if c.ArchiveLimit < 1 {
		return fmt.Errorf("archive limit must be at least 1, got %d", c.ArchiveLimit)
	}
	if c.MaxStories < 1 {
		return fmt.Errorf("max stories must be at least 1, got %d", c.MaxStories)
	}
	if c.MaxActions < 1 {
		return fmt.Errorf("max actions must be at least 1, got %d", c.MaxActions)
	}
	if c.FeedMaxItems < 1 {
		return fmt.Errorf("feed max items must be at least 1, got %d", c.FeedMaxItems)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Sources loads the source list from SourcesFile, or the built-in defaults when unset.
func (c *Config) Sources() (*Sources, error) {
	return LoadSources(c.SourcesFile)
}
