// Command digest builds the personalised news digest once, or on a schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"newsdigest/internal/archive"
	"newsdigest/internal/categorize"
	"newsdigest/internal/config"
	"newsdigest/internal/extract"
	"newsdigest/internal/fetcher"
	"newsdigest/internal/llm"
	"newsdigest/internal/model"
	"newsdigest/internal/notify"
	"newsdigest/internal/output"
	"newsdigest/internal/pipeline"
	"newsdigest/internal/profile"
	"newsdigest/internal/publish"
	"newsdigest/internal/relevance"
	"newsdigest/internal/rerank"
	"newsdigest/internal/scheduler"
	"newsdigest/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		slog.Error("load config", "error", err)
		os.Exit(2)
	}

	log := newLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("digest failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srcs, err := cfg.Sources()
	if err != nil {
		return err
	}

	categorizer, err := categorize.NewDefault(categorize.Config{
		AIVendors:             srcs.AIVendorNames(),
		RepoSearchLabel:       srcs.RepoSearch.Label,
		ListingLabel:          srcs.Listing.Label,
		DeveloperToolKeywords: srcs.DeveloperToolKeywords,
	})
	if err != nil {
		return fmt.Errorf("build categorizer: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	loc := cfg.Location()

	generator := llm.New(cfg.LLMAPIKey,
		llm.WithEndpoint(cfg.LLMEndpoint),
		llm.WithModel(cfg.LLMModel),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
	)

	var embedder rerank.Embedder
	if cfg.CohereAPIKey != "" {
		embedder = rerank.NewCohereEmbedder(cfg.CohereAPIKey, cfg.CohereModel, &http.Client{Timeout: cfg.LLMTimeout})
	}

	out := output.New(cfg.OutputDir)
	arch := archive.New(cfg.ArchivePath, cfg.ArchiveLimit, log)

	deps := pipeline.Deps{
		Profile:     profile.New(cfg.ProfileEndpoint, cfg.ProfileAPIKey, httpClient, log),
		Sources:     buildSources(cfg, srcs, httpClient),
		Fetch:       fetcher.AggregateOptions{Timeout: cfg.FetchTimeout, Workers: cfg.FetchWorkers},
		Categorizer: categorizer,
		Prefilter:   rerank.New(embedder, cfg.ContextMaxItems, log),
		Scorer: relevance.New(generator, relevance.Options{
			MaxStories:   cfg.MaxStories,
			MaxActions:   cfg.MaxActions,
			SummaryChars: cfg.ContextSummaryChars,
			Location:     loc,
		}, log),
		Output:   out,
		Archive:  arch,
		Location: loc,
	}

	if cfg.ExtractMissingSummaries {
		deps.Extractor = extract.New(httpClient, extract.Options{
			Workers:   cfg.ExtractWorkers,
			Timeout:   cfg.FetchTimeout,
			UserAgent: cfg.UserAgent,
		}, log)
	}

	botDeps := notify.Deps{Archive: arch, Results: out}

	if cfg.DatabasePath != "" {
		journal, err := openJournal(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer func() { _ = journal.Close() }()
		deps.Journal = journal
		botDeps.Runs = journal
	}

	if cfg.S3Bucket != "" {
		pub, err := publish.NewS3Publisher(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, log)
		if err != nil {
			return fmt.Errorf("create publisher: %w", err)
		}
		deps.Publisher = pub
	}

	var runner *pipeline.Runner
	botDeps.Trigger = func(ctx context.Context) (*model.Result, error) {
		return runner.Run(ctx)
	}

	var bot *notify.Bot
	if cfg.TelegramToken != "" {
		bot, err = notify.New(cfg.TelegramToken, cfg.TelegramChatID, botDeps, log)
		if err != nil {
			return err
		}
		deps.Notifier = bot
	}

	runner = pipeline.New(deps, log)

	if cfg.Schedule == "" {
		_, err := runner.Run(ctx)
		return err
	}

	sched, err := scheduler.New(cfg.Schedule, loc, func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}, log)
	if err != nil {
		return err
	}
	sched.SetRunOnStart(cfg.RunOnStart)

	if bot != nil {
		go bot.Run(ctx)
	}
	return sched.Run(ctx)
}

func buildSources(cfg *config.Config, srcs *config.Sources, client *http.Client) []fetcher.Source {
	sources := make([]fetcher.Source, 0, len(srcs.Feeds)+2)
	for _, f := range srcs.Feeds {
		sources = append(sources, fetcher.NewFeedSource(f.Name, f.URL, client, fetcher.FeedOptions{
			MaxItems:    cfg.FeedMaxItems,
			Window:      cfg.FreshnessWindow,
			KeepUndated: cfg.KeepUndated,
			UserAgent:   cfg.UserAgent,
		}))
	}
	sources = append(sources,
		fetcher.NewRepoSearchSource(client, fetcher.RepoSearchOptions{
			Endpoint:  cfg.RepoSearchURL,
			Token:     cfg.GitHubToken,
			Label:     srcs.RepoSearch.Label,
			Keywords:  srcs.RepoSearch.Keywords,
			Days:      cfg.RepoSearchDays,
			Limit:     cfg.RepoSearchLimit,
			UserAgent: cfg.UserAgent,
		}),
		fetcher.NewListingSource(client, fetcher.ListingOptions{
			Endpoint:  cfg.ListingURL,
			Token:     cfg.ListingToken,
			Label:     srcs.Listing.Label,
			Limit:     cfg.ListingLimit,
			UserAgent: cfg.UserAgent,
		}),
	)
	return sources
}

func openJournal(path string) (*storage.SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	journal, err := storage.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return journal, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
