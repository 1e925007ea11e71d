// Package pipeline runs one digest: fetch, normalize, categorize, score, then persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsdigest/internal/archive"
	"newsdigest/internal/categorize"
	"newsdigest/internal/fetcher"
	"newsdigest/internal/model"
	"newsdigest/internal/normalize"
	"newsdigest/internal/output"
	"newsdigest/internal/profile"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("run already in progress")

// ProfileSource provides the reader profile. It never fails.
type ProfileSource interface {
	Fetch(ctx context.Context) model.UserProfile
}

// Extractor fills in missing summaries.
type Extractor interface {
	Fill(ctx context.Context, items []model.NormalizedItem) []model.NormalizedItem
}

// Categorizer assigns a category to every item.
type Categorizer interface {
	Categorize(items []model.NormalizedItem) []model.NormalizedItem
}

// Prefilter bounds the items handed to the scorer.
type Prefilter interface {
	Select(ctx context.Context, items []model.NormalizedItem, profileText string) []model.NormalizedItem
}

// Scorer ranks items against the profile.
type Scorer interface {
	Score(ctx context.Context, items []model.NormalizedItem, p model.UserProfile) (*model.Result, error)
}

// Journal records runs. It is a subset of storage.Storage.
type Journal interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	SaveSourceReports(ctx context.Context, runID string, reports []model.SourceReport) error
	SaveStories(ctx context.Context, runID string, stories []model.ScoredStory) error
	PreviouslySeen(ctx context.Context, runID string, urls []string) (map[string]bool, error)
}

// Notifier announces run outcomes.
type Notifier interface {
	NotifyResult(ctx context.Context, r *model.Result) error
	NotifyFailure(ctx context.Context, date string, err error) error
}

// Publisher copies output files elsewhere.
type Publisher interface {
	Publish(ctx context.Context, paths ...string) error
}

// Deps wires the stages of a run. Extractor, Prefilter, Journal, Notifier and
// Publisher are optional.
type Deps struct {
	Profile     ProfileSource
	Sources     []fetcher.Source
	Fetch       fetcher.AggregateOptions
	Extractor   Extractor
	Categorizer Categorizer
	Prefilter   Prefilter
	Scorer      Scorer
	Output      *output.Writer
	Archive     *archive.Store
	Journal     Journal
	Notifier    Notifier
	Publisher   Publisher
	Location    *time.Location
	Now         func() time.Time
}

// Runner executes pipeline runs, one at a time.
type Runner struct {
	deps Deps
	log  *slog.Logger
	mu   sync.Mutex
}

// New creates a Runner.
func New(deps Deps, log *slog.Logger) *Runner {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps, log: log}
}

// Run executes one digest. The output files and archive are written only after
// scoring succeeded; failures after the archive write are logged and do not fail the run.
func (r *Runner) Run(ctx context.Context) (*model.Result, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := r.deps.Now()
	run := &model.Run{
		ID:        uuid.NewString(),
		Date:      started.In(r.deps.Location).Format(archive.DateLayout),
		Status:    model.RunStarted,
		StartedAt: started.UTC(),
	}
	log := r.log.With("run_id", run.ID, "date", run.Date)
	log.Info("run started", "sources", len(r.deps.Sources))

	// Bookkeeping must survive cancellation of the run itself.
	bg := context.WithoutCancel(ctx)
	if r.deps.Journal != nil {
		if err := r.deps.Journal.CreateRun(bg, run); err != nil {
			log.Warn("journal create run", "error", err)
		}
	}

	result, err := r.execute(ctx, run, log)
	if err != nil {
		run.Status = model.RunFailed
		run.Error = err.Error()
		r.finish(bg, run, log)
		if r.deps.Notifier != nil {
			if nerr := r.deps.Notifier.NotifyFailure(bg, run.Date, err); nerr != nil {
				log.Warn("notify failure", "error", nerr)
			}
		}
		log.Error("run failed", "error", err, "duration", time.Since(started))
		return nil, err
	}

	r.record(bg, run, result, log)
	run.Status = model.RunSucceeded
	r.finish(bg, run, log)

	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.NotifyResult(bg, result); err != nil {
			log.Warn("notify result", "error", err)
		}
	}
	if r.deps.Publisher != nil {
		paths := []string{run.OutputFile, filepath.Join(r.deps.Output.Dir(), output.LatestFile), r.deps.Archive.Path()}
		if err := r.deps.Publisher.Publish(bg, paths...); err != nil {
			log.Warn("publish outputs", "error", err)
		}
	}

	log.Info("run finished",
		"stories", len(result.Stories),
		"actions", len(result.Actions),
		"output", run.OutputFile,
		"duration", time.Since(started),
	)
	return result, nil
}

func (r *Runner) execute(ctx context.Context, run *model.Run, log *slog.Logger) (*model.Result, error) {
	p := r.deps.Profile.Fetch(ctx)

	raw, reports := fetcher.Aggregate(ctx, r.deps.Sources, r.deps.Fetch, log)
	run.ItemsFetched = len(raw)
	if r.deps.Journal != nil {
		if err := r.deps.Journal.SaveSourceReports(context.WithoutCancel(ctx), run.ID, reports); err != nil {
			log.Warn("journal source reports", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch sources: %w", err)
	}

	items := normalize.Normalize(raw, log)
	run.ItemsUnique = len(items)

	if r.deps.Extractor != nil {
		items = r.deps.Extractor.Fill(ctx, items)
	}

	items = r.deps.Categorizer.Categorize(items)
	for category, n := range categorize.Counts(items) {
		log.Debug("category", "name", category, "items", n)
	}

	if r.deps.Prefilter != nil {
		items = r.deps.Prefilter.Select(ctx, items, profile.Summary(p))
	}

	result, err := r.deps.Scorer.Score(ctx, items, p)
	if err != nil {
		return nil, fmt.Errorf("score items: %w", err)
	}
	run.Stories = len(result.Stories)
	run.Actions = len(result.Actions)

	path, err := r.deps.Output.Write(result)
	if err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	run.OutputFile = path

	entries, err := r.deps.Archive.Upsert(archive.NewEntry(result.GeneratedAt, path))
	if err != nil {
		return nil, fmt.Errorf("update archive: %w", err)
	}
	log.Debug("archive updated", "entries", len(entries))

	// The latest pointer only moves once the archive references the new result.
	if err := r.deps.Output.WriteLatest(result); err != nil {
		return nil, fmt.Errorf("write latest output: %w", err)
	}
	return result, nil
}

func (r *Runner) record(ctx context.Context, run *model.Run, result *model.Result, log *slog.Logger) {
	if r.deps.Journal == nil {
		return
	}
	if err := r.deps.Journal.SaveStories(ctx, run.ID, result.Stories); err != nil {
		log.Warn("journal stories", "error", err)
		return
	}

	urls := make([]string, len(result.Stories))
	for i, s := range result.Stories {
		urls[i] = s.URL
	}
	seen, err := r.deps.Journal.PreviouslySeen(ctx, run.ID, urls)
	if err != nil {
		log.Warn("journal previously seen", "error", err)
		return
	}
	if len(seen) > 0 {
		log.Info("stories repeated from earlier runs", "count", len(seen))
	}
}

func (r *Runner) finish(ctx context.Context, run *model.Run, log *slog.Logger) {
	if r.deps.Journal == nil {
		return
	}
	finished := r.deps.Now().UTC()
	run.FinishedAt = &finished
	if err := r.deps.Journal.FinishRun(ctx, run); err != nil {
		log.Warn("journal finish run", "error", err)
	}
}
