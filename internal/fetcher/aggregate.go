package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsdigest/internal/model"
)

// AggregateOptions bound the concurrent fetch.
type AggregateOptions struct {
	// Timeout applies to each source individually.
	Timeout time.Duration
	// Workers caps how many sources are fetched at once.
	Workers int
}

// Aggregate fetches all sources concurrently and merges their items in source-list order.
// A failing or disabled source contributes nothing and never aborts its siblings.
func Aggregate(ctx context.Context, sources []Source, opts AggregateOptions, log *slog.Logger) ([]model.RawItem, []model.SourceReport) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = len(sources)
	}

	results := make([][]model.RawItem, len(sources))
	reports := make([]model.SourceReport, len(sources))

	var g errgroup.Group
	g.SetLimit(max(opts.Workers, 1))
	for i, src := range sources {
		g.Go(func() error {
			results[i], reports[i] = fetchOne(ctx, src, opts.Timeout, log)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.RawItem
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged, reports
}

func fetchOne(ctx context.Context, src Source, timeout time.Duration, log *slog.Logger) ([]model.RawItem, model.SourceReport) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	items, err := src.Fetch(ctx)
	report := model.SourceReport{
		Source:   src.Name(),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(err, ErrSourceDisabled):
		log.Info("source disabled", "source", src.Name())
		report.Status = model.SourceDisabled
		return nil, report
	case err != nil:
		log.Warn("source fetch failed", "source", src.Name(), "error", err)
		report.Status = model.SourceFailed
		report.Error = err.Error()
		return nil, report
	}

	log.Debug("source fetched", "source", src.Name(), "items", len(items), "duration", report.Duration)
	report.Status = model.SourceOK
	report.Items = len(items)
	return items, report
}
