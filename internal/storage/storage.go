// Package storage defines the run journal interface and its implementations.
package storage

import (
	"context"
	"errors"

	"newsdigest/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all journal operations.
type Storage interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	SaveSourceReports(ctx context.Context, runID string, reports []model.SourceReport) error
	ListSourceReports(ctx context.Context, runID string) ([]model.SourceReport, error)

	SaveStories(ctx context.Context, runID string, stories []model.ScoredStory) error
	ListStories(ctx context.Context, runID string) ([]model.ScoredStory, error)
	// PreviouslySeen returns which of urls appeared in a story of a run other than runID.
	PreviouslySeen(ctx context.Context, runID string, urls []string) (map[string]bool, error)

	Close() error
}
