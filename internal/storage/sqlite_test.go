package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"newsdigest/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	started := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	run := &model.Run{ID: "run-1", Date: "2026-03-10", StartedAt: started}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	want := &model.Run{ID: "run-1", Date: "2026-03-10", Status: model.RunStarted, StartedAt: started}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetRun() after create mismatch (-want +got):\n%s", diff)
	}

	finished := started.Add(90 * time.Second)
	run.Status = model.RunSucceeded
	run.ItemsFetched = 12
	run.ItemsUnique = 10
	run.Stories = 6
	run.Actions = 2
	run.OutputFile = "output/news-data-2026-03-10.json"
	run.FinishedAt = &finished
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err = s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetRun() after finish mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestDB(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun() error = %v, want ErrNotFound", err)
	}
	err = s.FinishRun(context.Background(), &model.Run{ID: "missing", Status: model.RunFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FinishRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.CreateRun(ctx, &model.Run{ID: id, Date: "2026-03-0" + string(rune('1'+i)), StartedAt: base.AddDate(0, 0, i)}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Errorf("ListRuns() ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceReports(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	if err := s.CreateRun(ctx, &model.Run{ID: "run-1", Date: "2026-03-10"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	reports := []model.SourceReport{
		{Source: "Lab Blog", Status: model.SourceOK, Items: 5, Duration: 1200 * time.Millisecond},
		{Source: "GitHub Trending", Status: model.SourceFailed, Error: "unexpected status 403", Duration: 300 * time.Millisecond},
		{Source: "Product Hunt", Status: model.SourceDisabled},
	}
	if err := s.SaveSourceReports(ctx, "run-1", reports); err != nil {
		t.Fatalf("SaveSourceReports: %v", err)
	}

	got, err := s.ListSourceReports(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListSourceReports: %v", err)
	}
	if diff := cmp.Diff(reports, got); diff != "" {
		t.Errorf("ListSourceReports() mismatch (-want +got):\n%s", diff)
	}
}

func TestStories(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	for _, id := range []string{"run-1", "run-2"} {
		if err := s.CreateRun(ctx, &model.Run{ID: id, Date: "2026-03-10"}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	first := []model.ScoredStory{
		{Title: "A", URL: "https://a", Source: "Lab Blog", Category: model.CategoryAICompanies, RelevanceScore: 9, Date: "2026-03-09", Summary: "dropped"},
		{Title: "B", URL: "https://b", Source: "The Verge", Category: model.CategoryGeneral, RelevanceScore: 4, Date: "2026-03-10"},
	}
	if err := s.SaveStories(ctx, "run-1", first); err != nil {
		t.Fatalf("SaveStories: %v", err)
	}

	got, err := s.ListStories(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if diff := cmp.Diff(first, got, cmpopts.IgnoreFields(model.ScoredStory{}, "Summary", "WhyRelevant")); diff != "" {
		t.Errorf("ListStories() mismatch (-want +got):\n%s", diff)
	}

	seen, err := s.PreviouslySeen(ctx, "run-2", []string{"https://a", "https://c"})
	if err != nil {
		t.Fatalf("PreviouslySeen: %v", err)
	}
	if diff := cmp.Diff(map[string]bool{"https://a": true}, seen); diff != "" {
		t.Errorf("PreviouslySeen() mismatch (-want +got):\n%s", diff)
	}

	seen, err = s.PreviouslySeen(ctx, "run-1", []string{"https://a"})
	if err != nil {
		t.Fatalf("PreviouslySeen: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("PreviouslySeen() within same run = %v, want empty", seen)
	}
}
