package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newsdigest/internal/archive"
	"newsdigest/internal/categorize"
	"newsdigest/internal/fetcher"
	"newsdigest/internal/llm"
	"newsdigest/internal/model"
	"newsdigest/internal/output"
	"newsdigest/internal/relevance"
	"newsdigest/internal/storage"
)

var fixedNow = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

type stubSource struct {
	name  string
	items []model.RawItem
	err   error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(context.Context) ([]model.RawItem, error) { return s.items, s.err }

type stubProfile struct{}

func (stubProfile) Fetch(context.Context) model.UserProfile {
	return model.UserProfile{Role: "Engineer", Interests: []string{"agents"}}
}

type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	prompt   string
	started  chan struct{}
	release  chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, r llm.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompt = r.User
	g.mu.Unlock()
	if g.started != nil {
		close(g.started)
		<-g.release
	}
	return g.response, g.err
}

type fakeNotifier struct {
	results  []*model.Result
	failures []string
}

func (n *fakeNotifier) NotifyResult(_ context.Context, r *model.Result) error {
	n.results = append(n.results, r)
	return nil
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, date string, err error) error {
	n.failures = append(n.failures, date+": "+err.Error())
	return nil
}

type fakePublisher struct {
	paths []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, paths ...string) error {
	p.paths = append(p.paths, paths...)
	return p.err
}

func raw(source string, urls ...string) []model.RawItem {
	out := make([]model.RawItem, len(urls))
	for i, u := range urls {
		out[i] = model.RawItem{Title: "Item " + u, Link: u, Summary: "About " + u, SourceName: source}
	}
	return out
}

// threeSources returns 5, 3 and 0 items with one URL shared by the first two.
func threeSources() []fetcher.Source {
	return []fetcher.Source{
		stubSource{name: "Lab Blog", items: raw("Lab Blog",
			"https://lab.example.com/1", "https://lab.example.com/2", "https://lab.example.com/3",
			"https://lab.example.com/4", "https://shared.example.com/post")},
		stubSource{name: "Hacker News", items: raw("Hacker News",
			"https://shared.example.com/post", "https://news.example.com/a", "https://news.example.com/b")},
		stubSource{name: "Empty Feed"},
	}
}

func validResponse() string {
	urls := []string{
		"https://lab.example.com/1", "https://lab.example.com/2", "https://lab.example.com/3",
		"https://lab.example.com/4", "https://shared.example.com/post", "https://news.example.com/a",
	}
	stories := make([]string, len(urls))
	for i, u := range urls {
		stories[i] = fmt.Sprintf(`{"title":"Story %d","url":%q,"summary":"S","relevance_score":%d,"why_relevant":"W","category":"General Tech News","source":"X","date":"2026-03-10"}`, i, u, 9-i)
	}
	actions := []string{
		`{"type":"BUILD","priority":"HIGH","title":"Prototype","description":"D","why_now":"N","time_estimate":"2 hours","related_stories":[0,1]}`,
		`{"type":"LEARN","priority":"LOW","title":"Read","description":"D","why_now":"N","time_estimate":"30 minutes","related_stories":[5]}`,
	}
	return `{"smart_digest":{"tldr":"Agents everywhere","patterns":[],"signals":[],"bottom_line":"Ship."},"stories":[` +
		strings.Join(stories, ",") + `],"actions":[` + strings.Join(actions, ",") + `]}`
}

type fixture struct {
	runner    *Runner
	gen       *fakeGenerator
	notifier  *fakeNotifier
	publisher *fakePublisher
	journal   *storage.SQLite
	archive   *archive.Store
	out       *output.Writer
}

func newFixture(t *testing.T, gen *fakeGenerator) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	cat, err := categorize.NewDefault(categorize.Config{
		AIVendors:       []string{"Lab Blog"},
		RepoSearchLabel: "GitHub Trending",
		ListingLabel:    "Product Hunt",
	})
	if err != nil {
		t.Fatalf("categorizer: %v", err)
	}

	journal, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	now := func() time.Time { return fixedNow }
	f := &fixture{
		gen:       gen,
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		journal:   journal,
		archive:   archive.New(filepath.Join(dir, "archive.json"), 30, log),
		out:       output.New(filepath.Join(dir, "output")),
	}
	f.runner = New(Deps{
		Profile:     stubProfile{},
		Sources:     threeSources(),
		Fetch:       fetcher.AggregateOptions{Timeout: time.Second, Workers: 3},
		Categorizer: cat,
		Scorer:      relevance.New(gen, relevance.Options{Now: now}, log),
		Output:      f.out,
		Archive:     f.archive,
		Journal:     journal,
		Notifier:    f.notifier,
		Publisher:   f.publisher,
		Now:         now,
	}, log)
	return f
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: validResponse()})

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Stories) != 6 || len(result.Actions) != 2 {
		t.Fatalf("got %d stories and %d actions, want 6 and 2", len(result.Stories), len(result.Actions))
	}
	if f.gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", f.gen.calls)
	}
	// Seven unique items reach the prompt, numbered in merge order.
	if !strings.Contains(f.gen.prompt, "7. Item https://news.example.com/b") || strings.Contains(f.gen.prompt, "8. Item") {
		t.Errorf("prompt does not list exactly 7 items:\n%s", f.gen.prompt)
	}
	if !strings.Contains(f.gen.prompt, "Category: AI Companies") {
		t.Error("prompt is missing categorized items")
	}

	outputFile := filepath.Join(f.out.Dir(), "news-data-2026-03-10.json")
	want := []model.ArchiveEntry{{Date: "2026-03-10", DisplayDate: "Tuesday, March 10, 2026", File: outputFile}}
	if diff := cmp.Diff(want, f.archive.Load()); diff != "" {
		t.Errorf("archive mismatch (-want +got):\n%s", diff)
	}

	stored, err := f.out.Read(output.LatestFile)
	if err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if diff := cmp.Diff(result.Stories, stored.Stories); diff != "" {
		t.Errorf("latest output mismatch (-want +got):\n%s", diff)
	}

	runs, err := f.journal.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("journal has %d runs, want 1", len(runs))
	}
	gotRun := runs[0]
	if gotRun.Status != model.RunSucceeded || gotRun.ItemsFetched != 8 || gotRun.ItemsUnique != 7 ||
		gotRun.Stories != 6 || gotRun.Actions != 2 || gotRun.OutputFile != outputFile {
		t.Errorf("journal run = %+v", gotRun)
	}
	reports, err := f.journal.ListSourceReports(context.Background(), gotRun.ID)
	if err != nil {
		t.Fatalf("ListSourceReports: %v", err)
	}
	if len(reports) != 3 {
		t.Errorf("journal has %d source reports, want 3", len(reports))
	}

	if len(f.notifier.results) != 1 || len(f.notifier.failures) != 0 {
		t.Errorf("notifier results=%d failures=%d", len(f.notifier.results), len(f.notifier.failures))
	}
	wantPaths := []string{outputFile, filepath.Join(f.out.Dir(), output.LatestFile), f.archive.Path()}
	if diff := cmp.Diff(wantPaths, f.publisher.paths); diff != "" {
		t.Errorf("published paths mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUnparseableResponse(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: "Sorry, I cannot help with that."})

	previous := archive.NewEntry(fixedNow.AddDate(0, 0, -1), "output/news-data-2026-03-09.json")
	if _, err := f.archive.Upsert(previous); err != nil {
		t.Fatalf("seed archive: %v", err)
	}
	before, err := os.ReadFile(f.archive.Path())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	_, err = f.runner.Run(context.Background())
	if !errors.Is(err, relevance.ErrContractViolation) {
		t.Fatalf("Run() error = %v, want ErrContractViolation", err)
	}

	after, err := os.ReadFile(f.archive.Path())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("archive changed:\nbefore: %s\nafter: %s", before, after)
	}
	if _, err := os.Stat(filepath.Join(f.out.Dir(), output.LatestFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("latest output written on failure: %v", err)
	}

	runs, err := f.journal.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunFailed || runs[0].Error == "" {
		t.Errorf("journal runs = %+v", runs)
	}
	if len(f.notifier.failures) != 1 || len(f.notifier.results) != 0 {
		t.Errorf("notifier results=%d failures=%d", len(f.notifier.results), len(f.notifier.failures))
	}
	if len(f.publisher.paths) != 0 {
		t.Errorf("published %v on failure", f.publisher.paths)
	}
}

func TestRunArchiveFailureKeepsLatest(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: validResponse()})

	// A regular file where the archive directory should be makes the upsert fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	f.runner.deps.Archive = archive.New(filepath.Join(blocker, "archive.json"), 30, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := f.runner.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error when the archive cannot be written")
	}
	if _, err := os.Stat(filepath.Join(f.out.Dir(), output.LatestFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("latest pointer moved on a failed run: %v", err)
	}
	if len(f.notifier.failures) != 1 {
		t.Errorf("notifier failures = %d, want 1", len(f.notifier.failures))
	}
}

func TestRunLogsNormalizationOnce(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: validResponse()})
	var buf bytes.Buffer
	f.runner.log = slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Count(buf.String(), `msg="items normalized"`); got != 1 {
		t.Errorf("items normalized logged %d times, want 1:\n%s", got, buf.String())
	}
}

func TestRunNoItems(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: validResponse()})
	f.runner.deps.Sources = []fetcher.Source{
		stubSource{name: "Broken", err: errors.New("connection refused")},
		stubSource{name: "Empty Feed"},
	}

	_, err := f.runner.Run(context.Background())
	if !errors.Is(err, relevance.ErrNoItems) {
		t.Fatalf("Run() error = %v, want ErrNoItems", err)
	}
	if f.gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.gen.calls)
	}
	if got := f.archive.Load(); len(got) != 0 {
		t.Errorf("archive = %v, want empty", got)
	}
}

func TestRunSideEffectFailuresDoNotFailRun(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: validResponse()})
	f.publisher.err = errors.New("bucket missing")

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.archive.Load(); len(got) != 1 {
		t.Errorf("archive has %d entries, want 1", len(got))
	}
}

func TestRunInProgress(t *testing.T) {
	gen := &fakeGenerator{response: validResponse(), started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, gen)

	errc := make(chan error, 1)
	go func() {
		_, err := f.runner.Run(context.Background())
		errc <- err
	}()

	<-gen.started
	if _, err := f.runner.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}
	close(gen.release)

	if err := <-errc; err != nil {
		t.Fatalf("first Run: %v", err)
	}
}
