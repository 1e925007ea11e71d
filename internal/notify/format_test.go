package notify

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"newsdigest/internal/model"
)

func TestFormatDigest(t *testing.T) {
	r := &model.Result{
		Date: "2026-03-10",
		Digest: model.Digest{
			TLDR:       "Agents everywhere.",
			BottomLine: "Ship the eval harness this week.",
		},
		Actions: []model.ActionItem{
			{Type: model.ActionBuild, Priority: model.PriorityHigh, Title: "Try the new SDK", TimeEstimate: "2h"},
			{Type: model.ActionWatch, Priority: model.PriorityLow, Title: "Follow the release"},
		},
	}
	for i := range 7 {
		r.Stories = append(r.Stories, model.ScoredStory{
			Title:          "Story " + string(rune('A'+i)),
			URL:            "https://example.com/" + string(rune('a'+i)),
			RelevanceScore: 9 - i,
			Category:       model.CategoryGeneral,
			Source:         "Hacker News",
		})
	}

	got := FormatDigest(r)

	for _, want := range []string{
		"News digest for 2026-03-10",
		"TL;DR: Agents everywhere.",
		"1. [9/10] Story A",
		"5. [5/10] Story E",
		"- BUILD (HIGH): Try the new SDK [2h]",
		"- WATCH (LOW): Follow the release\n",
		"Ship the eval harness this week.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatDigest() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Story F") {
		t.Error("FormatDigest() lists more than five stories")
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("FormatDigest() has trailing newline")
	}
}

func TestFormatFailure(t *testing.T) {
	got := FormatFailure("2026-03-10", errors.New("score: contract violation"))
	want := "News digest for 2026-03-10 failed:\nscore: contract violation"
	if got != want {
		t.Errorf("FormatFailure() = %q, want %q", got, want)
	}
}

func TestFormatRuns(t *testing.T) {
	if got := FormatRuns(nil); got != "No runs recorded yet." {
		t.Errorf("FormatRuns(nil) = %q", got)
	}

	started := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	got := FormatRuns([]model.Run{
		{Date: "2026-03-10", Status: model.RunSucceeded, StartedAt: started, ItemsFetched: 8, ItemsUnique: 7, Stories: 6, Actions: 2},
		{Date: "2026-03-09", Status: model.RunFailed, StartedAt: started.Add(-24 * time.Hour), Error: "no items"},
	})
	for _, want := range []string{
		"2026-03-10 [succeeded] 07:00 UTC",
		"8 fetched, 7 unique, 6 stories, 2 actions",
		"2026-03-09 [failed] 07:00 UTC",
		"error: no items",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRuns() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatArchive(t *testing.T) {
	if got := FormatArchive(nil); got != "The archive is empty." {
		t.Errorf("FormatArchive(nil) = %q", got)
	}
	got := FormatArchive([]model.ArchiveEntry{
		{Date: "2026-03-10", DisplayDate: "Tuesday, March 10, 2026", File: "output/news-data-2026-03-10.json"},
	})
	if !strings.Contains(got, "Tuesday, March 10, 2026  output/news-data-2026-03-10.json") {
		t.Errorf("FormatArchive() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "hello", n: 10, want: "hello"},
		{name: "exact", in: "hello", n: 5, want: "hello"},
		{name: "cut", in: "hello world", n: 9, want: "hello\n..."},
		{name: "rune boundary", in: "ab€€€€", n: 8, want: "ab\n..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if len(got) > tt.n || !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) = %q is too long or invalid", tt.in, tt.n, got)
			}
		})
	}
}
